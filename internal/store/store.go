// Package store keeps a local reactive copy of the course catalog in
// sync with the remote document store and runs every mutation the
// application issues against it. One Store serves one client session.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/Nagthis/Adweb-Proyect/internal/config"
	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	"github.com/Nagthis/Adweb-Proyect/internal/identity"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

// CoursesCollection is the path of the shared course collection.
const CoursesCollection = "courses"

// Store holds the session's single state snapshot: the signed-in user,
// the mirrored course list and the set of enrolled course ids. All
// state changes go through the commit methods, which serialize under
// one mutex; readers always observe a fully-applied commit, never a
// partially-updated list.
type Store struct {
	identity identity.Provider
	docs     docstore.Store

	adminEmail string
	retryBase  time.Duration
	retryMax   time.Duration

	mu       sync.Mutex
	user     *model.User
	courses  []model.Course
	enrolled map[string]struct{}
}

func New(cfg config.Config, provider identity.Provider, docs docstore.Store) *Store {
	return &Store{
		identity:   provider,
		docs:       docs,
		adminEmail: cfg.AdminEmail,
		retryBase:  cfg.SubscribeRetryBase,
		retryMax:   cfg.SubscribeRetryMax,
		enrolled:   make(map[string]struct{}),
	}
}

// Commits. These are the only writers of the snapshot.

func (s *Store) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	copied := *user
	s.user = &copied
}

func (s *Store) setCourses(courses []model.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = courses
}

func (s *Store) setEnrolledCourseIDs(ids []string) {
	enrolled := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		enrolled[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrolled = enrolled
}

// Derived views.

func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	copied := *s.user
	return &copied
}

func (s *Store) UserEmail() string {
	if user := s.User(); user != nil {
		return user.Email
	}
	return ""
}

// OrderedCourses returns the course list sorted by name. The snapshot
// itself is never reordered; every call sorts a fresh copy.
func (s *Store) OrderedCourses() []model.Course {
	s.mu.Lock()
	courses := make([]model.Course, len(s.courses))
	copy(courses, s.courses)
	s.mu.Unlock()

	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Name < courses[j].Name
	})
	return courses
}

func (s *Store) CourseByID(id string) (model.Course, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, course := range s.courses {
		if course.ID == id {
			return course, true
		}
	}
	return model.Course{}, false
}

// IsAdmin reports whether the session user is the one configured
// administrator. Identity is a single email compared for equality, not
// a role list.
func (s *Store) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.Email == s.adminEmail
}

func (s *Store) EnrolledCourseIDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.enrolled))
	for id := range s.enrolled {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) IsEnrolled(courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enrolled[courseID]
	return ok
}
