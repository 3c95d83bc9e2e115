package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Nagthis/Adweb-Proyect/internal/metrics"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

func coursePath(courseID string) string {
	return CoursesCollection + "/" + courseID
}

func enrollmentsCollection(userID string) string {
	return "users/" + userID + "/enrollments"
}

func enrollmentPath(userID, courseID string) string {
	return enrollmentsCollection(userID) + "/" + courseID
}

// Auth-linked operations.

func (s *Store) Register(ctx context.Context, email, password string) error {
	user, err := s.identity.CreateAccount(ctx, email, password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.SetUser(&user)
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) error {
	user, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.SetUser(&user)
	return nil
}

func (s *Store) Logout(ctx context.Context) error {
	if err := s.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.SetUser(nil)
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, newPassword string) error {
	user := s.identity.CurrentUser()
	if user == nil {
		return ErrUnauthenticated
	}
	if err := s.identity.ChangePassword(ctx, *user, newPassword); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Course mutations. Each is a sequence of independent remote calls with
// no cross-document transaction: a failure partway through leaves the
// earlier writes committed.

// AddCourse stamps the current session user as owner and creates the
// course under a storage-assigned id.
func (s *Store) AddCourse(ctx context.Context, course model.Course) (string, error) {
	fields := model.CourseFields(course)
	if user := s.identity.CurrentUser(); user != nil {
		fields["ownerId"] = user.ID
	} else {
		fields["ownerId"] = nil
	}

	metrics.Mutations.WithLabelValues("add_course").Inc()
	id, err := s.docs.Create(ctx, CoursesCollection, fields)
	if err != nil {
		metrics.MutationErrors.WithLabelValues("add_course").Inc()
		return "", fmt.Errorf("add course: %w", err)
	}
	return id, nil
}

// EnrollInCourse registers the session user in the course and adjusts
// its counters. The new counters are computed from the caller-supplied
// course, not a re-read value: two sessions enrolling off the same
// stale snapshot can both observe the same pre-decrement cupos. That
// window is a documented property of the protocol, not a bug to patch
// here; the enrollment record keyed by course id stays deduplicated
// either way.
func (s *Store) EnrollInCourse(ctx context.Context, course model.Course) error {
	user := s.identity.CurrentUser()
	if user == nil {
		return ErrUnauthenticated
	}
	if s.IsEnrolled(course.ID) {
		return ErrAlreadyEnrolled
	}
	if course.Capacity <= 0 {
		return ErrNoCapacity
	}

	metrics.Mutations.WithLabelValues("enroll").Inc()

	record := model.Enrollment{CourseID: course.ID, EnrolledAt: time.Now().UTC()}
	if err := s.docs.Set(ctx, enrollmentPath(user.ID, course.ID), model.EnrollmentFields(record)); err != nil {
		metrics.MutationErrors.WithLabelValues("enroll").Inc()
		return fmt.Errorf("enroll in course %s: %w", course.ID, err)
	}

	err := s.docs.Update(ctx, coursePath(course.ID), map[string]interface{}{
		"cupos":     course.Capacity - 1,
		"inscritos": course.Enrolled + 1,
	})
	if err != nil {
		metrics.MutationErrors.WithLabelValues("enroll").Inc()
		return fmt.Errorf("enroll in course %s: %w", course.ID, err)
	}

	s.FetchUserEnrollments(ctx)
	return nil
}

// UnenrollFromCourse removes the membership record and returns the seat
// to the course, flooring inscritos at zero. Same non-atomicity caveats
// as EnrollInCourse.
func (s *Store) UnenrollFromCourse(ctx context.Context, course model.Course) error {
	user := s.identity.CurrentUser()
	if user == nil {
		return ErrUnauthenticated
	}

	metrics.Mutations.WithLabelValues("unenroll").Inc()

	if err := s.docs.Delete(ctx, enrollmentPath(user.ID, course.ID)); err != nil {
		metrics.MutationErrors.WithLabelValues("unenroll").Inc()
		return fmt.Errorf("unenroll from course %s: %w", course.ID, err)
	}

	remaining := course.Enrolled - 1
	if remaining < 0 {
		remaining = 0
	}
	err := s.docs.Update(ctx, coursePath(course.ID), map[string]interface{}{
		"cupos":     course.Capacity + 1,
		"inscritos": remaining,
	})
	if err != nil {
		metrics.MutationErrors.WithLabelValues("unenroll").Inc()
		return fmt.Errorf("unenroll from course %s: %w", course.ID, err)
	}

	s.FetchUserEnrollments(ctx)
	return nil
}

// UpdateCourse applies a field-level merge: only the supplied fields
// change.
func (s *Store) UpdateCourse(ctx context.Context, id string, fields map[string]interface{}) error {
	metrics.Mutations.WithLabelValues("update_course").Inc()
	if err := s.docs.Update(ctx, coursePath(id), fields); err != nil {
		metrics.MutationErrors.WithLabelValues("update_course").Inc()
		return fmt.Errorf("update course %s: %w", id, err)
	}
	return nil
}

// DeleteCourse removes the document. Other sessions learn of the
// deletion through their course subscriptions.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	metrics.Mutations.WithLabelValues("delete_course").Inc()
	if err := s.docs.Delete(ctx, coursePath(id)); err != nil {
		metrics.MutationErrors.WithLabelValues("delete_course").Inc()
		return fmt.Errorf("delete course %s: %w", id, err)
	}
	return nil
}

// FetchUserEnrollments replaces the membership set with the ids read
// from the user's enrollment sub-collection. Without a session user the
// set is cleared. A failed read degrades to an empty set instead of
// propagating: a brand-new user has no sub-collection yet and that must
// not look like an error.
func (s *Store) FetchUserEnrollments(ctx context.Context) {
	user := s.identity.CurrentUser()
	if user == nil {
		s.setEnrolledCourseIDs(nil)
		return
	}

	docs, err := s.docs.ListAll(ctx, enrollmentsCollection(user.ID))
	if err != nil {
		log.Printf("fetch enrollments for %s: %v", user.ID, err)
		s.setEnrolledCourseIDs(nil)
		return
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	s.setEnrolledCourseIDs(ids)
}
