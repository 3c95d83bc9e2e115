package http

import (
	"log"
	"net/http"
	"sort"

	"github.com/gorilla/websocket"

	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
	"github.com/Nagthis/Adweb-Proyect/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWatchCourses streams the course collection over a websocket:
// one JSON array per delivered snapshot, newest last. The stream ends
// when the client disconnects or the subscription fails.
func (s *Server) handleWatchCourses(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Buffered hand-off between the subscription and the writer; when
	// the writer lags, older snapshots are superseded, not queued.
	snapshots := make(chan []model.Course, 1)
	sub, err := s.docs.Subscribe(r.Context(), store.CoursesCollection, func(docs []docstore.Doc) {
		courses := coursesFromDocs(docs)
		for {
			select {
			case snapshots <- courses:
				return
			default:
				select {
				case <-snapshots:
				default:
				}
			}
		}
	})
	if err != nil {
		log.Printf("watch subscribe failed: %v", err)
		return
	}
	defer sub.Close()

	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-disconnected:
			return
		case <-sub.Done():
			return
		case courses := <-snapshots:
			if err := conn.WriteJSON(courses); err != nil {
				return
			}
		}
	}
}

func coursesFromDocs(docs []docstore.Doc) []model.Course {
	courses := make([]model.Course, 0, len(docs))
	for _, doc := range docs {
		course, err := model.CourseFromFields(doc.ID, doc.Data)
		if err != nil {
			log.Printf("course %s: dropping undecodable document: %v", doc.ID, err)
			continue
		}
		courses = append(courses, course)
	}
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].Name < courses[j].Name
	})
	return courses
}
