package model

import (
	"encoding/json"
	"time"
)

// Course field names on the wire keep the document keys the catalog has
// always used (codigo, cupos, inscritos, ...), so documents written by
// older clients decode unchanged.
type Course struct {
	ID          string  `json:"id"`
	Code        string  `json:"codigo"`
	Name        string  `json:"nombre"`
	Status      string  `json:"estado"`
	Price       float64 `json:"precio"`
	Duration    string  `json:"duracion"`
	Description string  `json:"descripcion"`
	Capacity    int     `json:"cupos"`
	Enrolled    int     `json:"inscritos"`
	Image       string  `json:"img,omitempty"`
	OwnerID     string  `json:"ownerId,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Enrollment is one (user, course) membership record. The course id doubles
// as the document key under users/{uid}/enrollments, which makes repeat
// enrolls idempotent at the storage layer.
type Enrollment struct {
	CourseID   string    `json:"courseId"`
	EnrolledAt time.Time `json:"enrolledAt"`
}

// CourseFields flattens a course into document fields, without the id
// (the id lives in the document key, not the data).
func CourseFields(course Course) map[string]interface{} {
	fields := map[string]interface{}{
		"codigo":      course.Code,
		"nombre":      course.Name,
		"estado":      course.Status,
		"precio":      course.Price,
		"duracion":    course.Duration,
		"descripcion": course.Description,
		"cupos":       course.Capacity,
		"inscritos":   course.Enrolled,
	}
	if course.Image != "" {
		fields["img"] = course.Image
	}
	return fields
}

// CourseFromFields rebuilds a course from document fields plus its
// storage-assigned id.
func CourseFromFields(id string, fields map[string]interface{}) (Course, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return Course{}, err
	}
	var course Course
	if err := json.Unmarshal(raw, &course); err != nil {
		return Course{}, err
	}
	course.ID = id
	return course, nil
}

func EnrollmentFields(enrollment Enrollment) map[string]interface{} {
	return map[string]interface{}{
		"courseId":   enrollment.CourseID,
		"enrolledAt": enrollment.EnrolledAt.UTC().Format(time.RFC3339Nano),
	}
}
