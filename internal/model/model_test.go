package model

import (
	"testing"
	"time"
)

func TestCourseFieldRoundTrip(t *testing.T) {
	course := Course{
		Code:        "GO101",
		Name:        "Programacion en Go",
		Status:      "activo",
		Price:       49.90,
		Duration:    "8 semanas",
		Description: "Introduccion al lenguaje",
		Capacity:    20,
		Enrolled:    3,
		Image:       "https://example.com/go.png",
	}

	fields := CourseFields(course)
	decoded, err := CourseFromFields("c1", fields)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	course.ID = "c1"
	if decoded != course {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, course)
	}
}

func TestCourseFromFieldsWithJSONNumbers(t *testing.T) {
	// Documents read back from JSON carry float64 numerics.
	course, err := CourseFromFields("c1", map[string]interface{}{
		"nombre":    "Go",
		"cupos":     float64(3),
		"inscritos": float64(5),
		"precio":    float64(10),
	})
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if course.Capacity != 3 || course.Enrolled != 5 {
		t.Fatalf("expected cupos=3 inscritos=5, got %+v", course)
	}
}

func TestCourseFieldsOmitsEmptyImage(t *testing.T) {
	fields := CourseFields(Course{Code: "GO101", Name: "Go"})
	if _, ok := fields["img"]; ok {
		t.Fatalf("expected img to be omitted when empty")
	}
	if _, ok := fields["ownerId"]; ok {
		t.Fatalf("expected ownerId to be stamped by the caller, not here")
	}
}

func TestEnrollmentFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fields := EnrollmentFields(Enrollment{CourseID: "c1", EnrolledAt: now})
	if fields["courseId"] != "c1" {
		t.Fatalf("expected courseId, got %v", fields["courseId"])
	}
	if fields["enrolledAt"] != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected enrolledAt: %v", fields["enrolledAt"])
	}
}
