// Package catalog reads the course/unit/lesson structure authored elsewhere.
// The engine only references these rows; PutCourse exists for bulk import.
package catalog

import (
	"context"

	"github.com/mind-engage/coursegate/internal/db"
)

type Course struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Jurisdiction string `json:"jurisdiction"` // licensing state, e.g. "FL"
	TotalHours   int    `json:"total_hours"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

type Unit struct {
	ID            string `json:"id"`
	CourseID      string `json:"course_id"`
	Sequence      int    `json:"sequence"`
	Title         string `json:"title"`
	RequiredHours int    `json:"required_hours"`
}

type Lesson struct {
	ID       string `json:"id"`
	UnitID   string `json:"unit_id"`
	Sequence int    `json:"sequence"`
	Title    string `json:"title"`
}

// CourseDef is a full course tree used for import.
type CourseDef struct {
	Course
	Units []UnitDef `json:"units"`
}

type UnitDef struct {
	Unit
	Lessons []Lesson `json:"lessons"`
}

// Reader is the catalog surface the engine consumes.
type Reader interface {
	Course(ctx context.Context, q db.Querier, id string) (Course, error)
	Units(ctx context.Context, q db.Querier, courseID string) ([]Unit, error)
	Lessons(ctx context.Context, q db.Querier, courseID string) ([]Lesson, error)
	Lesson(ctx context.Context, q db.Querier, id string) (Lesson, Unit, error)
}
