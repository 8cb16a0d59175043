package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/db"
)

func TestPutCourseAndRead(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "cat.db")+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	s := catalog.NewSQLStore()
	def, err := s.PutCourse(ctx, h, catalog.CourseDef{
		Course: catalog.Course{Title: "FL Sales Associate Pre-License", Jurisdiction: "fl", TotalHours: 63},
		Units: []catalog.UnitDef{
			{Unit: catalog.Unit{Title: "Real Estate Business"}, Lessons: []catalog.Lesson{{Title: "Intro"}, {Title: "Brokerage"}}},
			{Unit: catalog.Unit{Title: "License Law"}, Lessons: []catalog.Lesson{{Title: "Chapter 475"}}},
		},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	c, err := s.Course(ctx, h, def.ID)
	if err != nil || c.Jurisdiction != "FL" || c.TotalHours != 63 {
		t.Fatalf("course = %+v, %v", c, err)
	}
	units, err := s.Units(ctx, h, def.ID)
	if err != nil || len(units) != 2 || units[0].Sequence != 1 || units[1].Title != "License Law" {
		t.Fatalf("units = %+v, %v", units, err)
	}
	lessons, err := s.Lessons(ctx, h, def.ID)
	if err != nil || len(lessons) != 3 || lessons[2].UnitID != units[1].ID {
		t.Fatalf("lessons = %+v, %v", lessons, err)
	}
	l, u, err := s.Lesson(ctx, h, lessons[1].ID)
	if err != nil || l.Title != "Brokerage" || u.ID != units[0].ID {
		t.Fatalf("lesson = %+v %+v %v", l, u, err)
	}

	if _, err := s.Course(ctx, h, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.PutCourse(ctx, h, catalog.CourseDef{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}
