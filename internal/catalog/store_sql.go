package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/db"
)

type SQLStore struct{}

func NewSQLStore() *SQLStore { return &SQLStore{} }

var _ Reader = (*SQLStore)(nil)

func (s *SQLStore) Course(ctx context.Context, q db.Querier, id string) (Course, error) {
	var c Course
	err := q.QueryRowContext(ctx,
		`SELECT id, title, jurisdiction, total_hours, created_at FROM courses WHERE id=$1`, id).
		Scan(&c.ID, &c.Title, &c.Jurisdiction, &c.TotalHours, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, apperr.ErrNotFound.With("course not found")
	}
	return c, err
}

// Units returns the course's units ordered by sequence.
func (s *SQLStore) Units(ctx context.Context, q db.Querier, courseID string) ([]Unit, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, course_id, sequence, title, required_hours FROM units WHERE course_id=$1 ORDER BY sequence`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.CourseID, &u.Sequence, &u.Title, &u.RequiredHours); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Lessons returns every lesson in the course, ordered by unit then lesson sequence.
func (s *SQLStore) Lessons(ctx context.Context, q db.Querier, courseID string) ([]Lesson, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT l.id, l.unit_id, l.sequence, l.title
		  FROM lessons l
		  JOIN units u ON u.id = l.unit_id
		 WHERE u.course_id=$1
		 ORDER BY u.sequence, l.sequence`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.UnitID, &l.Sequence, &l.Title); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) Lesson(ctx context.Context, q db.Querier, id string) (Lesson, Unit, error) {
	var l Lesson
	var u Unit
	err := q.QueryRowContext(ctx, `
		SELECT l.id, l.unit_id, l.sequence, l.title, u.id, u.course_id, u.sequence, u.title, u.required_hours
		  FROM lessons l
		  JOIN units u ON u.id = l.unit_id
		 WHERE l.id=$1`, id).
		Scan(&l.ID, &l.UnitID, &l.Sequence, &l.Title, &u.ID, &u.CourseID, &u.Sequence, &u.Title, &u.RequiredHours)
	if errors.Is(err, sql.ErrNoRows) {
		return Lesson{}, Unit{}, apperr.ErrNotFound.With("lesson not found")
	}
	return l, u, err
}

// PutCourse upserts a course tree. Missing ids are generated; unit and lesson
// sequences default to their position in the definition.
func (s *SQLStore) PutCourse(ctx context.Context, q db.Querier, def CourseDef) (CourseDef, error) {
	if strings.TrimSpace(def.Title) == "" {
		return def, apperr.ErrInvalid.With("course title required")
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Jurisdiction = strings.ToUpper(strings.TrimSpace(def.Jurisdiction))
	if def.CreatedAt == 0 {
		def.CreatedAt = time.Now().Unix()
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO courses (id, title, jurisdiction, total_hours, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, jurisdiction=EXCLUDED.jurisdiction, total_hours=EXCLUDED.total_hours`,
		def.ID, def.Title, def.Jurisdiction, def.TotalHours, def.CreatedAt); err != nil {
		return def, fmt.Errorf("put course: %w", err)
	}
	for i := range def.Units {
		u := &def.Units[i]
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		if u.Sequence == 0 {
			u.Sequence = i + 1
		}
		u.CourseID = def.ID
		if _, err := q.ExecContext(ctx, `
			INSERT INTO units (id, course_id, sequence, title, required_hours)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, required_hours=EXCLUDED.required_hours`,
			u.ID, u.CourseID, u.Sequence, u.Title, u.RequiredHours); err != nil {
			return def, fmt.Errorf("put unit %d: %w", u.Sequence, err)
		}
		for j := range u.Lessons {
			l := &u.Lessons[j]
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if l.Sequence == 0 {
				l.Sequence = j + 1
			}
			l.UnitID = u.ID
			if _, err := q.ExecContext(ctx, `
				INSERT INTO lessons (id, unit_id, sequence, title)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
				l.ID, l.UnitID, l.Sequence, l.Title); err != nil {
				return def, fmt.Errorf("put lesson %d/%d: %w", u.Sequence, l.Sequence, err)
			}
		}
	}
	return def, nil
}
