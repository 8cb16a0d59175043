// Package progress tracks per-enrollment unit and lesson state: which units are
// unlocked, how long each lesson was studied, and the enrollment aggregates
// derived from both.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/enrollment"
)

// Enrollments is the part of the enrollment store the tracker writes through.
type Enrollments interface {
	Get(ctx context.Context, q db.Querier, id string) (enrollment.Enrollment, error)
	UpdateProgress(ctx context.Context, q db.Querier, id string, currentUnit, pct, hours int) error
	AddTimeSpent(ctx context.Context, q db.Querier, id string, secs int64) error
	ResetProgress(ctx context.Context, q db.Querier, id string) error
}

type Tracker struct {
	catalog     catalog.Reader
	enrollments Enrollments
	cfg         config.Progress
	now         func() time.Time
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func NewTracker(cat catalog.Reader, enr Enrollments, cfg config.Progress, opts ...Option) *Tracker {
	t := &Tracker{catalog: cat, enrollments: enr, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) stamp() int64 { return t.now().Unix() }

const unitCols = `enrollment_id, unit_id, sequence, status, lessons_completed, quiz_passed, quiz_best_score,
	quiz_attempts, time_spent_sec, started_at, completed_at`

func scanUnit(sc interface{ Scan(...any) error }) (UnitProgress, error) {
	var u UnitProgress
	var started, completed sql.NullInt64
	if err := sc.Scan(&u.EnrollmentID, &u.UnitID, &u.Sequence, &u.Status, &u.LessonsCompleted, &u.QuizPassed,
		&u.QuizBestScore, &u.QuizAttempts, &u.TimeSpentSec, &started, &completed); err != nil {
		return UnitProgress{}, err
	}
	u.StartedAt = db.Time(started)
	u.CompletedAt = db.Time(completed)
	return u, nil
}

// EnsureInitialized creates one row per unit for a fresh enrollment. The lowest
// sequence starts in progress; the rest start locked.
func (t *Tracker) EnsureInitialized(ctx context.Context, q db.Querier, enrollmentID string, units []catalog.Unit) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM unit_progress WHERE enrollment_id=$1`, enrollmentID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return apperr.ErrDuplicateProgress
	}
	first := -1
	for i, u := range units {
		if first < 0 || u.Sequence < units[first].Sequence {
			first = i
		}
	}
	now := t.stamp()
	for i, u := range units {
		status, started := StatusLocked, sql.NullInt64{}
		if i == first {
			status, started = StatusInProgress, sql.NullInt64{Int64: now, Valid: true}
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO unit_progress (enrollment_id, unit_id, sequence, status, started_at)
			VALUES ($1,$2,$3,$4,$5)`,
			enrollmentID, u.ID, u.Sequence, string(status), started); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.ErrDuplicateProgress
			}
			return fmt.Errorf("init unit %d: %w", u.Sequence, err)
		}
	}
	return nil
}

// Unit returns one unit's progress row.
func (t *Tracker) Unit(ctx context.Context, q db.Querier, enrollmentID, unitID string) (UnitProgress, error) {
	u, err := scanUnit(q.QueryRowContext(ctx,
		`SELECT `+unitCols+` FROM unit_progress WHERE enrollment_id=$1 AND unit_id=$2`, enrollmentID, unitID))
	if errors.Is(err, sql.ErrNoRows) {
		return UnitProgress{}, apperr.ErrNotFound.With("unit progress not found")
	}
	return u, err
}

// Units returns the enrollment's unit rows ordered by sequence.
func (t *Tracker) Units(ctx context.Context, q db.Querier, enrollmentID string) ([]UnitProgress, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+unitCols+` FROM unit_progress WHERE enrollment_id=$1 ORDER BY sequence`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnitProgress
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (t *Tracker) Lessons(ctx context.Context, q db.Querier, enrollmentID string) ([]LessonProgress, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT enrollment_id, lesson_id, unit_id, completed, time_spent_sec, completed_at
		  FROM lesson_progress WHERE enrollment_id=$1 ORDER BY unit_id, lesson_id`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LessonProgress
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLesson(sc interface{ Scan(...any) error }) (LessonProgress, error) {
	var l LessonProgress
	var completed sql.NullInt64
	if err := sc.Scan(&l.EnrollmentID, &l.LessonID, &l.UnitID, &l.Completed, &l.TimeSpentSec, &completed); err != nil {
		return LessonProgress{}, err
	}
	l.CompletedAt = db.Time(completed)
	return l, nil
}

func (t *Tracker) lesson(ctx context.Context, q db.Querier, enrollmentID, lessonID string) (LessonProgress, bool, error) {
	l, err := scanLesson(q.QueryRowContext(ctx, `
		SELECT enrollment_id, lesson_id, unit_id, completed, time_spent_sec, completed_at
		  FROM lesson_progress WHERE enrollment_id=$1 AND lesson_id=$2`, enrollmentID, lessonID))
	if errors.Is(err, sql.ErrNoRows) {
		return LessonProgress{EnrollmentID: enrollmentID, LessonID: lessonID}, false, nil
	}
	return l, err == nil, err
}

// openLesson resolves the lesson inside the enrollment's course and requires its
// unit to be unlocked.
func (t *Tracker) openLesson(ctx context.Context, q db.Querier, enr enrollment.Enrollment, lessonID string) (catalog.Unit, error) {
	_, unit, err := t.catalog.Lesson(ctx, q, lessonID)
	if err != nil {
		return catalog.Unit{}, err
	}
	if unit.CourseID != enr.CourseID {
		return catalog.Unit{}, apperr.ErrLessonNotInCourse
	}
	up, err := t.Unit(ctx, q, enr.ID, unit.ID)
	if err != nil {
		return catalog.Unit{}, err
	}
	if up.Status == StatusLocked {
		return catalog.Unit{}, apperr.ErrUnitLocked
	}
	return unit, nil
}

// RecordTimeSpent accumulates study time on a lesson. Each call credits at most
// the configured increment cap; the credited amount is returned.
func (t *Tracker) RecordTimeSpent(ctx context.Context, q db.Querier, enrollmentID, lessonID string, seconds int64) (LessonProgress, int64, error) {
	if seconds < 0 {
		return LessonProgress{}, 0, apperr.ErrInvalid.With("seconds must not be negative")
	}
	enr, err := t.enrollments.Get(ctx, q, enrollmentID)
	if err != nil {
		return LessonProgress{}, 0, err
	}
	unit, err := t.openLesson(ctx, q, enr, lessonID)
	if err != nil {
		return LessonProgress{}, 0, err
	}
	credit := seconds
	if t.cfg.MaxIncrementSecs > 0 && credit > t.cfg.MaxIncrementSecs {
		credit = t.cfg.MaxIncrementSecs
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO lesson_progress (enrollment_id, lesson_id, unit_id, time_spent_sec)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET time_spent_sec = lesson_progress.time_spent_sec + EXCLUDED.time_spent_sec`,
		enrollmentID, lessonID, unit.ID, credit); err != nil {
		return LessonProgress{}, 0, fmt.Errorf("lesson time: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE unit_progress SET time_spent_sec=time_spent_sec+$1 WHERE enrollment_id=$2 AND unit_id=$3`,
		credit, enrollmentID, unit.ID); err != nil {
		return LessonProgress{}, 0, err
	}
	if err := t.enrollments.AddTimeSpent(ctx, q, enrollmentID, credit); err != nil {
		return LessonProgress{}, 0, err
	}
	l, _, err := t.lesson(ctx, q, enrollmentID, lessonID)
	return l, credit, err
}

// CompleteLesson marks a lesson done once enough time has been recorded on it,
// then refreshes the enrollment aggregates. Completing twice is a no-op.
func (t *Tracker) CompleteLesson(ctx context.Context, q db.Querier, enrollmentID, lessonID string) (LessonProgress, Aggregate, error) {
	enr, err := t.enrollments.Get(ctx, q, enrollmentID)
	if err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	unit, err := t.openLesson(ctx, q, enr, lessonID)
	if err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	l, _, err := t.lesson(ctx, q, enrollmentID, lessonID)
	if err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	if l.Completed {
		agg, err := t.Recompute(ctx, q, enrollmentID)
		return l, agg, err
	}
	if l.TimeSpentSec < t.cfg.MinLessonSeconds {
		return l, Aggregate{}, apperr.ErrMinimumTimeNotMet.With(
			fmt.Sprintf("%d of %d seconds recorded", l.TimeSpentSec, t.cfg.MinLessonSeconds))
	}
	now := t.stamp()
	if _, err := q.ExecContext(ctx, `
		UPDATE lesson_progress SET completed=TRUE, completed_at=$1
		 WHERE enrollment_id=$2 AND lesson_id=$3 AND completed=FALSE`, now, enrollmentID, lessonID); err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress
		   SET lessons_completed = (SELECT COUNT(*) FROM lesson_progress
		                             WHERE enrollment_id=$1 AND unit_id=$2 AND completed=TRUE)
		 WHERE enrollment_id=$1 AND unit_id=$2`, enrollmentID, unit.ID); err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	agg, err := t.Recompute(ctx, q, enrollmentID)
	if err != nil {
		return LessonProgress{}, Aggregate{}, err
	}
	l, _, err = t.lesson(ctx, q, enrollmentID, lessonID)
	return l, agg, err
}

// CheckCompletion reports whether every lesson of the unit is complete and its quiz passed.
func (t *Tracker) CheckCompletion(ctx context.Context, q db.Querier, enrollmentID, unitID string) (Check, error) {
	up, err := t.Unit(ctx, q, enrollmentID, unitID)
	if err != nil {
		return Check{}, err
	}
	var total, done int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons WHERE unit_id=$1`, unitID).Scan(&total); err != nil {
		return Check{}, err
	}
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id=$1 AND unit_id=$2 AND completed=TRUE`,
		enrollmentID, unitID).Scan(&done); err != nil {
		return Check{}, err
	}
	return Check{LessonsComplete: done >= total, QuizPassed: up.QuizPassed}, nil
}

// MarkUnitPassed completes the unit and keeps the best quiz score. Passing an
// already completed unit again only updates the score and attempt count.
func (t *Tracker) MarkUnitPassed(ctx context.Context, q db.Querier, enrollmentID, unitID string, score int) (UnitProgress, error) {
	up, err := t.Unit(ctx, q, enrollmentID, unitID)
	if err != nil {
		return UnitProgress{}, err
	}
	if up.Status == StatusLocked {
		return UnitProgress{}, apperr.ErrUnitLocked
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress
		   SET status=$1, quiz_passed=TRUE,
		       quiz_best_score = CASE WHEN quiz_best_score < $2 THEN $2 ELSE quiz_best_score END,
		       quiz_attempts = quiz_attempts + 1,
		       completed_at = COALESCE(completed_at, $3)
		 WHERE enrollment_id=$4 AND unit_id=$5`,
		string(StatusCompleted), score, t.stamp(), enrollmentID, unitID); err != nil {
		return UnitProgress{}, fmt.Errorf("mark unit passed: %w", err)
	}
	return t.Unit(ctx, q, enrollmentID, unitID)
}

// RecordQuizFailure counts a failed quiz attempt without changing the unit status.
func (t *Tracker) RecordQuizFailure(ctx context.Context, q db.Querier, enrollmentID, unitID string, score int) (UnitProgress, error) {
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress
		   SET quiz_best_score = CASE WHEN quiz_best_score < $1 THEN $1 ELSE quiz_best_score END,
		       quiz_attempts = quiz_attempts + 1
		 WHERE enrollment_id=$2 AND unit_id=$3`, score, enrollmentID, unitID); err != nil {
		return UnitProgress{}, err
	}
	return t.Unit(ctx, q, enrollmentID, unitID)
}

// UnlockNext moves the unit after unitID from locked to in progress. It reports
// false when there is no next unit or it is already unlocked.
func (t *Tracker) UnlockNext(ctx context.Context, q db.Querier, enrollmentID, unitID string) (UnitProgress, bool, error) {
	cur, err := t.Unit(ctx, q, enrollmentID, unitID)
	if err != nil {
		return UnitProgress{}, false, err
	}
	if cur.Status != StatusCompleted {
		return UnitProgress{}, false, apperr.ErrInvalid.With("unit must be completed before the next unlocks")
	}
	next, err := scanUnit(q.QueryRowContext(ctx, `
		SELECT `+unitCols+` FROM unit_progress
		 WHERE enrollment_id=$1 AND sequence > $2 ORDER BY sequence LIMIT 1`, enrollmentID, cur.Sequence))
	if errors.Is(err, sql.ErrNoRows) {
		return UnitProgress{}, false, nil
	}
	if err != nil {
		return UnitProgress{}, false, err
	}
	if next.Status != StatusLocked {
		return next, false, nil
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress SET status=$1, started_at=COALESCE(started_at, $2)
		 WHERE enrollment_id=$3 AND unit_id=$4 AND status=$5`,
		string(StatusInProgress), t.stamp(), enrollmentID, next.UnitID, string(StatusLocked)); err != nil {
		return UnitProgress{}, false, err
	}
	next, err = t.Unit(ctx, q, enrollmentID, next.UnitID)
	return next, err == nil, err
}

// Recompute derives progress percentage, credited hours and current unit from
// lesson completion, and stores them on the enrollment.
func (t *Tracker) Recompute(ctx context.Context, q db.Querier, enrollmentID string) (Aggregate, error) {
	enr, err := t.enrollments.Get(ctx, q, enrollmentID)
	if err != nil {
		return Aggregate{}, err
	}
	course, err := t.catalog.Course(ctx, q, enr.CourseID)
	if err != nil {
		return Aggregate{}, err
	}
	lessons, err := t.catalog.Lessons(ctx, q, enr.CourseID)
	if err != nil {
		return Aggregate{}, err
	}
	var agg Aggregate
	agg.LessonsTotal = len(lessons)
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE enrollment_id=$1 AND completed=TRUE`, enrollmentID).
		Scan(&agg.LessonsCompleted); err != nil {
		return Aggregate{}, err
	}
	if agg.LessonsTotal > 0 {
		ratio := float64(agg.LessonsCompleted) / float64(agg.LessonsTotal)
		agg.ProgressPct = int(math.Round(ratio * 100))
		agg.HoursCredited = int(math.Round(ratio * float64(course.TotalHours)))
	}
	if enr.Completed {
		agg.ProgressPct = 100
	}

	units, err := t.Units(ctx, q, enrollmentID)
	if err != nil {
		return Aggregate{}, err
	}
	agg.CurrentUnit = 1
	for _, u := range units {
		agg.CurrentUnit = u.Sequence
		if u.Status != StatusCompleted {
			break
		}
	}
	if err := t.enrollments.UpdateProgress(ctx, q, enrollmentID, agg.CurrentUnit, agg.ProgressPct, agg.HoursCredited); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// Override sets a unit's status directly. It is the only path that may move a
// unit backwards; completing a unit this way credits its quiz as passed.
func (t *Tracker) Override(ctx context.Context, q db.Querier, enrollmentID, unitID string, status Status) (UnitProgress, error) {
	if !status.Valid() {
		return UnitProgress{}, apperr.ErrInvalid.With("status must be locked, in_progress or completed")
	}
	if _, err := t.Unit(ctx, q, enrollmentID, unitID); err != nil {
		return UnitProgress{}, err
	}
	now := t.stamp()
	var err error
	switch status {
	case StatusCompleted:
		_, err = q.ExecContext(ctx, `
			UPDATE unit_progress SET status=$1, quiz_passed=TRUE, started_at=COALESCE(started_at, $2),
			       completed_at=COALESCE(completed_at, $2)
			 WHERE enrollment_id=$3 AND unit_id=$4`, string(status), now, enrollmentID, unitID)
	case StatusInProgress:
		_, err = q.ExecContext(ctx, `
			UPDATE unit_progress SET status=$1, quiz_passed=FALSE, started_at=COALESCE(started_at, $2), completed_at=NULL
			 WHERE enrollment_id=$3 AND unit_id=$4`, string(status), now, enrollmentID, unitID)
	default:
		_, err = q.ExecContext(ctx, `
			UPDATE unit_progress SET status=$1, quiz_passed=FALSE, completed_at=NULL
			 WHERE enrollment_id=$2 AND unit_id=$3`, string(status), enrollmentID, unitID)
	}
	if err != nil {
		return UnitProgress{}, fmt.Errorf("override unit: %w", err)
	}
	return t.Unit(ctx, q, enrollmentID, unitID)
}

// Reset returns the enrollment to its freshly initialized state: lesson progress
// is cleared and only the first unit is open. Quiz attempt counts and the final
// exam counters are kept.
func (t *Tracker) Reset(ctx context.Context, q db.Querier, enrollmentID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM lesson_progress WHERE enrollment_id=$1`, enrollmentID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress
		   SET status=$1, lessons_completed=0, quiz_passed=FALSE, quiz_best_score=0, time_spent_sec=0,
		       started_at=NULL, completed_at=NULL
		 WHERE enrollment_id=$2`, string(StatusLocked), enrollmentID); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE unit_progress SET status=$1, started_at=$2
		 WHERE enrollment_id=$3
		   AND sequence = (SELECT MIN(sequence) FROM unit_progress WHERE enrollment_id=$3)`,
		string(StatusInProgress), t.stamp(), enrollmentID); err != nil {
		return err
	}
	return t.enrollments.ResetProgress(ctx, q, enrollmentID)
}
