// Package enrollment persists learner enrollments, including the final exam
// counters that the retake policy advances with compare-and-swap.
package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/db"
)

type SQLStore struct{}

func NewSQLStore() *SQLStore { return &SQLStore{} }

const cols = `id, learner_id, course_id, enrolled_at, expires_at, current_unit, time_spent_sec, hours_credited,
	progress_pct, final_exam_passed, final_exam_best_score, final_exam_attempts, first_exam_attempt_at,
	last_exam_attempt_at, retest_eligible_at, policy_ack_at, completed, completed_at`

func scan(sc interface{ Scan(...any) error }) (Enrollment, error) {
	var e Enrollment
	var enrolled int64
	var expires, first, last, retest, ack, completed sql.NullInt64
	if err := sc.Scan(&e.ID, &e.LearnerID, &e.CourseID, &enrolled, &expires, &e.CurrentUnit, &e.TimeSpentSec,
		&e.HoursCredited, &e.ProgressPct, &e.FinalExamPassed, &e.FinalExamBestScore, &e.FinalExamAttempts,
		&first, &last, &retest, &ack, &e.Completed, &completed); err != nil {
		return Enrollment{}, err
	}
	e.EnrolledAt = time.Unix(enrolled, 0).UTC()
	e.ExpiresAt = db.Time(expires)
	e.FirstExamAttemptAt = db.Time(first)
	e.LastExamAttemptAt = db.Time(last)
	e.RetestEligibleAt = db.Time(retest)
	e.PolicyAckAt = db.Time(ack)
	e.CompletedAt = db.Time(completed)
	return e, nil
}

// Create inserts a new enrollment positioned at unit 1.
func (s *SQLStore) Create(ctx context.Context, q db.Querier, e Enrollment) (Enrollment, error) {
	if e.LearnerID == "" || e.CourseID == "" {
		return e, apperr.ErrInvalid.With("learner_id and course_id required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	e.EnrolledAt = e.EnrolledAt.UTC().Truncate(time.Second)
	e.CurrentUnit = 1
	if _, err := q.ExecContext(ctx, `
		INSERT INTO enrollments (id, learner_id, course_id, enrolled_at, expires_at, current_unit)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.LearnerID, e.CourseID, e.EnrolledAt.Unix(), db.Unix(e.ExpiresAt), e.CurrentUnit); err != nil {
		if db.IsUniqueViolation(err) {
			return e, apperr.ErrDuplicateProgress.With("enrollment already exists")
		}
		return e, fmt.Errorf("create enrollment: %w", err)
	}
	return e, nil
}

func (s *SQLStore) Get(ctx context.Context, q db.Querier, id string) (Enrollment, error) {
	e, err := scan(q.QueryRowContext(ctx, `SELECT `+cols+` FROM enrollments WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, apperr.ErrNotFound.With("enrollment not found")
	}
	return e, err
}

// ForLearner lists a learner's enrollments, newest first.
func (s *SQLStore) ForLearner(ctx context.Context, q db.Querier, learnerID string) ([]Enrollment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+cols+` FROM enrollments WHERE learner_id=$1 ORDER BY enrolled_at DESC, id`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Enrollment
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateProgress stores the derived aggregates recomputed from unit and lesson progress.
func (s *SQLStore) UpdateProgress(ctx context.Context, q db.Querier, id string, currentUnit, pct, hours int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE enrollments SET current_unit=$1, progress_pct=$2, hours_credited=$3 WHERE id=$4`,
		currentUnit, pct, hours, id)
	return err
}

func (s *SQLStore) AddTimeSpent(ctx context.Context, q db.Querier, id string, secs int64) error {
	_, err := q.ExecContext(ctx, `UPDATE enrollments SET time_spent_sec=time_spent_sec+$1 WHERE id=$2`, secs, id)
	return err
}

func (s *SQLStore) LoadExamState(ctx context.Context, q db.Querier, id string) (ExamState, error) {
	e, err := s.Get(ctx, q, id)
	if err != nil {
		return ExamState{}, err
	}
	return e.ExamState(), nil
}

// SwapExamState writes next only if the stored attempt counter still equals
// expected. It reports false when another writer got there first.
func (s *SQLStore) SwapExamState(ctx context.Context, q db.Querier, id string, expected int, next ExamState) (bool, error) {
	r, err := q.ExecContext(ctx, `
		UPDATE enrollments
		   SET final_exam_attempts=$1, first_exam_attempt_at=$2, last_exam_attempt_at=$3, retest_eligible_at=$4
		 WHERE id=$5 AND final_exam_attempts=$6`,
		next.Attempts, db.Unix(next.FirstAttemptAt), db.Unix(next.LastAttemptAt), db.Unix(next.RetestEligibleAt),
		id, expected)
	if err != nil {
		return false, fmt.Errorf("swap exam state: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordFinalResult keeps the best final exam score. A pass completes the
// enrollment at 100 %.
func (s *SQLStore) RecordFinalResult(ctx context.Context, q db.Querier, id string, score int, passed bool, at time.Time) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE enrollments
		   SET final_exam_best_score = CASE WHEN final_exam_best_score < $1 THEN $1 ELSE final_exam_best_score END
		 WHERE id=$2`, score, id); err != nil {
		return err
	}
	if !passed {
		return nil
	}
	_, err := q.ExecContext(ctx, `
		UPDATE enrollments
		   SET final_exam_passed=TRUE, completed=TRUE, completed_at=$1, progress_pct=100
		 WHERE id=$2 AND completed=FALSE`, at.Unix(), id)
	return err
}

// AcknowledgePolicy stamps the first acknowledgment; repeats keep the original time.
func (s *SQLStore) AcknowledgePolicy(ctx context.Context, q db.Querier, id string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE enrollments SET policy_ack_at=$1 WHERE id=$2 AND policy_ack_at IS NULL`, at.Unix(), id)
	return err
}

// ResetProgress zeroes learning aggregates. Final exam counters are untouched so
// a reset never restores retake eligibility.
func (s *SQLStore) ResetProgress(ctx context.Context, q db.Querier, id string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE enrollments SET current_unit=1, time_spent_sec=0, hours_credited=0, progress_pct=0
		 WHERE id=$1 AND completed=FALSE`, id)
	return err
}
