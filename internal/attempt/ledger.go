// Package attempt records quiz and final exam attempts: the sampled question
// set, each answer as it arrives, and the final score.
package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/grading"
	"github.com/mind-engage/coursegate/internal/questionpool"
)

// Source resolves banks and their questions for grading.
type Source interface {
	Bank(ctx context.Context, q db.Querier, id string) (questionpool.Bank, error)
	QuestionsForBank(ctx context.Context, q db.Querier, bankID string) (map[string]questionpool.Question, error)
}

type Ledger struct {
	src    Source
	grader grading.Grader
	now    func() time.Time
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithGrader(g grading.Grader) Option { return func(l *Ledger) { l.grader = g } }

func NewLedger(src Source, opts ...Option) *Ledger {
	l := &Ledger{src: src, grader: grading.NewDefaultGrader(), now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

const attemptCols = `id, enrollment_id, bank_id, learner_id, kind, form, attempt_number, question_ids_json,
	total_questions, answered_count, correct_count, score, passed, started_at, completed_at, time_spent_sec`

func scanAttempt(sc interface{ Scan(...any) error }) (Attempt, error) {
	var a Attempt
	var ids string
	var started int64
	var completed sql.NullInt64
	if err := sc.Scan(&a.ID, &a.EnrollmentID, &a.BankID, &a.LearnerID, &a.Kind, &a.Form, &a.AttemptNumber, &ids,
		&a.TotalQuestions, &a.AnsweredCount, &a.CorrectCount, &a.Score, &a.Passed, &started, &completed,
		&a.TimeSpentSec); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ids), &a.QuestionIDs); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s question ids: %w", a.ID, err)
	}
	a.StartedAt = time.Unix(started, 0).UTC()
	a.CompletedAt = db.Time(completed)
	return a, nil
}

// Open stores a new attempt over the given questions with a zero score.
func (l *Ledger) Open(ctx context.Context, q db.Querier, p OpenParams) (Attempt, error) {
	if len(p.Questions) == 0 {
		return Attempt{}, apperr.ErrInsufficientQuestions
	}
	n := p.AttemptNumber
	if n == 0 {
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM quiz_attempts WHERE enrollment_id=$1 AND bank_id=$2`,
			p.EnrollmentID, p.Bank.ID).Scan(&n); err != nil {
			return Attempt{}, err
		}
		n++
	}
	a := Attempt{
		ID:             uuid.NewString(),
		EnrollmentID:   p.EnrollmentID,
		BankID:         p.Bank.ID,
		LearnerID:      p.LearnerID,
		Kind:           p.Bank.Kind,
		Form:           p.Bank.Form,
		AttemptNumber:  n,
		TotalQuestions: len(p.Questions),
		StartedAt:      l.now().UTC().Truncate(time.Second),
	}
	for _, x := range p.Questions {
		a.QuestionIDs = append(a.QuestionIDs, x.ID)
	}
	ids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return Attempt{}, err
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO quiz_attempts (id, enrollment_id, bank_id, learner_id, kind, form, attempt_number,
			question_ids_json, total_questions, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.EnrollmentID, a.BankID, a.LearnerID, string(a.Kind), a.Form, a.AttemptNumber,
		string(ids), a.TotalQuestions, a.StartedAt.Unix()); err != nil {
		return Attempt{}, fmt.Errorf("open attempt: %w", err)
	}
	return a, nil
}

func (l *Ledger) Get(ctx context.Context, q db.Querier, id string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM quiz_attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, apperr.ErrNotFound.With("attempt not found")
	}
	return a, err
}

// RecordAnswer grades and stores one answer. The returned question carries the
// correct index and explanation; callers decide how much of it to reveal.
func (l *Ledger) RecordAnswer(ctx context.Context, q db.Querier, attemptID, questionID string, selected int) (Answer, questionpool.Question, error) {
	a, err := l.Get(ctx, q, attemptID)
	if err != nil {
		return Answer{}, questionpool.Question{}, err
	}
	if a.Completed() {
		return Answer{}, questionpool.Question{}, apperr.ErrAttemptAlreadyCompleted
	}
	if !a.HasQuestion(questionID) {
		return Answer{}, questionpool.Question{}, apperr.ErrUnknownQuestion
	}
	byID, err := l.src.QuestionsForBank(ctx, q, a.BankID)
	if err != nil {
		return Answer{}, questionpool.Question{}, err
	}
	qq, ok := byID[questionID]
	if !ok {
		return Answer{}, questionpool.Question{}, apperr.ErrUnknownQuestion
	}
	res, err := l.grader.Grade(ctx, grading.Q{Type: qq.Type, OptionCount: len(qq.Options), CorrectIndex: qq.CorrectIndex}, selected)
	if errors.Is(err, grading.ErrOptionOutOfRange) {
		return Answer{}, questionpool.Question{}, apperr.ErrInvalidOption
	}
	if err != nil {
		return Answer{}, questionpool.Question{}, err
	}

	var dup int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM quiz_answers WHERE attempt_id=$1 AND question_id=$2`, a.ID, questionID).Scan(&dup)
	if err == nil {
		return Answer{}, questionpool.Question{}, apperr.ErrAnswerAlreadyRecorded
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Answer{}, questionpool.Question{}, err
	}

	// Touch the attempt row first so a concurrent Complete either sees this
	// answer or makes this update miss.
	r, err := q.ExecContext(ctx,
		`UPDATE quiz_attempts SET answered_count=answered_count+1 WHERE id=$1 AND completed_at IS NULL`, a.ID)
	if err != nil {
		return Answer{}, questionpool.Question{}, err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return Answer{}, questionpool.Question{}, apperr.ErrAttemptAlreadyCompleted
	}

	ans := Answer{
		ID:         uuid.NewString(),
		AttemptID:  a.ID,
		QuestionID: questionID,
		Selected:   selected,
		Correct:    res.Correct,
		AnsweredAt: l.now().UTC().Truncate(time.Second),
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO quiz_answers (id, attempt_id, question_id, selected_option, is_correct, answered_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		ans.ID, ans.AttemptID, ans.QuestionID, ans.Selected, ans.Correct, ans.AnsweredAt.Unix()); err != nil {
		if db.IsUniqueViolation(err) {
			return Answer{}, questionpool.Question{}, apperr.ErrAnswerAlreadyRecorded
		}
		return Answer{}, questionpool.Question{}, fmt.Errorf("record answer: %w", err)
	}
	return ans, qq, nil
}

// Complete closes the attempt and scores it. Reported time is clamped to the
// wall-clock time since the attempt started.
func (l *Ledger) Complete(ctx context.Context, q db.Querier, attemptID string, reportedSec int64) (Attempt, error) {
	a, err := l.Get(ctx, q, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Completed() {
		return Attempt{}, apperr.ErrAttemptAlreadyCompleted
	}
	bank, err := l.src.Bank(ctx, q, a.BankID)
	if err != nil {
		return Attempt{}, err
	}

	now := l.now().UTC().Truncate(time.Second)
	spent := clampSpent(reportedSec, now.Sub(a.StartedAt))

	r, err := q.ExecContext(ctx,
		`UPDATE quiz_attempts SET completed_at=$1, time_spent_sec=$2 WHERE id=$3 AND completed_at IS NULL`,
		now.Unix(), spent, a.ID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return Attempt{}, apperr.ErrAttemptAlreadyCompleted
	}

	var correct int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_answers WHERE attempt_id=$1 AND is_correct=TRUE`, a.ID).Scan(&correct); err != nil {
		return Attempt{}, err
	}
	score := grading.Score(correct, a.TotalQuestions)
	passed := score >= bank.PassingScore
	if _, err := q.ExecContext(ctx,
		`UPDATE quiz_attempts SET correct_count=$1, score=$2, passed=$3 WHERE id=$4`,
		correct, score, passed, a.ID); err != nil {
		return Attempt{}, fmt.Errorf("score attempt: %w", err)
	}
	return l.Get(ctx, q, a.ID)
}

func clampSpent(reported int64, elapsed time.Duration) int64 {
	limit := int64(elapsed / time.Second)
	if limit < 0 {
		limit = 0
	}
	switch {
	case reported < 0:
		return 0
	case reported > limit:
		return limit
	}
	return reported
}

func (l *Ledger) list(ctx context.Context, q db.Querier, where string, args ...any) ([]Attempt, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM quiz_attempts WHERE `+where+` ORDER BY started_at DESC, attempt_number DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// History lists the enrollment's attempts on a bank, newest first.
func (l *Ledger) History(ctx context.Context, q db.Querier, enrollmentID, bankID string) ([]Attempt, error) {
	return l.list(ctx, q, `enrollment_id=$1 AND bank_id=$2`, enrollmentID, bankID)
}

// All lists every attempt of the enrollment, newest first.
func (l *Ledger) All(ctx context.Context, q db.Querier, enrollmentID string) ([]Attempt, error) {
	return l.list(ctx, q, `enrollment_id=$1`, enrollmentID)
}

// OpenAttempt returns the enrollment's uncompleted attempt on the bank, if any.
func (l *Ledger) OpenAttempt(ctx context.Context, q db.Querier, enrollmentID, bankID string) (Attempt, bool, error) {
	return l.first(l.list(ctx, q, `enrollment_id=$1 AND bank_id=$2 AND completed_at IS NULL`, enrollmentID, bankID))
}

// OpenAttemptByKind is OpenAttempt across every bank of one kind, so a learner
// cannot hold form A and form B open at once.
func (l *Ledger) OpenAttemptByKind(ctx context.Context, q db.Querier, enrollmentID string, kind questionpool.Kind) (Attempt, bool, error) {
	return l.first(l.list(ctx, q, `enrollment_id=$1 AND kind=$2 AND completed_at IS NULL`, enrollmentID, string(kind)))
}

func (l *Ledger) first(as []Attempt, err error) (Attempt, bool, error) {
	if err != nil || len(as) == 0 {
		return Attempt{}, false, err
	}
	return as[0], true, nil
}

// Answers lists the recorded answers of an attempt in the order they arrived.
func (l *Ledger) Answers(ctx context.Context, q db.Querier, attemptID string) ([]Answer, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, attempt_id, question_id, selected_option, is_correct, answered_at
		  FROM quiz_answers WHERE attempt_id=$1 ORDER BY answered_at, id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		var a Answer
		var at int64
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.Selected, &a.Correct, &at); err != nil {
			return nil, err
		}
		a.AnsweredAt = time.Unix(at, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
