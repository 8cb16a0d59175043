// Package retake decides whether a final exam attempt may start and reserves
// attempt slots atomically.
package retake

import (
	"context"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/enrollment"
)

// Decision is the outcome of evaluating an enrollment against its jurisdiction's rules.
type Decision struct {
	Permitted         bool       `json:"permitted"`
	Reason            string     `json:"reason,omitempty"`
	Form              string     `json:"form,omitempty"`
	AttemptNumber     int        `json:"attempt_number,omitempty"` // the attempt that would start next
	AttemptsUsed      int        `json:"attempts_used"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	RetestEligibleAt  *time.Time `json:"retest_eligible_at,omitempty"`
	WindowClosesAt    *time.Time `json:"window_closes_at,omitempty"`
	Jurisdiction      string     `json:"jurisdiction,omitempty"`
	RequiresAck       bool       `json:"requires_ack"`
}

// Err converts a denial into its reason-coded error; nil when permitted.
func (d Decision) Err() error {
	if d.Permitted {
		return nil
	}
	var e *apperr.Error
	switch d.Reason {
	case apperr.ErrFinalExamPassed.Code:
		e = apperr.ErrFinalExamPassed
	case apperr.ErrCourseRepeatRequired.Code:
		e = apperr.ErrCourseRepeatRequired
	case apperr.ErrCooldownActive.Code:
		e = apperr.ErrCooldownActive
	default:
		e = apperr.ErrAttemptLimitExceeded
	}
	if d.RetestEligibleAt != nil && d.Reason == apperr.ErrCooldownActive.Code {
		return e.RetryAfter(*d.RetestEligibleAt)
	}
	return e
}

// AttemptCounter is the persisted final exam state, advanced only by compare-and-swap.
type AttemptCounter interface {
	LoadExamState(ctx context.Context, q db.Querier, enrollmentID string) (enrollment.ExamState, error)
	SwapExamState(ctx context.Context, q db.Querier, enrollmentID string, expected int, next enrollment.ExamState) (bool, error)
}

type Engine struct {
	cfg config.Retake
	now func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func New(cfg config.Retake, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the rule set for a jurisdiction code.
func (e *Engine) Rules(code string) config.Jurisdiction { return e.cfg.For(code) }

func (e *Engine) startOfDay(t time.Time) time.Time {
	t = t.In(e.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.cfg.Location)
}

func (e *Engine) plusDays(t time.Time, days int) time.Time {
	return e.startOfDay(t).AddDate(0, 0, days)
}

// Evaluate applies the rules to st at now. It has no side effects; forms must
// already be in rotation order.
func (e *Engine) Evaluate(st enrollment.ExamState, j config.Jurisdiction, forms []string, now time.Time) Decision {
	d := Decision{
		AttemptsUsed: st.Attempts,
		Jurisdiction: j.Code,
		RequiresAck:  j.RequireAck,
	}
	d.AttemptsRemaining = j.MaxAttempts - st.Attempts
	if d.AttemptsRemaining < 0 {
		d.AttemptsRemaining = 0
	}
	if st.Attempts > 0 && st.FirstAttemptAt != nil && j.WindowDays > 0 {
		wc := e.plusDays(*st.FirstAttemptAt, j.WindowDays)
		d.WindowClosesAt = &wc
	}

	switch {
	case st.Passed:
		d.Reason = apperr.ErrFinalExamPassed.Code
		d.AttemptsRemaining = 0
		return d
	case st.Attempts >= j.MaxAttempts:
		// the cap is final; past the window the course itself must be repeated
		d.Reason = apperr.ErrAttemptLimitExceeded.Code
		if d.WindowClosesAt != nil && !now.Before(*d.WindowClosesAt) {
			d.Reason = apperr.ErrCourseRepeatRequired.Code
		}
		return d
	}

	if st.Attempts > 0 && st.LastAttemptAt != nil && j.CooldownDays > 0 {
		eligible := e.plusDays(*st.LastAttemptAt, j.CooldownDays)
		if now.Before(eligible) {
			d.Reason = apperr.ErrCooldownActive.Code
			d.RetestEligibleAt = &eligible
			return d
		}
	}

	d.Permitted = true
	d.AttemptNumber = st.Attempts + 1
	d.Form = FormFor(d.AttemptNumber, forms)
	return d
}

// FormFor rotates through forms: attempt n uses forms[(n-1) mod len(forms)].
func FormFor(attempt int, forms []string) string {
	if len(forms) == 0 || attempt < 1 {
		return ""
	}
	return forms[(attempt-1)%len(forms)]
}

// Reserve evaluates and claims the next attempt slot with a conditional update
// on the stored counter, re-reading and re-evaluating when another writer wins.
// On success the returned decision describes the reserved attempt.
func (e *Engine) Reserve(ctx context.Context, q db.Querier, c AttemptCounter, enrollmentID string, j config.Jurisdiction, forms []string) (Decision, error) {
	retries := e.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	for i := 0; i <= retries; i++ {
		st, err := c.LoadExamState(ctx, q, enrollmentID)
		if err != nil {
			return Decision{}, err
		}
		now := e.now()
		d := e.Evaluate(st, j, forms, now)
		if !d.Permitted {
			return d, d.Err()
		}

		next := st
		next.Attempts = st.Attempts + 1
		if next.FirstAttemptAt == nil {
			first := now.UTC()
			next.FirstAttemptAt = &first
		}
		last := now.UTC()
		next.LastAttemptAt = &last
		eligible := e.plusDays(now, j.CooldownDays)
		next.RetestEligibleAt = &eligible

		ok, err := c.SwapExamState(ctx, q, enrollmentID, st.Attempts, next)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			d.AttemptsUsed = next.Attempts
			d.AttemptsRemaining = j.MaxAttempts - next.Attempts
			d.RetestEligibleAt = next.RetestEligibleAt
			if d.WindowClosesAt == nil && j.WindowDays > 0 {
				wc := e.plusDays(*next.FirstAttemptAt, j.WindowDays)
				d.WindowClosesAt = &wc
			}
			return d, nil
		}
	}
	return Decision{}, apperr.ErrReservationConflict
}
