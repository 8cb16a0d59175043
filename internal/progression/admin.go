package progression

import (
	"context"
	"database/sql"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

// ResetEnrollment returns an unfinished enrollment to its first unit. Attempt
// history and final exam counters survive so a reset never buys extra retakes.
func (c *Coordinator) ResetEnrollment(ctx context.Context, a Actor, enrollmentID, reason string) (CourseProgress, error) {
	if err := requireAdmin(a); err != nil {
		return CourseProgress{}, err
	}
	err := c.tx(ctx, func(tx *sql.Tx) error {
		enr, err := c.enrollments.Get(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		if enr.Completed {
			return apperr.ErrEnrollmentCompleted
		}
		if err := c.tracker.Reset(ctx, tx, enr.ID); err != nil {
			return err
		}
		if _, err := c.tracker.Recompute(ctx, tx, enr.ID); err != nil {
			return err
		}
		return c.events.Append(ctx, tx, syncx.TypeProgressReset, enr.ID, map[string]any{
			"actor":      a.ID,
			"learner_id": enr.LearnerID,
			"reason":     reason,
		})
	})
	if err != nil {
		return CourseProgress{}, err
	}
	c.log.Warn("enrollment reset", "enrollment_id", enrollmentID, "actor", a.ID)
	return c.CourseProgress(ctx, a, enrollmentID)
}

// OverrideUnitStatus sets a unit's status regardless of the unlock order.
// Completing a unit this way also opens the next one.
func (c *Coordinator) OverrideUnitStatus(ctx context.Context, a Actor, enrollmentID, unitID string, status progress.Status, reason string) (progress.UnitProgress, error) {
	if err := requireAdmin(a); err != nil {
		return progress.UnitProgress{}, err
	}
	var out progress.UnitProgress
	err := c.tx(ctx, func(tx *sql.Tx) error {
		enr, err := c.enrollments.Get(ctx, tx, enrollmentID)
		if err != nil {
			return err
		}
		before, err := c.tracker.Unit(ctx, tx, enr.ID, unitID)
		if err != nil {
			return err
		}
		if out, err = c.tracker.Override(ctx, tx, enr.ID, unitID, status); err != nil {
			return err
		}
		data := map[string]any{
			"actor":   a.ID,
			"unit_id": unitID,
			"from":    before.Status,
			"to":      out.Status,
			"reason":  reason,
		}
		if out.Status == progress.StatusCompleted {
			// a completed unit never sits in front of a locked one
			next, unlocked, err := c.tracker.UnlockNext(ctx, tx, enr.ID, unitID)
			if err != nil {
				return err
			}
			if unlocked {
				data["unlocked_unit_id"] = next.UnitID
			}
		}
		if _, err := c.tracker.Recompute(ctx, tx, enr.ID); err != nil {
			return err
		}
		return c.events.Append(ctx, tx, syncx.TypeUnitOverride, enr.ID, data)
	})
	if err != nil {
		return progress.UnitProgress{}, err
	}
	c.log.Warn("unit status overridden", "enrollment_id", enrollmentID, "unit_id", unitID, "status", status, "actor", a.ID)
	return out, nil
}

// ImportCourse upserts a course tree authored elsewhere.
func (c *Coordinator) ImportCourse(ctx context.Context, a Actor, def catalog.CourseDef) (catalog.CourseDef, error) {
	if err := requireAdmin(a); err != nil {
		return catalog.CourseDef{}, err
	}
	var out catalog.CourseDef
	err := c.tx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = c.catalog.PutCourse(ctx, tx, def)
		return err
	})
	return out, err
}

// ImportBank upserts a question bank and its questions. The bank must belong
// to an existing course, and to a unit of that course for unit quizzes.
func (c *Coordinator) ImportBank(ctx context.Context, a Actor, b questionpool.Bank, qs []questionpool.Question) (questionpool.Bank, []questionpool.Question, error) {
	if err := requireAdmin(a); err != nil {
		return questionpool.Bank{}, nil, err
	}
	var (
		outB  questionpool.Bank
		outQs []questionpool.Question
	)
	err := c.tx(ctx, func(tx *sql.Tx) error {
		if _, err := c.catalog.Course(ctx, tx, b.CourseID); err != nil {
			return err
		}
		if b.UnitID != "" {
			units, err := c.catalog.Units(ctx, tx, b.CourseID)
			if err != nil {
				return err
			}
			found := false
			for _, u := range units {
				found = found || u.ID == b.UnitID
			}
			if !found {
				return apperr.ErrInvalid.With("unit does not belong to the course")
			}
		}
		var err error
		outB, outQs, err = c.pool.PutBank(ctx, tx, b, qs)
		return err
	})
	return outB, outQs, err
}

// Audit searches the event log, newest first.
func (c *Coordinator) Audit(ctx context.Context, a Actor, term string, limit int) ([]syncx.Event, error) {
	if err := requireAdmin(a); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return c.events.Search(ctx, c.h, term, limit)
}
