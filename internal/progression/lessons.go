package progression

import (
	"context"
	"database/sql"

	"github.com/mind-engage/coursegate/internal/attempt"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

// RecordTimeSpent credits study time on a lesson and returns the credited seconds.
func (c *Coordinator) RecordTimeSpent(ctx context.Context, a Actor, enrollmentID, lessonID string, seconds int64) (progress.LessonProgress, int64, error) {
	var (
		out      progress.LessonProgress
		credited int64
	)
	err := c.tx(ctx, func(tx *sql.Tx) error {
		if _, err := c.active(ctx, tx, a, enrollmentID); err != nil {
			return err
		}
		var err error
		out, credited, err = c.tracker.RecordTimeSpent(ctx, tx, enrollmentID, lessonID, seconds)
		return err
	})
	return out, credited, err
}

func (c *Coordinator) CompleteLesson(ctx context.Context, a Actor, enrollmentID, lessonID string) (progress.LessonProgress, progress.Aggregate, error) {
	var (
		out progress.LessonProgress
		agg progress.Aggregate
	)
	err := c.tx(ctx, func(tx *sql.Tx) error {
		if _, err := c.active(ctx, tx, a, enrollmentID); err != nil {
			return err
		}
		var err error
		out, agg, err = c.tracker.CompleteLesson(ctx, tx, enrollmentID, lessonID)
		return err
	})
	return out, agg, err
}

// AcknowledgePolicy records that the learner accepted the retake policy. Only
// the first acknowledgment is stored and announced.
func (c *Coordinator) AcknowledgePolicy(ctx context.Context, a Actor, enrollmentID string) (enrollment.Enrollment, error) {
	var out enrollment.Enrollment
	err := c.tx(ctx, func(tx *sql.Tx) error {
		enr, err := c.active(ctx, tx, a, enrollmentID)
		if err != nil {
			return err
		}
		if enr.PolicyAckAt == nil {
			at := c.now()
			if err := c.enrollments.AcknowledgePolicy(ctx, tx, enr.ID, at); err != nil {
				return err
			}
			if err := c.events.Append(ctx, tx, syncx.TypePolicyAcknowledged, enr.ID, map[string]any{
				"learner_id": enr.LearnerID,
				"at":         at.Unix(),
			}); err != nil {
				return err
			}
		}
		out, err = c.enrollments.Get(ctx, tx, enr.ID)
		return err
	})
	return out, err
}

// AttemptHistory lists attempts newest first; an empty bankID lists every bank.
func (c *Coordinator) AttemptHistory(ctx context.Context, a Actor, enrollmentID, bankID string) ([]attempt.Attempt, error) {
	if _, err := c.owned(ctx, c.h, a, enrollmentID); err != nil {
		return nil, err
	}
	if bankID == "" {
		return c.ledger.All(ctx, c.h, enrollmentID)
	}
	return c.ledger.History(ctx, c.h, enrollmentID, bankID)
}

// AttemptReview returns one attempt and its answers. Final exam correctness is
// shown only to admins or when final exam feedback is revealed.
func (c *Coordinator) AttemptReview(ctx context.Context, a Actor, attemptID string) (AttemptReview, error) {
	at, err := c.ledger.Get(ctx, c.h, attemptID)
	if err != nil {
		return AttemptReview{}, err
	}
	if _, err := c.owned(ctx, c.h, a, at.EnrollmentID); err != nil {
		return AttemptReview{}, err
	}
	answers, err := c.ledger.Answers(ctx, c.h, at.ID)
	if err != nil {
		return AttemptReview{}, err
	}
	reveal := a.Admin || at.Kind == questionpool.KindUnitQuiz || c.cfg.Quiz.RevealFinalExamFeedback
	out := AttemptReview{Attempt: at, Answers: make([]ReviewedAnswer, 0, len(answers))}
	for _, ans := range answers {
		ra := ReviewedAnswer{QuestionID: ans.QuestionID, Selected: ans.Selected, AnsweredAt: ans.AnsweredAt}
		if reveal {
			correct := ans.Correct
			ra.Correct = &correct
		}
		out.Answers = append(out.Answers, ra)
	}
	return out, nil
}

// CourseProgress is the learner dashboard: stored aggregates, unit and lesson
// rows, and the final exam outlook.
func (c *Coordinator) CourseProgress(ctx context.Context, a Actor, enrollmentID string) (CourseProgress, error) {
	enr, err := c.owned(ctx, c.h, a, enrollmentID)
	if err != nil {
		return CourseProgress{}, err
	}
	units, err := c.tracker.Units(ctx, c.h, enr.ID)
	if err != nil {
		return CourseProgress{}, err
	}
	lessons, err := c.tracker.Lessons(ctx, c.h, enr.ID)
	if err != nil {
		return CourseProgress{}, err
	}
	all, err := c.catalog.Lessons(ctx, c.h, enr.CourseID)
	if err != nil {
		return CourseProgress{}, err
	}
	elig, err := c.eligibility(ctx, c.h, enr.ID)
	if err != nil {
		return CourseProgress{}, err
	}
	agg := progress.Aggregate{
		CurrentUnit:   enr.CurrentUnit,
		ProgressPct:   enr.ProgressPct,
		HoursCredited: enr.HoursCredited,
		LessonsTotal:  len(all),
	}
	for _, l := range lessons {
		if l.Completed {
			agg.LessonsCompleted++
		}
	}
	return CourseProgress{
		Enrollment: enr,
		Progress:   agg,
		Units:      units,
		Lessons:    lessons,
		FinalExam:  elig,
	}, nil
}

// FinalExamEligibility evaluates the retake rules for display. Nothing is reserved.
func (c *Coordinator) FinalExamEligibility(ctx context.Context, a Actor, enrollmentID string) (Eligibility, error) {
	if _, err := c.owned(ctx, c.h, a, enrollmentID); err != nil {
		return Eligibility{}, err
	}
	return c.eligibility(ctx, c.h, enrollmentID)
}
