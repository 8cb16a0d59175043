package progression

import (
	"context"
	"database/sql"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/attempt"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	"github.com/mind-engage/coursegate/internal/retake"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

// StartQuiz opens an attempt on a unit quiz or final exam bank. For the final
// exam the requested bank only selects the exam; the form actually served
// follows the rotation for the attempt number.
func (c *Coordinator) StartQuiz(ctx context.Context, a Actor, enrollmentID, bankID string) (StartedAttempt, error) {
	var out StartedAttempt
	err := c.tx(ctx, func(tx *sql.Tx) error {
		enr, err := c.active(ctx, tx, a, enrollmentID)
		if err != nil {
			return err
		}
		bank, err := c.pool.Bank(ctx, tx, bankID)
		if err != nil {
			return err
		}
		if bank.CourseID != enr.CourseID {
			return apperr.ErrBankNotInCourse
		}

		var p attempt.OpenParams
		switch bank.Kind {
		case questionpool.KindUnitQuiz:
			p, err = c.openUnitQuiz(ctx, tx, enr, bank)
		case questionpool.KindFinalExam:
			var d retake.Decision
			p, d, err = c.openFinalExam(ctx, tx, enr)
			out.Decision = &d
		default:
			err = apperr.ErrInvalid.With("unknown bank kind")
		}
		if err != nil {
			return err
		}

		qs, err := c.pool.Sample(ctx, tx, p.Bank.ID, p.Bank.QuestionsPerAttempt)
		if err != nil {
			return err
		}
		p.Questions = qs
		at, err := c.ledger.Open(ctx, tx, p)
		if err != nil {
			return err
		}

		out.AttemptID = at.ID
		out.BankID = at.BankID
		out.Kind = at.Kind
		out.Form = at.Form
		out.AttemptNumber = at.AttemptNumber
		out.TimeLimitSec = p.Bank.TimeLimitSec
		out.StartedAt = at.StartedAt
		if dl := at.Deadline(p.Bank.TimeLimitSec, 0); !dl.IsZero() {
			out.Deadline = &dl
		}
		out.Questions = make([]questionpool.PublicQuestion, len(qs))
		for i, x := range qs {
			out.Questions[i] = x.Public()
		}
		return nil
	})
	if err != nil {
		return StartedAttempt{}, err
	}
	c.log.Info("attempt started", "attempt_id", out.AttemptID, "enrollment_id", enrollmentID,
		"kind", out.Kind, "form", out.Form, "attempt_number", out.AttemptNumber)
	return out, nil
}

func (c *Coordinator) openUnitQuiz(ctx context.Context, q db.Querier, enr enrollment.Enrollment, bank questionpool.Bank) (attempt.OpenParams, error) {
	up, err := c.tracker.Unit(ctx, q, enr.ID, bank.UnitID)
	if err != nil {
		return attempt.OpenParams{}, err
	}
	if up.Status == progress.StatusLocked {
		return attempt.OpenParams{}, apperr.ErrUnitLocked
	}
	chk, err := c.tracker.CheckCompletion(ctx, q, enr.ID, bank.UnitID)
	if err != nil {
		return attempt.OpenParams{}, err
	}
	if !chk.LessonsComplete {
		return attempt.OpenParams{}, apperr.ErrLessonsIncomplete
	}
	if open, ok, err := c.ledger.OpenAttempt(ctx, q, enr.ID, bank.ID); err != nil {
		return attempt.OpenParams{}, err
	} else if ok {
		return attempt.OpenParams{}, apperr.ErrDuplicateOpenAttempt.WithRef(open.ID)
	}
	return attempt.OpenParams{EnrollmentID: enr.ID, LearnerID: enr.LearnerID, Bank: bank}, nil
}

// openFinalExam checks the exam gates, reserves an attempt slot and resolves
// the bank for the rotated form. The reservation rolls back with the
// surrounding transaction if anything after it fails.
func (c *Coordinator) openFinalExam(ctx context.Context, q db.Querier, enr enrollment.Enrollment) (attempt.OpenParams, retake.Decision, error) {
	unlocked, err := c.examUnlocked(ctx, q, enr.ID)
	if err != nil {
		return attempt.OpenParams{}, retake.Decision{}, err
	}
	if !unlocked {
		return attempt.OpenParams{}, retake.Decision{}, apperr.ErrExamLocked
	}
	course, err := c.catalog.Course(ctx, q, enr.CourseID)
	if err != nil {
		return attempt.OpenParams{}, retake.Decision{}, err
	}
	rules := c.retake.Rules(course.Jurisdiction)
	if rules.RequireAck && enr.PolicyAckAt == nil {
		return attempt.OpenParams{}, retake.Decision{}, apperr.ErrPolicyNotAcked
	}
	if open, ok, err := c.ledger.OpenAttemptByKind(ctx, q, enr.ID, questionpool.KindFinalExam); err != nil {
		return attempt.OpenParams{}, retake.Decision{}, err
	} else if ok {
		return attempt.OpenParams{}, retake.Decision{}, apperr.ErrDuplicateOpenAttempt.WithRef(open.ID)
	}

	banks, err := c.pool.BanksForCourse(ctx, q, enr.CourseID, questionpool.KindFinalExam)
	if err != nil {
		return attempt.OpenParams{}, retake.Decision{}, err
	}
	d, err := c.retake.Reserve(ctx, q, c.enrollments, enr.ID, rules, questionpool.Forms(banks))
	if err != nil {
		return attempt.OpenParams{}, d, err
	}
	for _, b := range banks {
		if b.Form == d.Form {
			return attempt.OpenParams{
				EnrollmentID:  enr.ID,
				LearnerID:     enr.LearnerID,
				Bank:          b,
				AttemptNumber: d.AttemptNumber,
			}, d, nil
		}
	}
	return attempt.OpenParams{}, d, apperr.ErrNotFound.With("no final exam bank for form " + d.Form)
}

// examUnlocked reports whether every unit is completed with its quiz passed.
func (c *Coordinator) examUnlocked(ctx context.Context, q db.Querier, enrollmentID string) (bool, error) {
	units, err := c.tracker.Units(ctx, q, enrollmentID)
	if err != nil {
		return false, err
	}
	if len(units) == 0 {
		return false, nil
	}
	for _, u := range units {
		if u.Status != progress.StatusCompleted || !u.QuizPassed {
			return false, nil
		}
	}
	return true, nil
}

// SubmitAnswer records one answer. Unit quizzes get immediate feedback; final
// exams only confirm the answer was recorded unless configured otherwise.
func (c *Coordinator) SubmitAnswer(ctx context.Context, a Actor, attemptID, questionID string, selected int) (Feedback, error) {
	var out Feedback
	err := c.tx(ctx, func(tx *sql.Tx) error {
		at, err := c.ledger.Get(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if !a.Admin && at.LearnerID != a.ID {
			return apperr.ErrNotOwner
		}
		enr, err := c.active(ctx, tx, a, at.EnrollmentID)
		if err != nil {
			return err
		}
		if at.Completed() {
			return apperr.ErrAttemptAlreadyCompleted
		}
		bank, err := c.pool.Bank(ctx, tx, at.BankID)
		if err != nil {
			return err
		}
		if bank.Kind == questionpool.KindUnitQuiz {
			up, err := c.tracker.Unit(ctx, tx, enr.ID, bank.UnitID)
			if err != nil {
				return err
			}
			if up.Status == progress.StatusLocked {
				return apperr.ErrUnitLocked
			}
		}
		if dl := at.Deadline(bank.TimeLimitSec, c.cfg.Quiz.TimeLimitGrace); !dl.IsZero() && c.now().After(dl) {
			return apperr.ErrAttemptExpired
		}

		ans, qq, err := c.ledger.RecordAnswer(ctx, tx, at.ID, questionID, selected)
		if err != nil {
			return err
		}
		out = Feedback{AttemptID: at.ID, QuestionID: ans.QuestionID, Recorded: true}
		if bank.Kind == questionpool.KindUnitQuiz || c.cfg.Quiz.RevealFinalExamFeedback {
			correct, idx := ans.Correct, qq.CorrectIndex
			out.Correct = &correct
			out.CorrectOption = &idx
			out.Explanation = qq.Explanation
		}
		return nil
	})
	return out, err
}

// CompleteQuiz scores the attempt and applies its consequences: a passed unit
// quiz completes the unit and unlocks the next one, a passed final exam
// completes the course.
func (c *Coordinator) CompleteQuiz(ctx context.Context, a Actor, attemptID string, timeSpentSec int64) (Completion, error) {
	var out Completion
	err := c.tx(ctx, func(tx *sql.Tx) error {
		at, err := c.ledger.Get(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if !a.Admin && at.LearnerID != a.ID {
			return apperr.ErrNotOwner
		}
		enr, err := c.owned(ctx, tx, a, at.EnrollmentID)
		if err != nil {
			return err
		}
		bank, err := c.pool.Bank(ctx, tx, at.BankID)
		if err != nil {
			return err
		}
		res, err := c.ledger.Complete(ctx, tx, at.ID, timeSpentSec)
		if err != nil {
			return err
		}
		out.Attempt = res

		if bank.Kind == questionpool.KindFinalExam {
			return c.finishFinalExam(ctx, tx, enr, res, &out)
		}
		return c.finishUnitQuiz(ctx, tx, enr, bank, res, &out)
	})
	if err != nil {
		return Completion{}, err
	}
	c.log.Info("attempt completed", "attempt_id", out.Attempt.ID, "kind", out.Attempt.Kind,
		"score", out.Attempt.Score, "passed", out.Attempt.Passed)
	return out, nil
}

func (c *Coordinator) finishUnitQuiz(ctx context.Context, tx *sql.Tx, enr enrollment.Enrollment, bank questionpool.Bank, res attempt.Attempt, out *Completion) error {
	if !res.Passed {
		up, err := c.tracker.RecordQuizFailure(ctx, tx, enr.ID, bank.UnitID, res.Score)
		if err != nil {
			return err
		}
		out.Unit = &up
		agg, err := c.tracker.Recompute(ctx, tx, enr.ID)
		out.Progress = agg
		return err
	}

	up, err := c.tracker.MarkUnitPassed(ctx, tx, enr.ID, bank.UnitID, res.Score)
	if err != nil {
		return err
	}
	out.Unit = &up
	next, unlocked, err := c.tracker.UnlockNext(ctx, tx, enr.ID, bank.UnitID)
	if err != nil {
		return err
	}
	if unlocked {
		out.UnlockedUnit = &next
	}
	if out.Progress, err = c.tracker.Recompute(ctx, tx, enr.ID); err != nil {
		return err
	}
	data := map[string]any{
		"learner_id": enr.LearnerID,
		"unit_id":    bank.UnitID,
		"attempt_id": res.ID,
		"score":      res.Score,
	}
	if unlocked {
		data["unlocked_unit_id"] = next.UnitID
	}
	return c.events.Append(ctx, tx, syncx.TypeUnitPassed, enr.ID, data)
}

func (c *Coordinator) finishFinalExam(ctx context.Context, tx *sql.Tx, enr enrollment.Enrollment, res attempt.Attempt, out *Completion) error {
	at := c.now()
	if err := c.enrollments.RecordFinalResult(ctx, tx, enr.ID, res.Score, res.Passed, at); err != nil {
		return err
	}
	agg, err := c.tracker.Recompute(ctx, tx, enr.ID)
	if err != nil {
		return err
	}
	out.Progress = agg

	if res.Passed {
		out.CourseCompleted = true
		data := map[string]any{
			"learner_id": enr.LearnerID,
			"course_id":  enr.CourseID,
			"attempt_id": res.ID,
			"score":      res.Score,
			"form":       res.Form,
		}
		if err := c.events.Append(ctx, tx, syncx.TypeFinalExamPassed, enr.ID, data); err != nil {
			return err
		}
		return c.events.Append(ctx, tx, syncx.TypeCourseCompleted, enr.ID, map[string]any{
			"learner_id":   enr.LearnerID,
			"course_id":    enr.CourseID,
			"completed_at": at.Unix(),
			"hours":        agg.HoursCredited,
		})
	}

	d, err := c.eligibility(ctx, tx, enr.ID)
	if err != nil {
		return err
	}
	out.Eligibility = &d.Decision
	data := map[string]any{
		"learner_id":         enr.LearnerID,
		"attempt_id":         res.ID,
		"score":              res.Score,
		"attempts_remaining": d.AttemptsRemaining,
	}
	if d.RetestEligibleAt != nil {
		data["retest_eligible_at"] = d.RetestEligibleAt.Unix()
	}
	if d.Reason != "" {
		data["reason"] = d.Reason
	}
	return c.events.Append(ctx, tx, syncx.TypeFinalExamFailed, enr.ID, data)
}

// eligibility evaluates the retake rules without reserving anything.
func (c *Coordinator) eligibility(ctx context.Context, q db.Querier, enrollmentID string) (Eligibility, error) {
	enr, err := c.enrollments.Get(ctx, q, enrollmentID)
	if err != nil {
		return Eligibility{}, err
	}
	course, err := c.catalog.Course(ctx, q, enr.CourseID)
	if err != nil {
		return Eligibility{}, err
	}
	banks, err := c.pool.BanksForCourse(ctx, q, enr.CourseID, questionpool.KindFinalExam)
	if err != nil {
		return Eligibility{}, err
	}
	unlocked, err := c.examUnlocked(ctx, q, enr.ID)
	if err != nil {
		return Eligibility{}, err
	}
	rules := c.retake.Rules(course.Jurisdiction)
	return Eligibility{
		Decision:           c.retake.Evaluate(enr.ExamState(), rules, questionpool.Forms(banks), c.now()),
		ExamUnlocked:       unlocked,
		PolicyAcknowledged: enr.PolicyAckAt != nil,
	}, nil
}
