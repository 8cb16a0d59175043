package progression_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/dbtest"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/progression"
	"github.com/mind-engage/coursegate/internal/questionpool"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	t      *testing.T
	h      *sql.DB
	clk    *clock
	c      *progression.Coordinator
	course dbtest.Course
}

var (
	learner = progression.Actor{ID: "learner-1"}
	admin   = progression.Actor{ID: "admin", Admin: true}
)

func setup(t *testing.T, opts dbtest.CourseOpts, tweak func(*config.Config)) *env {
	t.Helper()
	h := dbtest.Open(t)
	pool := questionpool.New(questionpool.WithSeed(7))
	course := dbtest.SeedCourse(t, h, pool, opts)
	cfg := config.Default()
	if tweak != nil {
		tweak(&cfg)
	}
	clk := &clock{t: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)}
	c := progression.New(progression.Deps{DB: h, Config: cfg, Pool: pool, Now: clk.Now})
	return &env{t: t, h: h, clk: clk, c: c, course: course}
}

func (e *env) enroll() enrollment.Enrollment {
	e.t.Helper()
	enr, err := e.c.Enroll(context.Background(), learner, progression.EnrollRequest{CourseID: e.course.Def.ID})
	if err != nil {
		e.t.Fatalf("enroll: %v", err)
	}
	return enr
}

func (e *env) study(enrID string, unit int) {
	e.t.Helper()
	ctx := context.Background()
	for _, l := range e.course.LessonIDs(unit) {
		if _, _, err := e.c.RecordTimeSpent(ctx, learner, enrID, l, 60); err != nil {
			e.t.Fatalf("time on lesson: %v", err)
		}
		if _, _, err := e.c.CompleteLesson(ctx, learner, enrID, l); err != nil {
			e.t.Fatalf("complete lesson: %v", err)
		}
	}
}

// take answers every question with option, which is correct only when option is 0.
func (e *env) take(s progression.StartedAttempt, option int) progression.Completion {
	e.t.Helper()
	ctx := context.Background()
	for _, q := range s.Questions {
		if _, err := e.c.SubmitAnswer(ctx, learner, s.AttemptID, q.ID, option); err != nil {
			e.t.Fatalf("answer: %v", err)
		}
	}
	res, err := e.c.CompleteQuiz(ctx, learner, s.AttemptID, 120)
	if err != nil {
		e.t.Fatalf("complete: %v", err)
	}
	return res
}

func (e *env) start(enrID, bankID string) progression.StartedAttempt {
	e.t.Helper()
	s, err := e.c.StartQuiz(context.Background(), learner, enrID, bankID)
	if err != nil {
		e.t.Fatalf("start %s: %v", bankID, err)
	}
	return s
}

func (e *env) passUnits(enrID string) {
	e.t.Helper()
	for i := range e.course.Def.Units {
		e.study(enrID, i)
		if res := e.take(e.start(enrID, e.course.Quizzes[i].ID), 0); !res.Attempt.Passed {
			e.t.Fatalf("unit %d quiz failed: %+v", i+1, res.Attempt)
		}
	}
}

func wantErr(t *testing.T, err error, target *apperr.Error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %s", err, target.Code)
	}
}

func TestThreeUnitCourseThroughFinalExam(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Jurisdiction: "FL"}, nil)
	ctx := context.Background()
	enr := e.enroll()
	final := e.course.Finals[0].ID

	_, err := e.c.StartQuiz(ctx, learner, enr.ID, e.course.Quizzes[0].ID)
	wantErr(t, err, apperr.ErrLessonsIncomplete)
	_, err = e.c.StartQuiz(ctx, learner, enr.ID, e.course.Quizzes[1].ID)
	wantErr(t, err, apperr.ErrUnitLocked)
	_, err = e.c.StartQuiz(ctx, learner, enr.ID, final)
	wantErr(t, err, apperr.ErrExamLocked)

	for i := range e.course.Def.Units {
		e.study(enr.ID, i)
		s := e.start(enr.ID, e.course.Quizzes[i].ID)
		if len(s.Questions) != 5 || s.AttemptNumber != 1 {
			t.Fatalf("unit %d attempt = %+v", i+1, s)
		}
		fb, err := e.c.SubmitAnswer(ctx, learner, s.AttemptID, s.Questions[0].ID, 0)
		if err != nil || fb.Correct == nil || !*fb.Correct || fb.Explanation == "" {
			t.Fatalf("unit feedback = %+v, %v", fb, err)
		}
		for _, q := range s.Questions[1:] {
			if _, err := e.c.SubmitAnswer(ctx, learner, s.AttemptID, q.ID, 0); err != nil {
				t.Fatal(err)
			}
		}
		res, err := e.c.CompleteQuiz(ctx, learner, s.AttemptID, 90)
		if err != nil || !res.Attempt.Passed || res.Unit.Status != progress.StatusCompleted {
			t.Fatalf("unit %d completion = %+v, %v", i+1, res, err)
		}
		if (res.UnlockedUnit != nil) != (i < 2) {
			t.Fatalf("unit %d unlocked next = %+v", i+1, res.UnlockedUnit)
		}
	}

	cp, err := e.c.CourseProgress(ctx, learner, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cp.Progress.ProgressPct != 100 || cp.Progress.HoursCredited != 60 || !cp.FinalExam.ExamUnlocked {
		t.Fatalf("progress before final = %+v", cp)
	}

	_, err = e.c.StartQuiz(ctx, learner, enr.ID, final)
	wantErr(t, err, apperr.ErrPolicyNotAcked)
	if _, err := e.c.AcknowledgePolicy(ctx, learner, enr.ID); err != nil {
		t.Fatal(err)
	}

	first := e.start(enr.ID, final)
	if first.Form != "A" || first.AttemptNumber != 1 || len(first.Questions) != 10 || first.Decision.AttemptsRemaining != 1 {
		t.Fatalf("first final = %+v", first)
	}
	fb, err := e.c.SubmitAnswer(ctx, learner, first.AttemptID, first.Questions[0].ID, 1)
	if err != nil || !fb.Recorded || fb.Correct != nil || fb.CorrectOption != nil {
		t.Fatalf("final feedback leaked: %+v, %v", fb, err)
	}
	res, err := e.c.CompleteQuiz(ctx, learner, first.AttemptID, 600)
	if err != nil || res.Attempt.Passed || res.CourseCompleted {
		t.Fatalf("failed final = %+v, %v", res, err)
	}
	eligible := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	if res.Eligibility == nil || res.Eligibility.Reason != apperr.ErrCooldownActive.Code || !res.Eligibility.RetestEligibleAt.Equal(eligible) {
		t.Fatalf("eligibility after failure = %+v", res.Eligibility)
	}

	e.clk.Advance(29 * 24 * time.Hour)
	_, err = e.c.StartQuiz(ctx, learner, enr.ID, final)
	wantErr(t, err, apperr.ErrCooldownActive)
	if ae, _ := apperr.As(err); ae.RetryAt == nil || !ae.RetryAt.Equal(eligible) {
		t.Fatalf("retry at = %+v", ae)
	}

	e.clk.Advance(24 * time.Hour)
	second := e.start(enr.ID, e.course.Finals[0].ID)
	if second.Form != "B" || second.AttemptNumber != 2 || second.BankID != e.course.Finals[1].ID {
		t.Fatalf("second final = %+v", second)
	}
	res = e.take(second, 0)
	if !res.Attempt.Passed || !res.CourseCompleted || res.Progress.ProgressPct != 100 {
		t.Fatalf("passed final = %+v", res)
	}

	_, err = e.c.StartQuiz(ctx, learner, enr.ID, final)
	wantErr(t, err, apperr.ErrFinalExamPassed)

	got, _ := enrollment.NewSQLStore().Get(ctx, e.h, enr.ID)
	if !got.Completed || got.CompletedAt == nil || !got.FinalExamPassed || got.FinalExamBestScore != 100 || got.FinalExamAttempts != 2 {
		t.Fatalf("enrollment = %+v", got)
	}

	events, err := syncx.NewEventRepo("").Pending(ctx, e.h, 100)
	if err != nil {
		t.Fatal(err)
	}
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{
		syncx.TypeEnrollmentCreated,
		syncx.TypeUnitPassed, syncx.TypeUnitPassed, syncx.TypeUnitPassed,
		syncx.TypePolicyAcknowledged,
		syncx.TypeFinalExamFailed,
		syncx.TypeFinalExamPassed, syncx.TypeCourseCompleted,
	}
	if len(types) != len(want) {
		t.Fatalf("events = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, types[i], want[i])
		}
	}

	hist, err := e.c.AttemptHistory(ctx, learner, enr.ID, "")
	if err != nil || len(hist) != 5 {
		t.Fatalf("history = %d, %v", len(hist), err)
	}
}

func TestFailedUnitQuizKeepsUnitOpen(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.study(enr.ID, 0)

	s := e.start(enr.ID, e.course.Quizzes[0].ID)
	_, err := e.c.StartQuiz(ctx, learner, enr.ID, e.course.Quizzes[0].ID)
	wantErr(t, err, apperr.ErrDuplicateOpenAttempt)
	if ae, _ := apperr.As(err); ae.Ref != s.AttemptID {
		t.Fatalf("duplicate ref = %q", ae.Ref)
	}

	res := e.take(s, 2)
	if res.Attempt.Passed || res.Attempt.Score != 0 || res.Unit.Status != progress.StatusInProgress || res.Unit.QuizAttempts != 1 {
		t.Fatalf("failed quiz = %+v", res)
	}
	_, err = e.c.CompleteQuiz(ctx, learner, s.AttemptID, 10)
	wantErr(t, err, apperr.ErrAttemptAlreadyCompleted)
	_, err = e.c.SubmitAnswer(ctx, learner, s.AttemptID, s.Questions[0].ID, 0)
	wantErr(t, err, apperr.ErrAttemptAlreadyCompleted)

	retry := e.take(e.start(enr.ID, e.course.Quizzes[0].ID), 0)
	if !retry.Attempt.Passed || retry.Attempt.AttemptNumber != 2 || retry.UnlockedUnit == nil {
		t.Fatalf("retry = %+v", retry)
	}
}

func TestOwnershipAndExpiry(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1}, nil)
	ctx := context.Background()
	expires := e.clk.Now().Add(48 * time.Hour)
	enr, err := e.c.Enroll(ctx, learner, progression.EnrollRequest{CourseID: e.course.Def.ID, ExpiresAt: &expires})
	if err != nil {
		t.Fatal(err)
	}
	other := progression.Actor{ID: "learner-2"}

	_, err = e.c.Enroll(ctx, other, progression.EnrollRequest{LearnerID: learner.ID, CourseID: e.course.Def.ID})
	wantErr(t, err, apperr.ErrNotOwner)
	_, err = e.c.CourseProgress(ctx, other, enr.ID)
	wantErr(t, err, apperr.ErrNotOwner)
	_, _, err = e.c.RecordTimeSpent(ctx, other, enr.ID, e.course.LessonIDs(0)[0], 30)
	wantErr(t, err, apperr.ErrNotOwner)

	e.study(enr.ID, 0)
	s := e.start(enr.ID, e.course.Quizzes[0].ID)
	_, err = e.c.SubmitAnswer(ctx, other, s.AttemptID, s.Questions[0].ID, 0)
	wantErr(t, err, apperr.ErrNotOwner)

	e.clk.Advance(72 * time.Hour)
	_, err = e.c.SubmitAnswer(ctx, learner, s.AttemptID, s.Questions[0].ID, 0)
	wantErr(t, err, apperr.ErrEnrollmentExpired)
	_, err = e.c.StartQuiz(ctx, learner, enr.ID, e.course.Finals[0].ID)
	wantErr(t, err, apperr.ErrEnrollmentExpired)
	if _, err := e.c.CourseProgress(ctx, admin, enr.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestBankFromAnotherCourse(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1}, nil)
	other := dbtest.SeedCourse(t, e.h, questionpool.New(), dbtest.CourseOpts{Units: 1})
	enr := e.enroll()
	_, err := e.c.StartQuiz(context.Background(), learner, enr.ID, other.Quizzes[0].ID)
	wantErr(t, err, apperr.ErrBankNotInCourse)
}

func TestTimedFinalExamRejectsLateAnswers(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1, FinalTimeLimitSec: 600}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.passUnits(enr.ID)

	s := e.start(enr.ID, e.course.Finals[0].ID)
	if s.TimeLimitSec != 600 || s.Deadline == nil || !s.Deadline.Equal(s.StartedAt.Add(10*time.Minute)) {
		t.Fatalf("started = %+v", s)
	}
	e.clk.Advance(10*time.Minute + 20*time.Second)
	if _, err := e.c.SubmitAnswer(ctx, learner, s.AttemptID, s.Questions[0].ID, 0); err != nil {
		t.Fatalf("answer inside grace: %v", err)
	}
	e.clk.Advance(15 * time.Second)
	_, err := e.c.SubmitAnswer(ctx, learner, s.AttemptID, s.Questions[1].ID, 0)
	wantErr(t, err, apperr.ErrAttemptExpired)

	res, err := e.c.CompleteQuiz(ctx, learner, s.AttemptID, 99999)
	if err != nil {
		t.Fatalf("late completion: %v", err)
	}
	if res.Attempt.Score != 10 || res.Attempt.TimeSpentSec != 635 {
		t.Fatalf("late attempt = %+v", res.Attempt)
	}
}

func TestFinalExamFeedbackCanBeRevealed(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1}, func(c *config.Config) {
		c.Quiz.RevealFinalExamFeedback = true
	})
	enr := e.enroll()
	e.passUnits(enr.ID)
	s := e.start(enr.ID, e.course.Finals[0].ID)
	fb, err := e.c.SubmitAnswer(context.Background(), learner, s.AttemptID, s.Questions[0].ID, 3)
	if err != nil || fb.Correct == nil || *fb.Correct || fb.CorrectOption == nil || *fb.CorrectOption != 0 {
		t.Fatalf("feedback = %+v, %v", fb, err)
	}
}

func TestAttemptReview(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.study(enr.ID, 0)
	quiz := e.start(enr.ID, e.course.Quizzes[0].ID)
	e.take(quiz, 0)

	rv, err := e.c.AttemptReview(ctx, learner, quiz.AttemptID)
	if err != nil {
		t.Fatal(err)
	}
	if rv.Attempt.ID != quiz.AttemptID || len(rv.Answers) != len(quiz.Questions) {
		t.Fatalf("review = %+v", rv)
	}
	for _, a := range rv.Answers {
		if a.Correct == nil || !*a.Correct || a.Selected != 0 {
			t.Fatalf("unit quiz answer = %+v", a)
		}
	}

	final := e.start(enr.ID, e.course.Finals[0].ID)
	if _, err := e.c.SubmitAnswer(ctx, learner, final.AttemptID, final.Questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}
	rv, err = e.c.AttemptReview(ctx, learner, final.AttemptID)
	if err != nil || len(rv.Answers) != 1 || rv.Answers[0].Correct != nil || rv.Attempt.Completed() {
		t.Fatalf("learner final review = %+v, %v", rv, err)
	}
	rv, err = e.c.AttemptReview(ctx, admin, final.AttemptID)
	if err != nil || len(rv.Answers) != 1 || rv.Answers[0].Correct == nil || *rv.Answers[0].Correct {
		t.Fatalf("admin final review = %+v, %v", rv, err)
	}

	_, err = e.c.AttemptReview(ctx, progression.Actor{ID: "learner-2"}, quiz.AttemptID)
	wantErr(t, err, apperr.ErrNotOwner)
	_, err = e.c.AttemptReview(ctx, learner, "missing")
	wantErr(t, err, apperr.ErrNotFound)
}

func TestConcurrentFinalStartsReserveOnce(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Jurisdiction: "FL", Units: 1, LessonsPerUnit: 1}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.passUnits(enr.ID)
	if _, err := e.c.AcknowledgePolicy(ctx, learner, enr.ID); err != nil {
		t.Fatal(err)
	}
	e.take(e.start(enr.ID, e.course.Finals[0].ID), 1)
	e.clk.Advance(31 * 24 * time.Hour)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.c.StartQuiz(ctx, learner, enr.ID, e.course.Finals[0].ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrDuplicateOpenAttempt), errors.Is(err, apperr.ErrAttemptLimitExceeded):
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 || len(other) > 0 {
		t.Fatalf("succeeded = %d, unexpected errors = %v", succeeded, other)
	}
	got, _ := enrollment.NewSQLStore().Get(ctx, e.h, enr.ID)
	if got.FinalExamAttempts != 2 {
		t.Fatalf("attempts = %d", got.FinalExamAttempts)
	}
}

func TestEligibilityIsReadOnly(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1}, nil)
	ctx := context.Background()
	enr := e.enroll()

	el, err := e.c.FinalExamEligibility(ctx, learner, enr.ID)
	if err != nil || el.ExamUnlocked || !el.Permitted || el.Form != "A" || el.AttemptsRemaining != 3 {
		t.Fatalf("eligibility = %+v, %v", el, err)
	}
	again, _ := e.c.FinalExamEligibility(ctx, learner, enr.ID)
	if again.AttemptsUsed != 0 {
		t.Fatalf("eligibility reserved an attempt: %+v", again)
	}
}

func TestAdminResetAndOverride(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.study(enr.ID, 0)
	e.take(e.start(enr.ID, e.course.Quizzes[0].ID), 0)

	_, err := e.c.ResetEnrollment(ctx, learner, enr.ID, "")
	wantErr(t, err, apperr.ErrAdminRequired)
	_, err = e.c.OverrideUnitStatus(ctx, learner, enr.ID, e.course.Def.Units[2].ID, progress.StatusCompleted, "")
	wantErr(t, err, apperr.ErrAdminRequired)

	up, err := e.c.OverrideUnitStatus(ctx, admin, enr.ID, e.course.Def.Units[2].ID, progress.StatusInProgress, "transfer credit")
	if err != nil || up.Status != progress.StatusInProgress {
		t.Fatalf("override = %+v, %v", up, err)
	}

	cp, err := e.c.ResetEnrollment(ctx, admin, enr.ID, "learner request")
	if err != nil {
		t.Fatal(err)
	}
	if cp.Units[0].Status != progress.StatusInProgress || cp.Units[2].Status != progress.StatusLocked || len(cp.Lessons) != 0 {
		t.Fatalf("after reset = %+v", cp)
	}
	if cp.Enrollment.ProgressPct != 0 || cp.Enrollment.CurrentUnit != 1 {
		t.Fatalf("enrollment after reset = %+v", cp.Enrollment)
	}
	hist, _ := e.c.AttemptHistory(ctx, learner, enr.ID, e.course.Quizzes[0].ID)
	if len(hist) != 1 {
		t.Fatalf("reset dropped attempt history: %d", len(hist))
	}

	audit, err := e.c.Audit(ctx, admin, "admin.", 0)
	if err != nil || len(audit) != 2 || audit[0].Type != syncx.TypeProgressReset || audit[1].Type != syncx.TypeUnitOverride {
		t.Fatalf("audit = %+v, %v", audit, err)
	}
	_, err = e.c.Audit(ctx, learner, "", 10)
	wantErr(t, err, apperr.ErrAdminRequired)
}

// noLockedAfterCompleted fails when a completed unit is followed by a locked one.
func noLockedAfterCompleted(t *testing.T, units []progress.UnitProgress) {
	t.Helper()
	for i := 0; i+1 < len(units); i++ {
		if units[i].Status == progress.StatusCompleted && units[i+1].Status == progress.StatusLocked {
			t.Fatalf("unit %d completed but unit %d locked: %+v", units[i].Sequence, units[i+1].Sequence, units)
		}
	}
}

func TestOverrideToCompletedOpensNextUnit(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{}, nil)
	ctx := context.Background()
	enr := e.enroll()
	units := e.course.Def.Units

	if _, err := e.c.OverrideUnitStatus(ctx, admin, enr.ID, units[0].ID, progress.StatusCompleted, "transfer credit"); err != nil {
		t.Fatal(err)
	}
	cp, err := e.c.CourseProgress(ctx, learner, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	noLockedAfterCompleted(t, cp.Units)
	if cp.Units[1].Status != progress.StatusInProgress || cp.Units[2].Status != progress.StatusLocked {
		t.Fatalf("units = %+v", cp.Units)
	}
	if cp.Enrollment.CurrentUnit != 2 {
		t.Fatalf("current unit = %d", cp.Enrollment.CurrentUnit)
	}

	// the learner can study the opened unit straight away
	e.study(enr.ID, 1)

	audit, err := e.c.Audit(ctx, admin, syncx.TypeUnitOverride, 10)
	if err != nil || len(audit) != 1 {
		t.Fatalf("audit = %+v, %v", audit, err)
	}
	var data map[string]any
	if err := json.Unmarshal(audit[0].Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["unlocked_unit_id"] != units[1].ID || data["to"] != string(progress.StatusCompleted) {
		t.Fatalf("event data = %v", data)
	}

	// completing the last unit has nothing to open
	if _, err := e.c.OverrideUnitStatus(ctx, admin, enr.ID, units[2].ID, progress.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	cp, err = e.c.CourseProgress(ctx, learner, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	noLockedAfterCompleted(t, cp.Units)
}

func TestResetRefusesCompletedEnrollment(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1, LessonsPerUnit: 1}, nil)
	ctx := context.Background()
	enr := e.enroll()
	e.passUnits(enr.ID)
	if res := e.take(e.start(enr.ID, e.course.Finals[0].ID), 0); !res.CourseCompleted {
		t.Fatalf("final not passed: %+v", res)
	}
	_, err := e.c.ResetEnrollment(ctx, admin, enr.ID, "")
	wantErr(t, err, apperr.ErrEnrollmentCompleted)
}

func TestImportBankChecksCourse(t *testing.T) {
	e := setup(t, dbtest.CourseOpts{Units: 1}, nil)
	ctx := context.Background()
	b := questionpool.Bank{
		CourseID:            e.course.Def.ID,
		UnitID:              "no-such-unit",
		Kind:                questionpool.KindUnitQuiz,
		QuestionsPerAttempt: 2,
		PassingScore:        50,
	}
	_, _, err := e.c.ImportBank(ctx, admin, b, dbtest.Questions(3))
	wantErr(t, err, apperr.ErrInvalid)

	b.UnitID = e.course.Def.Units[0].ID
	_, _, err = e.c.ImportBank(ctx, learner, b, dbtest.Questions(3))
	wantErr(t, err, apperr.ErrAdminRequired)
	got, qs, err := e.c.ImportBank(ctx, admin, b, dbtest.Questions(3))
	if err != nil || got.ID == "" || len(qs) != 3 {
		t.Fatalf("import = %+v %d %v", got, len(qs), err)
	}
}
