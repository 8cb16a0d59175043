package progress_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/dbtest"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
)

type env struct {
	h       *sql.DB
	tracker *progress.Tracker
	enr     *enrollment.SQLStore
	course  dbtest.Course
	id      string
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	h := dbtest.Open(t)
	c := dbtest.SeedCourse(t, h, questionpool.New(), dbtest.CourseOpts{Units: 3, LessonsPerUnit: 2, TotalHours: 60})
	cat := catalog.NewSQLStore()
	es := enrollment.NewSQLStore()
	tr := progress.NewTracker(cat, es, config.Default().Progress,
		progress.WithClock(func() time.Time { return time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC) }))

	e, err := es.Create(ctx, h, enrollment.Enrollment{LearnerID: "l1", CourseID: c.Def.ID})
	if err != nil {
		t.Fatal(err)
	}
	units, err := cat.Units(ctx, h, c.Def.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.EnsureInitialized(ctx, h, e.ID, units); err != nil {
		t.Fatalf("init: %v", err)
	}
	return &env{h: h, tracker: tr, enr: es, course: c, id: e.ID}
}

func (e *env) unitID(i int) string { return e.course.Def.Units[i].ID }

func (e *env) studyAndComplete(t *testing.T, unit int) {
	t.Helper()
	ctx := context.Background()
	for _, l := range e.course.LessonIDs(unit) {
		if _, _, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, l, 60); err != nil {
			t.Fatalf("time: %v", err)
		}
		if _, _, err := e.tracker.CompleteLesson(ctx, e.h, e.id, l); err != nil {
			t.Fatalf("complete lesson: %v", err)
		}
	}
}

func TestInitialState(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	units, err := e.tracker.Units(ctx, e.h, e.id)
	if err != nil || len(units) != 3 {
		t.Fatalf("units = %+v, %v", units, err)
	}
	want := []progress.Status{progress.StatusInProgress, progress.StatusLocked, progress.StatusLocked}
	for i, u := range units {
		if u.Status != want[i] {
			t.Fatalf("unit %d status = %s", i+1, u.Status)
		}
	}
	if units[0].StartedAt == nil || units[1].StartedAt != nil {
		t.Fatalf("start timestamps wrong: %+v", units)
	}

	cat := catalog.NewSQLStore()
	all, _ := cat.Units(ctx, e.h, e.course.Def.ID)
	if err := e.tracker.EnsureInitialized(ctx, e.h, e.id, all); !errors.Is(err, apperr.ErrDuplicateProgress) {
		t.Fatalf("second init: %v", err)
	}
}

func TestLessonMinimumTime(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	lesson := e.course.LessonIDs(0)[0]

	if _, _, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, lesson, 45); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.tracker.CompleteLesson(ctx, e.h, e.id, lesson); !errors.Is(err, apperr.ErrMinimumTimeNotMet) {
		t.Fatalf("45s: %v", err)
	}
	if _, _, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, lesson, 15); err != nil {
		t.Fatal(err)
	}
	l, agg, err := e.tracker.CompleteLesson(ctx, e.h, e.id, lesson)
	if err != nil {
		t.Fatalf("60s: %v", err)
	}
	if !l.Completed || l.TimeSpentSec != 60 || l.CompletedAt == nil {
		t.Fatalf("lesson = %+v", l)
	}
	if agg.LessonsCompleted != 1 || agg.LessonsTotal != 6 || agg.ProgressPct != 17 || agg.HoursCredited != 10 {
		t.Fatalf("aggregate = %+v", agg)
	}

	// completing again changes nothing
	if _, again, err := e.tracker.CompleteLesson(ctx, e.h, e.id, lesson); err != nil || again.LessonsCompleted != 1 {
		t.Fatalf("repeat completion: %+v %v", again, err)
	}
	up, _ := e.tracker.Unit(ctx, e.h, e.id, e.unitID(0))
	if up.LessonsCompleted != 1 || up.TimeSpentSec != 60 {
		t.Fatalf("unit = %+v", up)
	}
}

func TestTimeIncrementIsCapped(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	lesson := e.course.LessonIDs(0)[1]

	l, credited, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, lesson, 3600)
	if err != nil {
		t.Fatal(err)
	}
	if credited != 120 || l.TimeSpentSec != 120 {
		t.Fatalf("credited %d, stored %d", credited, l.TimeSpentSec)
	}
	if _, _, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, lesson, -1); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("negative: %v", err)
	}
	enr, _ := e.enr.Get(ctx, e.h, e.id)
	if enr.TimeSpentSec != 120 {
		t.Fatalf("enrollment time = %d", enr.TimeSpentSec)
	}
}

func TestLockedUnitRejectsLessons(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	lesson := e.course.LessonIDs(1)[0]
	if _, _, err := e.tracker.RecordTimeSpent(ctx, e.h, e.id, lesson, 60); !errors.Is(err, apperr.ErrUnitLocked) {
		t.Fatalf("time on locked unit: %v", err)
	}
	if _, _, err := e.tracker.CompleteLesson(ctx, e.h, e.id, lesson); !errors.Is(err, apperr.ErrUnitLocked) {
		t.Fatalf("complete on locked unit: %v", err)
	}
	if _, err := e.tracker.MarkUnitPassed(ctx, e.h, e.id, e.unitID(1), 100); !errors.Is(err, apperr.ErrUnitLocked) {
		t.Fatalf("pass locked unit: %v", err)
	}
}

func TestPassUnlocksNextAndKeepsBestScore(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.studyAndComplete(t, 0)

	chk, err := e.tracker.CheckCompletion(ctx, e.h, e.id, e.unitID(0))
	if err != nil || !chk.LessonsComplete || chk.QuizPassed {
		t.Fatalf("check = %+v, %v", chk, err)
	}

	if _, err := e.tracker.RecordQuizFailure(ctx, e.h, e.id, e.unitID(0), 50); err != nil {
		t.Fatal(err)
	}
	up, err := e.tracker.MarkUnitPassed(ctx, e.h, e.id, e.unitID(0), 90)
	if err != nil {
		t.Fatal(err)
	}
	next, unlocked, err := e.tracker.UnlockNext(ctx, e.h, e.id, e.unitID(0))
	if err != nil || !unlocked || next.Status != progress.StatusInProgress || next.UnitID != e.unitID(1) {
		t.Fatalf("unlock = %+v %v %v", next, unlocked, err)
	}

	up, err = e.tracker.MarkUnitPassed(ctx, e.h, e.id, e.unitID(0), 80)
	if err != nil {
		t.Fatal(err)
	}
	if up.Status != progress.StatusCompleted || up.QuizBestScore != 90 || up.QuizAttempts != 3 || !up.QuizPassed {
		t.Fatalf("after second pass = %+v", up)
	}
	if _, unlocked, _ := e.tracker.UnlockNext(ctx, e.h, e.id, e.unitID(0)); unlocked {
		t.Fatalf("unit 2 unlocked twice")
	}

	agg, err := e.tracker.Recompute(ctx, e.h, e.id)
	if err != nil || agg.CurrentUnit != 2 {
		t.Fatalf("aggregate = %+v, %v", agg, err)
	}
	assertMonotonic(t, e)
}

func TestLastUnitHasNoNext(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e.studyAndComplete(t, i)
		if _, err := e.tracker.MarkUnitPassed(ctx, e.h, e.id, e.unitID(i), 100); err != nil {
			t.Fatal(err)
		}
		_, unlocked, err := e.tracker.UnlockNext(ctx, e.h, e.id, e.unitID(i))
		if err != nil {
			t.Fatal(err)
		}
		if unlocked != (i < 2) {
			t.Fatalf("unit %d unlocked next = %v", i+1, unlocked)
		}
	}
	agg, err := e.tracker.Recompute(ctx, e.h, e.id)
	if err != nil || agg.ProgressPct != 100 || agg.HoursCredited != 60 || agg.CurrentUnit != 3 {
		t.Fatalf("aggregate = %+v, %v", agg, err)
	}
	assertMonotonic(t, e)
}

func TestOverrideAndReset(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.studyAndComplete(t, 0)
	if _, err := e.tracker.MarkUnitPassed(ctx, e.h, e.id, e.unitID(0), 95); err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.tracker.UnlockNext(ctx, e.h, e.id, e.unitID(0)); err != nil {
		t.Fatal(err)
	}

	up, err := e.tracker.Override(ctx, e.h, e.id, e.unitID(2), progress.StatusCompleted)
	if err != nil || up.Status != progress.StatusCompleted || !up.QuizPassed {
		t.Fatalf("override = %+v, %v", up, err)
	}
	up, err = e.tracker.Override(ctx, e.h, e.id, e.unitID(0), progress.StatusLocked)
	if err != nil || up.Status != progress.StatusLocked || up.QuizPassed {
		t.Fatalf("override backwards = %+v, %v", up, err)
	}
	if _, err := e.tracker.Override(ctx, e.h, e.id, e.unitID(0), "done"); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("bad status: %v", err)
	}

	if err := e.tracker.Reset(ctx, e.h, e.id); err != nil {
		t.Fatal(err)
	}
	units, _ := e.tracker.Units(ctx, e.h, e.id)
	if units[0].Status != progress.StatusInProgress || units[1].Status != progress.StatusLocked || units[2].Status != progress.StatusLocked {
		t.Fatalf("after reset = %+v", units)
	}
	if units[0].QuizAttempts != 1 || units[0].QuizBestScore != 0 {
		t.Fatalf("quiz counters after reset = %+v", units[0])
	}
	lessons, _ := e.tracker.Lessons(ctx, e.h, e.id)
	if len(lessons) != 0 {
		t.Fatalf("lessons survived reset: %d", len(lessons))
	}
	enr, _ := e.enr.Get(ctx, e.h, e.id)
	if enr.ProgressPct != 0 || enr.HoursCredited != 0 || enr.CurrentUnit != 1 {
		t.Fatalf("enrollment after reset = %+v", enr)
	}
}

func assertMonotonic(t *testing.T, e *env) {
	t.Helper()
	units, err := e.tracker.Units(context.Background(), e.h, e.id)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(units); i++ {
		if units[i].Status == progress.StatusCompleted && units[i+1].Status == progress.StatusLocked {
			t.Fatalf("unit %d completed but unit %d locked", units[i].Sequence, units[i+1].Sequence)
		}
	}
}
