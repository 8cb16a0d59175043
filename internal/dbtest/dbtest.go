// Package dbtest opens throwaway sqlite databases and seeds a small course for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/questionpool"
)

// Open returns a fresh schema-initialized sqlite database closed at test cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

type Course struct {
	Opts    CourseOpts
	Def     catalog.CourseDef
	Quizzes []questionpool.Bank // one per unit, same order as Def.Units
	Finals  []questionpool.Bank // one per form
}

type CourseOpts struct {
	Jurisdiction      string
	Units             int
	LessonsPerUnit    int
	QuestionsPerBank  int
	QuestionsPerQuiz  int
	PassingScore      int
	Forms             []string
	FinalQuestions    int
	FinalPerAttempt   int
	FinalPassingScore int
	FinalTimeLimitSec int
	TotalHours        int
}

func (o *CourseOpts) defaults() {
	if o.Units == 0 {
		o.Units = 3
	}
	if o.LessonsPerUnit == 0 {
		o.LessonsPerUnit = 2
	}
	if o.QuestionsPerBank == 0 {
		o.QuestionsPerBank = 10
	}
	if o.QuestionsPerQuiz == 0 {
		o.QuestionsPerQuiz = 5
	}
	if o.PassingScore == 0 {
		o.PassingScore = 70
	}
	if len(o.Forms) == 0 {
		o.Forms = []string{"A", "B"}
	}
	if o.FinalQuestions == 0 {
		o.FinalQuestions = 20
	}
	if o.FinalPerAttempt == 0 {
		o.FinalPerAttempt = 10
	}
	if o.FinalPassingScore == 0 {
		o.FinalPassingScore = 75
	}
	if o.TotalHours == 0 {
		o.TotalHours = 60
	}
}

// SeedCourse imports a course whose every question has option 0 as the correct answer.
func SeedCourse(t testing.TB, h *sql.DB, pool *questionpool.Pool, opts CourseOpts) Course {
	t.Helper()
	opts.defaults()
	ctx := context.Background()

	def := catalog.CourseDef{Course: catalog.Course{
		Title:        "Test Course",
		Jurisdiction: opts.Jurisdiction,
		TotalHours:   opts.TotalHours,
	}}
	for u := 0; u < opts.Units; u++ {
		ud := catalog.UnitDef{Unit: catalog.Unit{Title: fmt.Sprintf("Unit %d", u+1)}}
		for l := 0; l < opts.LessonsPerUnit; l++ {
			ud.Lessons = append(ud.Lessons, catalog.Lesson{Title: fmt.Sprintf("Lesson %d.%d", u+1, l+1)})
		}
		def.Units = append(def.Units, ud)
	}
	def, err := catalog.NewSQLStore().PutCourse(ctx, h, def)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}

	out := Course{Opts: opts, Def: def}
	for _, u := range def.Units {
		b, _, err := pool.PutBank(ctx, h, questionpool.Bank{
			CourseID:            def.ID,
			UnitID:              u.ID,
			Kind:                questionpool.KindUnitQuiz,
			Title:               u.Title + " quiz",
			QuestionsPerAttempt: opts.QuestionsPerQuiz,
			PassingScore:        opts.PassingScore,
		}, Questions(opts.QuestionsPerBank))
		if err != nil {
			t.Fatalf("seed quiz bank: %v", err)
		}
		out.Quizzes = append(out.Quizzes, b)
	}
	for _, f := range opts.Forms {
		b, _, err := pool.PutBank(ctx, h, questionpool.Bank{
			CourseID:            def.ID,
			Kind:                questionpool.KindFinalExam,
			Form:                f,
			Title:               "Final exam form " + f,
			QuestionsPerAttempt: opts.FinalPerAttempt,
			PassingScore:        opts.FinalPassingScore,
			TimeLimitSec:        opts.FinalTimeLimitSec,
		}, Questions(opts.FinalQuestions))
		if err != nil {
			t.Fatalf("seed final bank: %v", err)
		}
		out.Finals = append(out.Finals, b)
	}
	return out
}

// Questions builds n active four-option questions answered by option 0.
func Questions(n int) []questionpool.Question {
	qs := make([]questionpool.Question, n)
	for i := range qs {
		qs[i] = questionpool.Question{
			Prompt:       fmt.Sprintf("Question %d", i+1),
			Options:      []string{"right", "wrong 1", "wrong 2", "wrong 3"},
			CorrectIndex: 0,
			Explanation:  "option 0 is always right here",
			Active:       true,
		}
	}
	return qs
}

// LessonIDs returns the lesson ids of unit i (0-based).
func (c Course) LessonIDs(i int) []string {
	var ids []string
	for _, l := range c.Def.Units[i].Lessons {
		ids = append(ids, l.ID)
	}
	return ids
}
