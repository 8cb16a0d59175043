package grading

import (
	"context"
	"errors"
	"testing"
)

func TestScore(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{7, 10, 70},
		{2, 3, 67},
		{1, 3, 33},
		{1, 8, 13}, // 12.5 rounds half away from zero
		{0, 0, 0},
		{5, 5, 100},
	}
	for _, c := range cases {
		if got := Score(c.correct, c.total); got != c.want {
			t.Errorf("Score(%d,%d) = %d, want %d", c.correct, c.total, got, c.want)
		}
	}
}

func TestDefaultGrader(t *testing.T) {
	g := NewDefaultGrader()
	ctx := context.Background()

	res, err := g.Grade(ctx, Q{Type: "single_choice", OptionCount: 4, CorrectIndex: 2}, 2)
	if err != nil || !res.Correct {
		t.Fatalf("expected correct: %+v %v", res, err)
	}
	res, err = g.Grade(ctx, Q{Type: "", OptionCount: 4, CorrectIndex: 2}, 1)
	if err != nil || res.Correct {
		t.Fatalf("expected incorrect via fallback: %+v %v", res, err)
	}
	if _, err := g.Grade(ctx, Q{Type: "single_choice", OptionCount: 4}, 4); !errors.Is(err, ErrOptionOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if _, err := g.Grade(ctx, Q{Type: "true_false", OptionCount: 3}, 0); err == nil {
		t.Fatalf("true/false with 3 options should fail")
	}
}

type alwaysRight struct{}

func (alwaysRight) Grade(context.Context, Q, int) (Result, error) { return Result{Correct: true}, nil }

func TestWithStrategy(t *testing.T) {
	g := NewDefaultGrader(WithStrategy("survey", alwaysRight{}))
	res, _ := g.Grade(context.Background(), Q{Type: "survey"}, 99)
	if !res.Correct {
		t.Fatalf("custom strategy not used")
	}
}
