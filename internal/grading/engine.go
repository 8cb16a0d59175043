package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type         string
	OptionCount  int
	CorrectIndex int
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct  bool
	Feedback []string
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected int) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected int) (Result, error)
}

// ErrOptionOutOfRange is returned when the selected index is not one of the options.
var ErrOptionOutOfRange = errors.New("grading: option out of range")

type defaultGrader struct {
	strategies map[string]Strategy
	fallback   Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected int) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		s = g.fallback
	}
	return s.Grade(ctx, q, selected)
}

type Option func(*config)

type config struct {
	extra map[string]Strategy
}

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(typ string, s Strategy) Option {
	return func(c *config) { c.extra[typ] = s }
}

// NewDefaultGrader installs the multiple-choice strategies. Unknown types are
// graded as single choice.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{extra: map[string]Strategy{}}
	for _, o := range opts {
		o(cfg)
	}
	g := &defaultGrader{
		strategies: map[string]Strategy{
			"single_choice": singleChoiceStrategy{},
			"true_false":    trueFalseStrategy{},
		},
		fallback: singleChoiceStrategy{},
	}
	for k, s := range cfg.extra {
		g.strategies[k] = s
	}
	return g
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, selected int) (Result, error) {
	if selected < 0 || selected >= q.OptionCount {
		return Result{}, ErrOptionOutOfRange
	}
	return Result{Correct: selected == q.CorrectIndex}, nil
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(ctx context.Context, q Q, selected int) (Result, error) {
	if q.OptionCount != 2 {
		return Result{}, fmt.Errorf("grading: true/false question has %d options", q.OptionCount)
	}
	return singleChoiceStrategy{}.Grade(ctx, q, selected)
}

// Score is round(correct / total × 100); an empty attempt scores zero.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
