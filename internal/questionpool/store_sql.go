package questionpool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/db"
)

const bankCols = `id, course_id, unit_id, kind, form, title, questions_per_attempt, passing_score, time_limit_sec`

func scanBank(sc interface{ Scan(...any) error }) (Bank, error) {
	var b Bank
	var unit sql.NullString
	err := sc.Scan(&b.ID, &b.CourseID, &unit, &b.Kind, &b.Form, &b.Title,
		&b.QuestionsPerAttempt, &b.PassingScore, &b.TimeLimitSec)
	b.UnitID = unit.String
	return b, err
}

func (p *Pool) Bank(ctx context.Context, q db.Querier, id string) (Bank, error) {
	b, err := scanBank(q.QueryRowContext(ctx, `SELECT `+bankCols+` FROM question_banks WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Bank{}, apperr.ErrNotFound.With("question bank not found")
	}
	return b, err
}

// BanksForCourse lists the course's banks of the given kind ordered by form then id.
// An empty kind lists every bank.
func (p *Pool) BanksForCourse(ctx context.Context, q db.Querier, courseID string, kind Kind) ([]Bank, error) {
	query := `SELECT ` + bankCols + ` FROM question_banks WHERE course_id=$1`
	args := []any{courseID}
	if kind != "" {
		query += ` AND kind=$2`
		args = append(args, string(kind))
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY form, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BankForUnit returns the unit quiz bank for a unit.
func (p *Pool) BankForUnit(ctx context.Context, q db.Querier, unitID string) (Bank, error) {
	b, err := scanBank(q.QueryRowContext(ctx,
		`SELECT `+bankCols+` FROM question_banks WHERE unit_id=$1 AND kind=$2 ORDER BY id LIMIT 1`,
		unitID, string(KindUnitQuiz)))
	if errors.Is(err, sql.ErrNoRows) {
		return Bank{}, apperr.ErrNotFound.With("unit has no quiz bank")
	}
	return b, err
}

// QuestionsForBank returns every question of the bank, active or not, keyed by id.
// Retired questions stay resolvable for attempts that sampled them earlier.
func (p *Pool) QuestionsForBank(ctx context.Context, q db.Querier, bankID string) (map[string]Question, error) {
	qs, err := p.loadQuestions(ctx, q, bankID, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Question, len(qs))
	for _, x := range qs {
		out[x.ID] = x
	}
	return out, nil
}

func (p *Pool) activeQuestions(ctx context.Context, q db.Querier, bankID string) ([]Question, error) {
	return p.loadQuestions(ctx, q, bankID, true)
}

func (p *Pool) loadQuestions(ctx context.Context, q db.Querier, bankID string, activeOnly bool) ([]Question, error) {
	query := `SELECT id, bank_id, sequence, qtype, prompt, options_json, correct_index, explanation, active
		FROM questions WHERE bank_id=$1`
	if activeOnly {
		query += ` AND active=TRUE`
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY sequence, id`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var x Question
		var opts string
		if err := rows.Scan(&x.ID, &x.BankID, &x.Sequence, &x.Type, &x.Prompt, &opts,
			&x.CorrectIndex, &x.Explanation, &x.Active); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &x.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", x.ID, err)
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// Validate checks the invariants every stored question must hold.
func (x Question) Validate() error {
	if strings.TrimSpace(x.Prompt) == "" {
		return apperr.ErrInvalid.With("question prompt required")
	}
	if len(x.Options) < 2 {
		return apperr.ErrInvalid.With("question needs at least two options")
	}
	if x.CorrectIndex < 0 || x.CorrectIndex >= len(x.Options) {
		return apperr.ErrInvalid.With("correct index outside option range")
	}
	if x.Type == "true_false" && len(x.Options) != 2 {
		return apperr.ErrInvalid.With("true/false question needs exactly two options")
	}
	return nil
}

func (b Bank) validate() error {
	switch b.Kind {
	case KindUnitQuiz:
		if b.UnitID == "" {
			return apperr.ErrInvalid.With("unit quiz bank requires unit_id")
		}
	case KindFinalExam:
	default:
		return apperr.ErrInvalid.With("bank kind must be unit_quiz or final_exam")
	}
	if b.CourseID == "" {
		return apperr.ErrInvalid.With("bank requires course_id")
	}
	if b.QuestionsPerAttempt <= 0 {
		return apperr.ErrInvalid.With("questions_per_attempt must be positive")
	}
	if b.PassingScore < 0 || b.PassingScore > 100 {
		return apperr.ErrInvalid.With("passing_score must be within 0..100")
	}
	if b.TimeLimitSec < 0 {
		return apperr.ErrInvalid.With("time_limit_sec must not be negative")
	}
	return nil
}

// PutBank upserts a bank and its questions. Every question is validated before
// anything is written; missing ids are generated.
func (p *Pool) PutBank(ctx context.Context, q db.Querier, b Bank, qs []Question) (Bank, []Question, error) {
	b.Form = strings.ToUpper(strings.TrimSpace(b.Form))
	if err := b.validate(); err != nil {
		return b, nil, err
	}
	for i := range qs {
		if qs[i].Type == "" {
			qs[i].Type = "single_choice"
		}
		if err := qs[i].Validate(); err != nil {
			msg := err.Error()
			if e, ok := apperr.As(err); ok {
				msg = e.Message
			}
			return b, nil, apperr.ErrInvalid.With(fmt.Sprintf("question %d: %s", i+1, msg))
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	var unit any
	if b.UnitID != "" {
		unit = b.UnitID
	}
	if _, err := q.ExecContext(ctx, `
		INSERT INTO question_banks (`+bankCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, form=EXCLUDED.form,
			questions_per_attempt=EXCLUDED.questions_per_attempt, passing_score=EXCLUDED.passing_score,
			time_limit_sec=EXCLUDED.time_limit_sec`,
		b.ID, b.CourseID, unit, string(b.Kind), b.Form, b.Title,
		b.QuestionsPerAttempt, b.PassingScore, b.TimeLimitSec); err != nil {
		return b, nil, fmt.Errorf("put bank: %w", err)
	}
	for i := range qs {
		x := &qs[i]
		if x.ID == "" {
			x.ID = uuid.NewString()
		}
		if x.Sequence == 0 {
			x.Sequence = i + 1
		}
		x.BankID = b.ID
		opts, err := json.Marshal(x.Options)
		if err != nil {
			return b, nil, err
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO questions (id, bank_id, sequence, qtype, prompt, options_json, correct_index, explanation, active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE SET sequence=EXCLUDED.sequence, qtype=EXCLUDED.qtype, prompt=EXCLUDED.prompt,
				options_json=EXCLUDED.options_json, correct_index=EXCLUDED.correct_index,
				explanation=EXCLUDED.explanation, active=EXCLUDED.active`,
			x.ID, x.BankID, x.Sequence, x.Type, x.Prompt, string(opts), x.CorrectIndex, x.Explanation, x.Active); err != nil {
			return b, nil, fmt.Errorf("put question %d: %w", x.Sequence, err)
		}
	}
	return b, qs, nil
}

// Forms returns the distinct final-exam forms of a course in rotation order.
func Forms(banks []Bank) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range banks {
		if b.Kind != KindFinalExam || seen[b.Form] {
			continue
		}
		seen[b.Form] = true
		out = append(out, b.Form)
	}
	sort.Strings(out)
	return out
}
