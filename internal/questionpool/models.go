package questionpool

type Kind string

const (
	KindUnitQuiz  Kind = "unit_quiz"
	KindFinalExam Kind = "final_exam"
)

// Bank is a named pool of questions scoped to a course (final exam) or a unit (unit quiz).
type Bank struct {
	ID                  string `json:"id"`
	CourseID            string `json:"course_id"`
	UnitID              string `json:"unit_id,omitempty"` // empty for course-level banks
	Kind                Kind   `json:"kind"`
	Form                string `json:"form,omitempty"` // "A" | "B" for rotating final exams
	Title               string `json:"title"`
	QuestionsPerAttempt int    `json:"questions_per_attempt"`
	PassingScore        int    `json:"passing_score"`            // 0..100
	TimeLimitSec        int    `json:"time_limit_sec,omitempty"` // 0 = untimed
}

type Question struct {
	ID           string   `json:"id"`
	BankID       string   `json:"bank_id"`
	Sequence     int      `json:"sequence"`
	Type         string   `json:"type"` // single_choice | true_false
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Active       bool     `json:"active"`
}

// PublicQuestion is what a learner sees while an attempt is open.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: opts}
}
