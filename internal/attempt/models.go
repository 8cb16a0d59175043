package attempt

import (
	"time"

	"github.com/mind-engage/coursegate/internal/questionpool"
)

// Attempt is one sitting of a quiz or final exam. Once CompletedAt is set the
// attempt is immutable.
type Attempt struct {
	ID             string            `json:"id"`
	EnrollmentID   string            `json:"enrollment_id"`
	BankID         string            `json:"bank_id"`
	LearnerID      string            `json:"learner_id"`
	Kind           questionpool.Kind `json:"kind"`
	Form           string            `json:"form,omitempty"`
	AttemptNumber  int               `json:"attempt_number"`
	QuestionIDs    []string          `json:"question_ids"`
	TotalQuestions int               `json:"total_questions"`
	AnsweredCount  int               `json:"answered_count"`
	CorrectCount   int               `json:"correct_count"`
	Score          int               `json:"score"`
	Passed         bool              `json:"passed"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	TimeSpentSec   int64             `json:"time_spent_sec"`
}

func (a Attempt) Completed() bool { return a.CompletedAt != nil }

// HasQuestion reports whether the question was part of the sampled set.
func (a Attempt) HasQuestion(id string) bool {
	for _, q := range a.QuestionIDs {
		if q == id {
			return true
		}
	}
	return false
}

// Deadline is when answers stop being accepted; zero for untimed attempts.
func (a Attempt) Deadline(limitSec int, grace time.Duration) time.Time {
	if limitSec <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(limitSec)*time.Second + grace)
}

type Answer struct {
	ID         string    `json:"id"`
	AttemptID  string    `json:"attempt_id"`
	QuestionID string    `json:"question_id"`
	Selected   int       `json:"selected_option"`
	Correct    bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

type OpenParams struct {
	EnrollmentID string
	LearnerID    string
	Bank         questionpool.Bank
	// AttemptNumber is assigned by the caller for final exams; zero numbers the
	// attempt after the existing ones for the bank.
	AttemptNumber int
	Questions     []questionpool.Question
}
