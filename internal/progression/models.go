package progression

import (
	"time"

	"github.com/mind-engage/coursegate/internal/attempt"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	"github.com/mind-engage/coursegate/internal/retake"
)

// Actor is the authenticated caller. Admins bypass ownership and gating checks.
type Actor struct {
	ID    string
	Admin bool
	// Enroller may create enrollments for any learner (the payment collaborator).
	Enroller bool
}

type EnrollRequest struct {
	LearnerID string     `json:"learner_id"`
	CourseID  string     `json:"course_id" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// StartedAttempt is what a learner receives when a quiz or exam opens. The
// questions carry no answers.
type StartedAttempt struct {
	AttemptID     string                        `json:"attempt_id"`
	BankID        string                        `json:"bank_id"`
	Kind          questionpool.Kind             `json:"kind"`
	Form          string                        `json:"form,omitempty"`
	AttemptNumber int                           `json:"attempt_number"`
	Questions     []questionpool.PublicQuestion `json:"questions"`
	TimeLimitSec  int                           `json:"time_limit_sec,omitempty"`
	StartedAt     time.Time                     `json:"started_at"`
	Deadline      *time.Time                    `json:"deadline,omitempty"`
	Decision      *retake.Decision              `json:"decision,omitempty"`
}

// Feedback is the response to one answer. Correctness fields are omitted when
// the bank withholds feedback until completion.
type Feedback struct {
	AttemptID     string `json:"attempt_id"`
	QuestionID    string `json:"question_id"`
	Recorded      bool   `json:"recorded"`
	Correct       *bool  `json:"is_correct,omitempty"`
	CorrectOption *int   `json:"correct_option,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// AttemptReview is an attempt with the answers recorded so far.
type AttemptReview struct {
	Attempt attempt.Attempt  `json:"attempt"`
	Answers []ReviewedAnswer `json:"answers"`
}

// ReviewedAnswer hides correctness under the same rule as Feedback.
type ReviewedAnswer struct {
	QuestionID string    `json:"question_id"`
	Selected   int       `json:"selected_option"`
	Correct    *bool     `json:"is_correct,omitempty"`
	AnsweredAt time.Time `json:"answered_at"`
}

type Completion struct {
	Attempt         attempt.Attempt        `json:"attempt"`
	Unit            *progress.UnitProgress `json:"unit,omitempty"`
	UnlockedUnit    *progress.UnitProgress `json:"unlocked_unit,omitempty"`
	Progress        progress.Aggregate     `json:"progress"`
	CourseCompleted bool                   `json:"course_completed"`
	Eligibility     *retake.Decision       `json:"eligibility,omitempty"`
}

// Eligibility is the read-only final exam view used for display.
type Eligibility struct {
	retake.Decision
	ExamUnlocked       bool `json:"exam_unlocked"`
	PolicyAcknowledged bool `json:"policy_acknowledged"`
}

type CourseProgress struct {
	Enrollment enrollment.Enrollment     `json:"enrollment"`
	Progress   progress.Aggregate        `json:"progress"`
	Units      []progress.UnitProgress   `json:"units"`
	Lessons    []progress.LessonProgress `json:"lessons"`
	FinalExam  Eligibility               `json:"final_exam"`
}
