package enrollment

import "time"

type Enrollment struct {
	ID                 string     `json:"id"`
	LearnerID          string     `json:"learner_id"`
	CourseID           string     `json:"course_id"`
	EnrolledAt         time.Time  `json:"enrolled_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CurrentUnit        int        `json:"current_unit"`
	TimeSpentSec       int64      `json:"time_spent_sec"`
	HoursCredited      int        `json:"hours_credited"`
	ProgressPct        int        `json:"progress_pct"`
	FinalExamPassed    bool       `json:"final_exam_passed"`
	FinalExamBestScore int        `json:"final_exam_best_score"`
	FinalExamAttempts  int        `json:"final_exam_attempts"`
	FirstExamAttemptAt *time.Time `json:"first_exam_attempt_at,omitempty"`
	LastExamAttemptAt  *time.Time `json:"last_exam_attempt_at,omitempty"`
	RetestEligibleAt   *time.Time `json:"retest_eligible_at,omitempty"`
	PolicyAckAt        *time.Time `json:"policy_ack_at,omitempty"`
	Completed          bool       `json:"completed"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Expired reports whether the enrollment's access window has closed at now.
func (e Enrollment) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// ExamState is the slice of an enrollment the retake policy reads and advances.
type ExamState struct {
	Attempts         int
	Passed           bool
	FirstAttemptAt   *time.Time
	LastAttemptAt    *time.Time
	RetestEligibleAt *time.Time
}

func (e Enrollment) ExamState() ExamState {
	return ExamState{
		Attempts:         e.FinalExamAttempts,
		Passed:           e.FinalExamPassed,
		FirstAttemptAt:   e.FirstExamAttemptAt,
		LastAttemptAt:    e.LastExamAttemptAt,
		RetestEligibleAt: e.RetestEligibleAt,
	}
}
