package progress

import "time"

type Status string

const (
	StatusLocked     Status = "locked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusLocked, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type UnitProgress struct {
	EnrollmentID     string     `json:"enrollment_id"`
	UnitID           string     `json:"unit_id"`
	Sequence         int        `json:"sequence"`
	Status           Status     `json:"status"`
	LessonsCompleted int        `json:"lessons_completed"`
	QuizPassed       bool       `json:"quiz_passed"`
	QuizBestScore    int        `json:"quiz_best_score"`
	QuizAttempts     int        `json:"quiz_attempts"`
	TimeSpentSec     int64      `json:"time_spent_sec"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

type LessonProgress struct {
	EnrollmentID string     `json:"enrollment_id"`
	LessonID     string     `json:"lesson_id"`
	UnitID       string     `json:"unit_id"`
	Completed    bool       `json:"completed"`
	TimeSpentSec int64      `json:"time_spent_sec"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Check is the precondition view of one unit.
type Check struct {
	LessonsComplete bool `json:"lessons_complete"`
	QuizPassed      bool `json:"quiz_passed"`
}

// Aggregate is the enrollment-level summary derived from unit and lesson progress.
type Aggregate struct {
	CurrentUnit      int `json:"current_unit"`
	ProgressPct      int `json:"progress_pct"`
	HoursCredited    int `json:"hours_credited"`
	LessonsCompleted int `json:"lessons_completed"`
	LessonsTotal     int `json:"lessons_total"`
}
