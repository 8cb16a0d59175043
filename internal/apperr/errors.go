// Package apperr holds the reason-coded errors returned to callers of the engine.
//
// Every rejection carries a stable Code that clients can switch on, a Kind used
// to pick the transport status, and for regulatory gating the instant at which
// the action becomes permitted again.
package apperr

import (
	"errors"
	"time"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindNotFound
	KindForbidden
	KindPrecondition
	KindLimit
	KindIntegrity
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindPrecondition:
		return "precondition"
	case KindLimit:
		return "limit"
	case KindIntegrity:
		return "integrity"
	case KindExhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	RetryAt *time.Time
	// Ref points at a related entity, e.g. the attempt that is already open.
	Ref string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches on Code so sentinel values compare equal to their decorated copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) With(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

func (e *Error) RetryAfter(t time.Time) *Error {
	c := *e
	c.RetryAt = &t
	return &c
}

func (e *Error) WithRef(ref string) *Error {
	c := *e
	c.Ref = ref
	return &c
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// preconditions
var (
	ErrUnitLocked          = newErr(KindPrecondition, "unit_locked", "unit is locked until the previous unit is completed")
	ErrEnrollmentExpired   = newErr(KindPrecondition, "enrollment_expired", "enrollment has expired")
	ErrBankNotInCourse     = newErr(KindPrecondition, "bank_not_in_course", "question bank does not belong to the enrolled course")
	ErrLessonNotInCourse   = newErr(KindPrecondition, "lesson_not_in_course", "lesson does not belong to the enrolled course")
	ErrMinimumTimeNotMet   = newErr(KindPrecondition, "minimum_time_not_met", "minimum lesson time not met")
	ErrLessonsIncomplete   = newErr(KindPrecondition, "lessons_incomplete", "all lessons in the unit must be completed first")
	ErrExamLocked          = newErr(KindPrecondition, "exam_locked", "every unit must be completed before the final exam")
	ErrPolicyNotAcked      = newErr(KindPrecondition, "policy_not_acknowledged", "the retake policy must be acknowledged first")
	ErrAttemptExpired      = newErr(KindPrecondition, "attempt_expired", "the attempt time limit has elapsed")
	ErrEnrollmentCompleted = newErr(KindPrecondition, "enrollment_completed", "course already completed")
)

// regulatory limits
var (
	ErrAttemptLimitExceeded = newErr(KindLimit, "attempt_limit_exceeded", "final exam attempt limit reached")
	ErrCourseRepeatRequired = newErr(KindLimit, "course_repeat_required", "the retake window has closed; the course must be repeated")
	ErrCooldownActive       = newErr(KindLimit, "cooldown_active", "the retest waiting period has not elapsed")
	ErrFinalExamPassed      = newErr(KindLimit, "final_exam_passed", "final exam already passed")
)

// integrity
var (
	ErrAttemptAlreadyCompleted = newErr(KindIntegrity, "attempt_already_completed", "attempt already completed")
	ErrDuplicateOpenAttempt    = newErr(KindIntegrity, "duplicate_open_attempt", "an attempt for this bank is already open")
	ErrAnswerAlreadyRecorded   = newErr(KindIntegrity, "answer_already_recorded", "question already answered in this attempt")
	ErrDuplicateProgress       = newErr(KindIntegrity, "duplicate_progress", "progress row already exists")
	ErrReservationConflict     = newErr(KindIntegrity, "reservation_conflict", "too many concurrent exam starts; try again")
)

// resource exhaustion
var ErrInsufficientQuestions = newErr(KindExhausted, "insufficient_questions", "question bank has too few active questions")

// lookups, ownership and input
var (
	ErrNotFound        = newErr(KindNotFound, "not_found", "not found")
	ErrNotOwner        = newErr(KindForbidden, "not_owner", "enrollment belongs to another learner")
	ErrAdminRequired   = newErr(KindForbidden, "admin_required", "administrator privileges required")
	ErrUnknownQuestion = newErr(KindInvalid, "unknown_question", "question is not part of this attempt")
	ErrInvalidOption   = newErr(KindInvalid, "invalid_option", "selected option is out of range")
	ErrInvalid         = newErr(KindInvalid, "invalid_request", "invalid request")
)
