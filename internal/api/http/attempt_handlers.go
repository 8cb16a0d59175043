package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursegate/internal/attempt"
)

// POST /enrollments/{enrollmentID}/attempts  { "bank_id": "..." }
func (a *API) StartAttempt() http.HandlerFunc {
	type request struct {
		BankID string `json:"bank_id" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		s, err := a.c.StartQuiz(r.Context(), actorFrom(r), chi.URLParam(r, "enrollmentID"), req.BankID)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, s)
	}
}

// POST /attempts/{attemptID}/answers  { "question_id": "...", "selected_option": 0 }
func (a *API) SubmitAnswer() http.HandlerFunc {
	type request struct {
		QuestionID     string `json:"question_id" validate:"required"`
		SelectedOption *int   `json:"selected_option" validate:"required,gte=0"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		fb, err := a.c.SubmitAnswer(r.Context(), actorFrom(r), chi.URLParam(r, "attemptID"), req.QuestionID, *req.SelectedOption)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, fb)
	}
}

// POST /attempts/{attemptID}/complete  { "time_spent_sec": 300 }
func (a *API) CompleteAttempt() http.HandlerFunc {
	type request struct {
		TimeSpentSec int64 `json:"time_spent_sec" validate:"gte=0"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		res, err := a.c.CompleteQuiz(r.Context(), actorFrom(r), chi.URLParam(r, "attemptID"), req.TimeSpentSec)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /enrollments/{enrollmentID}/attempts
// GET /enrollments/{enrollmentID}/banks/{bankID}/attempts
func (a *API) AttemptHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := a.c.AttemptHistory(r.Context(), actorFrom(r),
			chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "bankID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []attempt.Attempt{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /attempts/{attemptID}
func (a *API) AttemptReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rv, err := a.c.AttemptReview(r.Context(), actorFrom(r), chi.URLParam(r, "attemptID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rv)
	}
}
