package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/progression"
)

// POST /enrollments  { "learner_id": "...", "course_id": "...", "expires_at": "..." }
func (a *API) Enroll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req progression.EnrollRequest
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		e, err := a.c.Enroll(r.Context(), actorFrom(r), req)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, e)
	}
}

// GET /enrollments?learner_id=...
func (a *API) ListEnrollments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := a.c.Enrollments(r.Context(), actorFrom(r), r.URL.Query().Get("learner_id"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []enrollment.Enrollment{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /enrollments/{enrollmentID}/progress
func (a *API) CourseProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.c.CourseProgress(r.Context(), actorFrom(r), chi.URLParam(r, "enrollmentID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// POST /enrollments/{enrollmentID}/lessons/{lessonID}/time  { "seconds": 60 }
func (a *API) RecordTime() http.HandlerFunc {
	type request struct {
		Seconds int64 `json:"seconds" validate:"gte=0"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		l, credited, err := a.c.RecordTimeSpent(r.Context(), actorFrom(r),
			chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "lessonID"), req.Seconds)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"lesson": l, "credited_sec": credited})
	}
}

// POST /enrollments/{enrollmentID}/lessons/{lessonID}/complete
func (a *API) CompleteLesson() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, agg, err := a.c.CompleteLesson(r.Context(), actorFrom(r),
			chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "lessonID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"lesson": l, "progress": agg})
	}
}

// GET /enrollments/{enrollmentID}/final-exam/eligibility
func (a *API) FinalExamEligibility() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		el, err := a.c.FinalExamEligibility(r.Context(), actorFrom(r), chi.URLParam(r, "enrollmentID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, el)
	}
}

// POST /enrollments/{enrollmentID}/final-exam/acknowledge
func (a *API) AcknowledgePolicy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := a.c.AcknowledgePolicy(r.Context(), actorFrom(r), chi.URLParam(r, "enrollmentID"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}
