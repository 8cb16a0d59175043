package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

// -----------------------------
// Admin: catalog import, overrides & audit
// -----------------------------

// POST /admin/courses  (course tree as catalog.CourseDef)
func (a *API) ImportCourse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var def catalog.CourseDef
		if err := a.decode(r, &def); err != nil {
			a.writeError(w, r, err)
			return
		}
		out, err := a.c.ImportCourse(r.Context(), actorFrom(r), def)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

type questionImport struct {
	ID           string   `json:"id"`
	Type         string   `json:"type" validate:"omitempty,oneof=single_choice true_false"`
	Prompt       string   `json:"prompt" validate:"required"`
	Options      []string `json:"options" validate:"min=2"`
	CorrectIndex *int     `json:"correct_index" validate:"required,gte=0"`
	Explanation  string   `json:"explanation"`
	Active       *bool    `json:"active"` // defaults to true
}

type bankImport struct {
	ID                  string           `json:"id"`
	CourseID            string           `json:"course_id" validate:"required"`
	UnitID              string           `json:"unit_id"`
	Kind                string           `json:"kind" validate:"required,oneof=unit_quiz final_exam"`
	Form                string           `json:"form"`
	Title               string           `json:"title"`
	QuestionsPerAttempt int              `json:"questions_per_attempt" validate:"gt=0"`
	PassingScore        int              `json:"passing_score" validate:"gte=0,lte=100"`
	TimeLimitSec        int              `json:"time_limit_sec" validate:"gte=0"`
	Questions           []questionImport `json:"questions" validate:"dive"`
}

// POST /admin/banks
func (a *API) ImportBank() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bankImport
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		b := questionpool.Bank{
			ID:                  req.ID,
			CourseID:            req.CourseID,
			UnitID:              req.UnitID,
			Kind:                questionpool.Kind(req.Kind),
			Form:                req.Form,
			Title:               req.Title,
			QuestionsPerAttempt: req.QuestionsPerAttempt,
			PassingScore:        req.PassingScore,
			TimeLimitSec:        req.TimeLimitSec,
		}
		qs := make([]questionpool.Question, len(req.Questions))
		for i, x := range req.Questions {
			qs[i] = questionpool.Question{
				ID:           x.ID,
				Type:         x.Type,
				Prompt:       x.Prompt,
				Options:      x.Options,
				CorrectIndex: *x.CorrectIndex,
				Explanation:  x.Explanation,
				Active:       x.Active == nil || *x.Active,
			}
		}
		bank, stored, err := a.c.ImportBank(r.Context(), actorFrom(r), b, qs)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"bank": bank, "questions": len(stored)})
	}
}

// POST /admin/enrollments/{enrollmentID}/reset  { "reason": "..." }
func (a *API) ResetEnrollment() http.HandlerFunc {
	type request struct {
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		p, err := a.c.ResetEnrollment(r.Context(), actorFrom(r), chi.URLParam(r, "enrollmentID"), req.Reason)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// POST /admin/enrollments/{enrollmentID}/units/{unitID}/status  { "status": "completed", "reason": "..." }
func (a *API) OverrideUnitStatus() http.HandlerFunc {
	type request struct {
		Status string `json:"status" validate:"required,oneof=locked in_progress completed"`
		Reason string `json:"reason"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := a.decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		up, err := a.c.OverrideUnitStatus(r.Context(), actorFrom(r),
			chi.URLParam(r, "enrollmentID"), chi.URLParam(r, "unitID"), progress.Status(req.Status), req.Reason)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, up)
	}
}

// GET /admin/audit?q=...&limit=100
func (a *API) AuditSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		out, err := a.c.Audit(r.Context(), actorFrom(r), r.URL.Query().Get("q"), limit)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if out == nil {
			out = []syncx.Event{}
		}
		respondJSON(w, http.StatusOK, out)
	}
}
