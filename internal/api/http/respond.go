package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/logger"
	"github.com/mind-engage/coursegate/internal/progression"
	"github.com/mind-engage/coursegate/internal/rbac"
)

// API holds what the handlers share.
type API struct {
	c        *progression.Coordinator
	log      *logger.Logger
	validate *validator.Validate
}

func NewAPI(c *progression.Coordinator, log *logger.Logger) *API {
	if log == nil {
		log = logger.Nop()
	}
	return &API{c: c, log: log.With("service", "HTTP"), validate: validator.New()}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	RetryAt *time.Time `json:"retry_at,omitempty"`
	Ref     string     `json:"ref,omitempty"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden, apperr.KindLimit:
		return http.StatusForbidden
	case apperr.KindPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindIntegrity:
		return http.StatusConflict
	case apperr.KindExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// writeError maps reason-coded errors to their status; anything else is logged
// and reported as a 500 without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Code: "internal", Message: "internal error"},
		})
		return
	}
	if e.RetryAt != nil {
		if secs := int(time.Until(*e.RetryAt).Seconds()); secs > 0 {
			w.Header().Set("Retry-After", fmt.Sprint(secs))
		}
	}
	respondJSON(w, statusFor(e.Kind), map[string]errorBody{
		"error": {Code: e.Code, Message: e.Message, RetryAt: e.RetryAt, Ref: e.Ref},
	})
}

// decode reads an optional JSON body into v and validates it. An empty body
// leaves v at its zero value.
func (a *API) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.ErrInvalid.With("bad json")
	}
	if err := a.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			var parts []string
			for _, fe := range verrs {
				parts = append(parts, strings.ToLower(fe.Field())+" "+fe.Tag())
			}
			return apperr.ErrInvalid.With("invalid fields: " + strings.Join(parts, ", "))
		}
		return apperr.ErrInvalid.With(err.Error())
	}
	return nil
}

func actorFrom(r *http.Request) progression.Actor {
	id, _ := rbac.IdentityFrom(r.Context())
	return progression.Actor{ID: id.Subject, Admin: id.Admin(), Enroller: id.Enroller()}
}
