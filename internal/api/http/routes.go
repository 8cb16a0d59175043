package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/coursegate/internal/auth/middleware"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/logger"
	"github.com/mind-engage/coursegate/internal/progression"
	"github.com/mind-engage/coursegate/internal/rbac"
)

// NewRouter mounts the public, learner and admin routes.
func NewRouter(cfg config.Config, log *logger.Logger, dbh *sql.DB, c *progression.Coordinator, authSvc *auth.AuthService) http.Handler {
	api := NewAPI(c, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Local login (enabled in offline mode by default; can be enabled online via env)
	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, auth.LoginOptions{
			EnableLearnerLogin: cfg.Mode == config.ModeOffline,
			AdminUser:          cfg.AdminUser,
			AdminPassHash:      cfg.AdminPassHash,
		}))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("enrollment:create")).
			Post("/enrollments", api.Enroll())
		pr.With(rbac.Require("progress:view")).
			Get("/enrollments", api.ListEnrollments())

		pr.Route("/enrollments/{enrollmentID}", func(er chi.Router) {
			er.With(rbac.Require("progress:view")).Get("/progress", api.CourseProgress())
			er.With(rbac.Require("lesson:track")).Post("/lessons/{lessonID}/time", api.RecordTime())
			er.With(rbac.Require("lesson:track")).Post("/lessons/{lessonID}/complete", api.CompleteLesson())

			er.With(rbac.Require("progress:view")).Get("/final-exam/eligibility", api.FinalExamEligibility())
			er.With(rbac.Require("attempt:create")).Post("/final-exam/acknowledge", api.AcknowledgePolicy())

			er.With(rbac.Require("attempt:create")).Post("/attempts", api.StartAttempt())
			er.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/attempts", api.AttemptHistory())
			er.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).Get("/banks/{bankID}/attempts", api.AttemptHistory())
		})

		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.AttemptReview())
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.SubmitAnswer())
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/complete", api.CompleteAttempt())

		pr.Route("/admin", func(ar chi.Router) {
			ar.With(rbac.Require("catalog:import")).Post("/courses", api.ImportCourse())
			ar.With(rbac.Require("catalog:import")).Post("/banks", api.ImportBank())
			ar.With(rbac.Require("enrollment:override")).Post("/enrollments/{enrollmentID}/reset", api.ResetEnrollment())
			ar.With(rbac.Require("enrollment:override")).Post("/enrollments/{enrollmentID}/units/{unitID}/status", api.OverrideUnitStatus())
			ar.With(rbac.Require("audit:view")).Get("/audit", api.AuditSearch())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := dbh.PingContext(ctx); err != nil {
			api.log.Warn("readiness ping failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
