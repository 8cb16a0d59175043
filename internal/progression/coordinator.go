// Package progression runs the learner workflows that span several stores:
// enrolling, studying lessons, taking unit quizzes and the final exam, and the
// administrative overrides. Every mutating workflow is a single transaction.
package progression

import (
	"context"
	"database/sql"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/attempt"
	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/enrollment"
	"github.com/mind-engage/coursegate/internal/logger"
	"github.com/mind-engage/coursegate/internal/progress"
	"github.com/mind-engage/coursegate/internal/questionpool"
	"github.com/mind-engage/coursegate/internal/retake"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

// Deps wires the coordinator. Nil stores and a nil clock get defaults built
// from Config.
type Deps struct {
	DB          *sql.DB
	Config      config.Config
	Log         *logger.Logger
	Catalog     *catalog.SQLStore
	Pool        *questionpool.Pool
	Enrollments *enrollment.SQLStore
	Events      *syncx.EventRepo
	Now         func() time.Time
}

type Coordinator struct {
	h           *sql.DB
	cfg         config.Config
	log         *logger.Logger
	catalog     *catalog.SQLStore
	pool        *questionpool.Pool
	enrollments *enrollment.SQLStore
	ledger      *attempt.Ledger
	tracker     *progress.Tracker
	retake      *retake.Engine
	events      *syncx.EventRepo
	now         func() time.Time
}

func New(d Deps) *Coordinator {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Catalog == nil {
		d.Catalog = catalog.NewSQLStore()
	}
	if d.Pool == nil {
		d.Pool = questionpool.New()
	}
	if d.Enrollments == nil {
		d.Enrollments = enrollment.NewSQLStore()
	}
	if d.Events == nil {
		d.Events = syncx.NewEventRepo(d.Config.Events.SiteID)
	}
	return &Coordinator{
		h:           d.DB,
		cfg:         d.Config,
		log:         d.Log.With("service", "ProgressionCoordinator"),
		catalog:     d.Catalog,
		pool:        d.Pool,
		enrollments: d.Enrollments,
		ledger:      attempt.NewLedger(d.Pool, attempt.WithClock(d.Now)),
		tracker:     progress.NewTracker(d.Catalog, d.Enrollments, d.Config.Progress, progress.WithClock(d.Now)),
		retake:      retake.New(d.Config.Retake, retake.WithClock(d.Now)),
		events:      d.Events,
		now:         d.Now,
	}
}

func (c *Coordinator) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	return db.WithTx(ctx, c.h, fn)
}

// owned loads the enrollment and checks that the actor may act on it.
func (c *Coordinator) owned(ctx context.Context, q db.Querier, a Actor, enrollmentID string) (enrollment.Enrollment, error) {
	e, err := c.enrollments.Get(ctx, q, enrollmentID)
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	if !a.Admin && e.LearnerID != a.ID {
		return enrollment.Enrollment{}, apperr.ErrNotOwner
	}
	return e, nil
}

// active is owned plus the access-window check.
func (c *Coordinator) active(ctx context.Context, q db.Querier, a Actor, enrollmentID string) (enrollment.Enrollment, error) {
	e, err := c.owned(ctx, q, a, enrollmentID)
	if err != nil {
		return e, err
	}
	if e.Expired(c.now()) {
		return e, apperr.ErrEnrollmentExpired.RetryAfter(*e.ExpiresAt)
	}
	return e, nil
}

func requireAdmin(a Actor) error {
	if !a.Admin {
		return apperr.ErrAdminRequired
	}
	return nil
}

// Enroll creates an enrollment and its locked/unlocked unit rows. Learners may
// only enroll themselves.
func (c *Coordinator) Enroll(ctx context.Context, a Actor, req EnrollRequest) (enrollment.Enrollment, error) {
	if req.LearnerID == "" && !a.Enroller {
		req.LearnerID = a.ID
	}
	if !a.Admin && !a.Enroller && req.LearnerID != a.ID {
		return enrollment.Enrollment{}, apperr.ErrNotOwner
	}
	var out enrollment.Enrollment
	err := c.tx(ctx, func(tx *sql.Tx) error {
		if _, err := c.catalog.Course(ctx, tx, req.CourseID); err != nil {
			return err
		}
		units, err := c.catalog.Units(ctx, tx, req.CourseID)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return apperr.ErrInvalid.With("course has no units")
		}
		e, err := c.enrollments.Create(ctx, tx, enrollment.Enrollment{
			LearnerID:  req.LearnerID,
			CourseID:   req.CourseID,
			EnrolledAt: c.now(),
			ExpiresAt:  req.ExpiresAt,
		})
		if err != nil {
			return err
		}
		if err := c.tracker.EnsureInitialized(ctx, tx, e.ID, units); err != nil {
			return err
		}
		if err := c.events.Append(ctx, tx, syncx.TypeEnrollmentCreated, e.ID, map[string]any{
			"learner_id": e.LearnerID,
			"course_id":  e.CourseID,
		}); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return enrollment.Enrollment{}, err
	}
	c.log.Info("enrolled", "enrollment_id", out.ID, "learner_id", out.LearnerID, "course_id", out.CourseID)
	return out, nil
}

// Enrollments lists the actor's own enrollments, or another learner's for admins.
func (c *Coordinator) Enrollments(ctx context.Context, a Actor, learnerID string) ([]enrollment.Enrollment, error) {
	if learnerID == "" {
		learnerID = a.ID
	}
	if !a.Admin && learnerID != a.ID {
		return nil, apperr.ErrNotOwner
	}
	return c.enrollments.ForLearner(ctx, c.h, learnerID)
}
