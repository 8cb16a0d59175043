// Package syncx is the event outbox: state changes append events inside the
// same transaction, and a relay later publishes them to downstream consumers.
package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mind-engage/coursegate/internal/db"
)

const (
	TypeEnrollmentCreated  = "enrollment.created"
	TypeUnitPassed         = "unit.passed"
	TypeFinalExamPassed    = "final_exam.passed"
	TypeFinalExamFailed    = "final_exam.failed"
	TypeCourseCompleted    = "course.completed"
	TypePolicyAcknowledged = "final_exam.policy_acknowledged"
	TypeProgressReset      = "admin.progress_reset"
	TypeUnitOverride       = "admin.unit_override"
)

type Event struct {
	Seq         int64           `json:"seq"`
	SiteID      string          `json:"site_id"`
	Type        string          `json:"type"`
	Key         string          `json:"key"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   int64           `json:"created_at"`
	DeliveredAt *int64          `json:"delivered_at,omitempty"`
}

type EventRepo struct {
	siteID string
	now    func() time.Time
}

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{siteID: siteID, now: time.Now}
}

// Append records an event keyed by the entity it concerns. data is stored as JSON.
func (r *EventRepo) Append(ctx context.Context, q db.Querier, typ, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(raw), r.now().Unix())
	return err
}

const eventCols = `seq, site_id, typ, key, data, created_at, delivered_at`

func (r *EventRepo) query(ctx context.Context, q db.Querier, query string, args ...any) ([]Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var data string
		var delivered *int64
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt, &delivered); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		e.DeliveredAt = delivered
		out = append(out, e)
	}
	return out, rows.Err()
}

// Pending returns undelivered events in append order.
func (r *EventRepo) Pending(ctx context.Context, q db.Querier, limit int) ([]Event, error) {
	return r.query(ctx, q,
		`SELECT `+eventCols+` FROM event_log WHERE delivered_at IS NULL ORDER BY seq LIMIT $1`, limit)
}

func (r *EventRepo) MarkDelivered(ctx context.Context, q db.Querier, seq int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE event_log SET delivered_at=$1 WHERE seq=$2 AND delivered_at IS NULL`, r.now().Unix(), seq)
	return err
}

// Search matches term against event type and key, newest first.
func (r *EventRepo) Search(ctx context.Context, q db.Querier, term string, limit int) ([]Event, error) {
	return r.query(ctx, q,
		`SELECT `+eventCols+` FROM event_log
		 WHERE typ LIKE '%'||$1||'%' OR key LIKE '%'||$1||'%'
		 ORDER BY seq DESC LIMIT $2`, term, limit)
}
