package syncx

import (
	"context"
	"database/sql"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mind-engage/coursegate/internal/logger"
)

// Relay drains the outbox into a Publisher. Delivery is at-least-once and in
// append order; a failed publish stops the batch and is retried on the next run.
type Relay struct {
	h     *sql.DB
	repo  *EventRepo
	pub   Publisher
	log   *logger.Logger
	batch int

	mu sync.Mutex // one drain at a time
}

func NewRelay(h *sql.DB, repo *EventRepo, pub Publisher, log *logger.Logger, batch int) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{h: h, repo: repo, pub: pub, log: log.With("service", "EventRelay"), batch: batch}
}

// RunOnce publishes up to one batch and returns how many events were delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.repo.Pending(ctx, r.h, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range events {
		if err := r.pub.Publish(ctx, e); err != nil {
			r.log.Warn("publish failed; will retry", "seq", e.Seq, "type", e.Type, "error", err)
			return sent, nil
		}
		if err := r.repo.MarkDelivered(ctx, r.h, e.Seq); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Schedule runs the relay on a cron spec such as "@every 30s". Stop the
// returned cron to end it.
func (r *Relay) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		n, err := r.RunOnce(context.Background())
		if err != nil {
			r.log.Error("event relay", "error", err)
			return
		}
		if n > 0 {
			r.log.Debug("event relay", "delivered", n)
		}
	}); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
