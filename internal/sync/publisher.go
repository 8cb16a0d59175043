package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mind-engage/coursegate/internal/logger"
)

// Publisher hands an event to downstream collaborators (notifications,
// certificates, regulatory export).
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects and pings before returning.
func NewRedisPublisher(ctx context.Context, log *logger.Logger, addr, channel string) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if channel == "" {
		channel = "coursegate.events"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{log: log.With("service", "RedisPublisher"), rdb: rdb, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }

// LogPublisher writes events to the log; used when no broker is configured.
type LogPublisher struct{ log *logger.Logger }

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log.With("service", "LogPublisher")}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("event", "seq", e.Seq, "type", e.Type, "key", e.Key)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
