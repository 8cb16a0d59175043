// Package questionpool owns question banks and draws randomized question sets from them.
package questionpool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mind-engage/coursegate/internal/apperr"
	"github.com/mind-engage/coursegate/internal/db"
)

// Pool serves banks and questions from the catalog tables and samples attempts.
// The random source is the only in-memory state and is safe for concurrent use.
type Pool struct {
	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Pool)

// WithSeed makes sampling reproducible.
func WithSeed(seed int64) Option {
	return func(p *Pool) { p.rng = rand.New(rand.NewSource(seed)) }
}

func New(opts ...Option) *Pool {
	p := &Pool{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Sample draws count distinct active questions from the bank, uniformly without
// replacement. The returned order is the presentation order.
func (p *Pool) Sample(ctx context.Context, q db.Querier, bankID string, count int) ([]Question, error) {
	if count <= 0 {
		return nil, apperr.ErrInvalid.With("questions per attempt must be positive")
	}
	active, err := p.activeQuestions(ctx, q, bankID)
	if err != nil {
		return nil, err
	}
	if len(active) < count {
		return nil, apperr.ErrInsufficientQuestions
	}
	p.shuffleHead(active, count)
	out := make([]Question, count)
	copy(out, active[:count])
	return out, nil
}

// shuffleHead runs the first k steps of Fisher-Yates so qs[:k] is a uniform
// k-subset in random order.
func (p *Pool) shuffleHead(qs []Question, k int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(qs)
	for i := 0; i < k; i++ {
		j := i + p.rng.Intn(n-i)
		qs[i], qs[j] = qs[j], qs[i]
	}
}
