// Package cancel implements the cooperative, request-scoped kill switch.
//
// A kill verdict lives in a durable store shared across processes; the gate
// layers a small per-process cache in front of it so a consumed verdict does
// not require the durable record to still exist. This is an advisory cache,
// not a distributed lock: concurrent processes may each discover and consume
// the same record, and a double delete is benign.
package cancel

import (
	"context"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// cacheSize bounds the local verdict cache. Verdicts are tiny and
// request-scoped, so tens of entries cover any realistic process.
const cacheSize = 64

// Gate answers "has this run been killed?" at every suspension point.
type Gate struct {
	store  ports.KillStore
	cache  *lru.Cache[string, bool]
	logger *slog.Logger
	output ports.OutputChannel
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithOutput attaches the run's response channel. On a positive verdict the
// gate forcibly ends it so the client sees a well-formed close.
func WithOutput(ch ports.OutputChannel) Option {
	return func(g *Gate) {
		g.output = ch
	}
}

// NewGate creates a gate over the given durable store.
func NewGate(store ports.KillStore, opts ...Option) *Gate {
	cache, _ := lru.New[string, bool](cacheSize)
	g := &Gate{
		store:  store,
		cache:  cache,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsKilled reports whether the run identified by (user, requestID) has been
// cooperatively cancelled.
//
// Resolution order: local cache, then the durable store. A positive durable
// verdict is consumed (record deleted, one-shot semantics), cached locally,
// and the response stream is ended. A missing record means "continue".
func (g *Gate) IsKilled(ctx context.Context, user, requestID string) bool {
	key := user + "/" + requestID

	if verdict, ok := g.cache.Get(key); ok {
		return verdict
	}

	rec, err := g.store.Get(ctx, user, requestID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			// Store trouble must not stall the run.
			g.logger.Warn("kill-switch lookup failed, assuming alive", "user", user, "request_id", requestID, "err", err)
		}
		return false
	}

	if !rec.ShouldExit {
		return false
	}

	// One-shot consumption. A concurrent consumer may have deleted it first.
	if err := g.store.Delete(ctx, user, requestID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		g.logger.Warn("failed to consume kill record", "user", user, "request_id", requestID, "err", err)
	}
	g.cache.Add(key, true)

	if g.output != nil {
		if err := g.output.End(); err != nil {
			g.logger.Warn("failed to end response stream on kill", "request_id", requestID, "err", err)
		}
	}

	g.logger.Info("run killed by external request", "user", user, "request_id", requestID)
	return true
}

// Forget drops any cached verdict for (user, requestID). Used when a request
// ID is reused after a natural completion.
func (g *Gate) Forget(user, requestID string) {
	g.cache.Remove(user + "/" + requestID)
}
