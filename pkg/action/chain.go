package action

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/weftworks/loom/pkg/domain"
)

// Chain executes its children strictly in order, each seeing the context
// mutations of the previous one.
type Chain []Action

// Execute runs the children sequentially, stopping at the first error.
func (ch Chain) Execute(ctx context.Context, env Env, c *domain.Context) error {
	for _, a := range ch {
		if err := a.Execute(ctx, env, c); err != nil {
			return err
		}
	}
	return nil
}

// Parallel executes its children concurrently against the same context and
// completes when all finish. There is no partial-failure isolation: the
// first error cancels the group and propagates.
//
// The engine provides no locking beyond per-operation safety on the context;
// workflow authors must ensure concurrent siblings touch disjoint data keys
// and that at most one sibling mutates history.
type Parallel []Action

// Execute fans the children out on one errgroup, giving each an independent
// model session clone.
func (p Parallel) Execute(ctx context.Context, env Env, c *domain.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range p {
		a := a
		childEnv := env
		if env.Session != nil {
			childEnv.Session = env.Session.Clone()
		}
		g.Go(func() error {
			return a.Execute(gctx, childEnv, c)
		})
	}
	return g.Wait()
}
