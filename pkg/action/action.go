// Package action implements the composable unit-of-work algebra executed
// against a workflow context: sequential chains, concurrent groups,
// per-matching-key map and reduce, status-bearing wrappers, retrieval calls
// and model sub-prompts.
//
// Actions never return a value to their caller; all results are written into
// the context's data map by convention. An action is constructed once at
// workflow-definition time and may be invoked many times across a run; it is
// stateless between invocations except through the context it mutates.
package action

import (
	"context"
	"log/slog"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/cancel"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
	"github.com/weftworks/loom/pkg/render"
)

// DefaultRetries is the fixed retry budget for model sub-prompts.
const DefaultRetries = 3

// Env bundles the collaborators an action may use during one execution.
// It is passed by value so wrappers can swap members (typically Output)
// for the scope of a sub-action without affecting siblings.
type Env struct {
	Session   ports.ModelSession
	Output    ports.OutputChannel
	Retriever ports.Retriever
	Gate      *cancel.Gate
	Renderer  *render.Renderer
	Logger    *slog.Logger

	// Resources is the full inventory of retrievable resources handed to
	// the run. States may suppress it for their entry action.
	Resources []domain.ResourceRef
}

// Normalize fills nil members with safe defaults.
func (e Env) Normalize() Env {
	if e.Logger == nil {
		e.Logger = logging.NewNop()
	}
	if e.Renderer == nil {
		e.Renderer = render.New()
	}
	return e
}

// WithOutput returns a copy of the env whose output channel (and the
// session's streaming target) point at ch. The session is cloned so the
// redirect cannot leak into sibling executions.
func (e Env) WithOutput(ch ports.OutputChannel) Env {
	out := e
	out.Output = ch
	if e.Session != nil {
		out.Session = e.Session.Clone()
		out.Session.SetOutput(ch)
	}
	return out
}

// killed consults the cancellation gate for the run owning c.
func (e Env) killed(ctx context.Context, c *domain.Context) bool {
	if e.Gate == nil {
		return false
	}
	return e.Gate.IsKilled(ctx, c.User, c.RunID)
}

// Action is a composable unit of work over a shared workflow context.
type Action interface {
	Execute(ctx context.Context, env Env, c *domain.Context) error
}

// Func adapts a plain function to the Action interface.
type Func func(ctx context.Context, env Env, c *domain.Context) error

// Execute runs the function.
func (f Func) Execute(ctx context.Context, env Env, c *domain.Context) error {
	return f(ctx, env, c)
}
