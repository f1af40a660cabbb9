package action

import (
	"context"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/stream"
)

// WithStatus runs a nested action through the dual-stream status wrapper.
// The summary text is template-rendered against the live context both when
// the status opens and when it closes, so a sub-action can change what the
// final status line says by mutating the data it references.
type WithStatus struct {
	// ID keys the status record for idempotent updates.
	ID string
	// Summary is a template rendered against the context data.
	Summary string
	// Passthrough forwards the sub-action's response tokens to the real
	// response channel instead of swallowing them.
	Passthrough bool
	Sub         Action
}

// Execute opens the status, runs the sub-action against the wrapped
// channel, and closes the status whether the sub-action succeeded or not.
func (s WithStatus) Execute(ctx context.Context, env Env, c *domain.Context) error {
	summary := env.Renderer.Render(s.Summary, c.Snapshot())
	rec := domain.StatusRecord{ID: s.ID, Summary: summary, InProgress: true}

	wrapped, err := stream.Status(env.Output, rec, s.Passthrough)
	if err != nil {
		return err
	}
	c.SetStatus(rec)

	subErr := s.Sub.Execute(ctx, env.WithOutput(wrapped), c)

	final := env.Renderer.Render(s.Summary, c.Snapshot())
	if err := wrapped.Close(final); err != nil {
		env.Logger.Warn("failed to close status stream", "status_id", s.ID, "err", err)
	}
	done := wrapped.Record()
	c.SetStatus(done)

	return subErr
}
