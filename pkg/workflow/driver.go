// Package workflow is the outer driver: it seeds the working context from a
// caller-decided task and resources, runs the state machine, persists pause
// points, and finalizes the output stream no matter how the run ends.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/action"
	"github.com/weftworks/loom/pkg/cancel"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/machine"
	"github.com/weftworks/loom/pkg/ports"
	"github.com/weftworks/loom/pkg/render"
)

// killRecordTTL bounds how long an unconsumed kill record may linger.
const killRecordTTL = time.Hour

// Driver wires a machine to its collaborators and runs it end to end.
type Driver struct {
	machine     *machine.Machine
	session     ports.ModelSession
	retriever   ports.Retriever
	killStore   ports.KillStore
	resumeStore ports.ResumeStore
	renderer    *render.Renderer
	logger      *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithRetriever attaches the retrieval collaborator.
func WithRetriever(r ports.Retriever) Option {
	return func(d *Driver) { d.retriever = r }
}

// WithResumeStore enables durable pause/resume across process restarts.
func WithResumeStore(s ports.ResumeStore) Option {
	return func(d *Driver) { d.resumeStore = s }
}

// WithRenderer overrides the template renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(d *Driver) { d.renderer = r }
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a driver for the given machine.
func NewDriver(m *machine.Machine, session ports.ModelSession, killStore ports.KillStore, opts ...Option) *Driver {
	d := &Driver{
		machine:   m,
		session:   session,
		killStore: killStore,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.renderer == nil {
		d.renderer = render.New(render.WithLogger(d.logger))
	}
	return d
}

// RunParams describes one workflow run.
type RunParams struct {
	// User is the caller identity the kill switch is keyed by.
	User string
	// RequestID identifies the run; generated when empty.
	RequestID string
	// Task is the natural-language objective.
	Task string
	// Resources is the full inventory of retrievable resources.
	Resources []domain.ResourceRef
	// Active narrows retrieval to a focused subset, when non-empty.
	Active []domain.ResourceRef
	// Seed pre-populates the context data map.
	Seed map[string]any
	// Output is the run's response/status stream.
	Output ports.OutputChannel
}

// Run executes the machine from its start state. The output channel is
// always ended, whether the run completes, pauses, aborts, or is killed.
func (d *Driver) Run(ctx context.Context, p RunParams) (machine.Outcome, error) {
	c := domain.NewContext(p.Task)
	c.User = p.User
	c.RunID = p.RequestID
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	c.DataSources = append([]domain.ResourceRef(nil), p.Resources...)
	c.ActiveDataSources = append([]domain.ResourceRef(nil), p.Active...)
	if p.Seed != nil {
		c.SetAll(p.Seed)
	}
	if p.Task != "" {
		// Templates reference the objective as {{.task}}; an explicit seed
		// under that key wins.
		if _, ok := c.Get("task"); !ok {
			c.Set("task", p.Task)
		}
		c.AppendHistory(domain.Message{Role: domain.RoleUser, Content: p.Task})
	}

	// Reserve the kill slot so an external kill request has something to
	// flip. Failure to reserve is not fatal; the gate treats absence as
	// "continue" either way.
	if err := d.killStore.Put(ctx, domain.KillRecord{
		User:        c.User,
		RequestID:   c.RunID,
		ShouldExit:  false,
		LastUpdated: time.Now(),
		TTL:         killRecordTTL,
	}); err != nil {
		d.logger.Warn("failed to create kill record", "request_id", c.RunID, "err", err)
	}

	return d.run(ctx, c, p.Output, "")
}

// Resume continues a previously paused run from its resumption record.
func (d *Driver) Resume(ctx context.Context, user, requestID string, rec domain.ResumptionRecord, output ports.OutputChannel) (machine.Outcome, error) {
	c := rec.Restore()
	c.User = user
	c.RunID = requestID
	return d.run(ctx, c, output, rec.CurrentStateName)
}

// ResumeStored loads the resumption record from the resume store and
// continues the run.
func (d *Driver) ResumeStored(ctx context.Context, user, requestID string, output ports.OutputChannel) (machine.Outcome, error) {
	if d.resumeStore == nil {
		return machine.Outcome{}, fmt.Errorf("no resume store configured")
	}
	rec, err := d.resumeStore.Load(ctx, user, requestID)
	if err != nil {
		return machine.Outcome{}, fmt.Errorf("load resumption record: %w", err)
	}
	return d.Resume(ctx, user, requestID, rec, output)
}

func (d *Driver) run(ctx context.Context, c *domain.Context, output ports.OutputChannel, from string) (machine.Outcome, error) {
	gate := cancel.NewGate(d.killStore,
		cancel.WithLogger(d.logger),
		cancel.WithOutput(output),
	)

	session := d.session.Clone()
	session.SetOutput(output)

	env := action.Env{
		Session:   session,
		Output:    output,
		Retriever: d.retriever,
		Gate:      gate,
		Renderer:  d.renderer,
		Logger:    d.logger,
		Resources: c.DataSources,
	}

	outcome, err := d.machine.Run(ctx, env, c, from)

	// Hard aborts still close the stream so the caller sees a well-formed
	// end rather than a hang.
	if endErr := output.End(); endErr != nil {
		d.logger.Warn("failed to end output stream", "request_id", c.RunID, "err", endErr)
	}

	d.finalize(ctx, c, outcome, err)
	return outcome, err
}

// finalize persists pause points and retires run-scoped records.
func (d *Driver) finalize(ctx context.Context, c *domain.Context, outcome machine.Outcome, runErr error) {
	if outcome.Paused && outcome.Record != nil && d.resumeStore != nil {
		if err := d.resumeStore.Save(ctx, c.User, c.RunID, *outcome.Record); err != nil {
			d.logger.Warn("failed to persist resumption record", "request_id", c.RunID, "err", err)
		}
		return
	}

	// Natural completion, abort, or kill: the run is over. The kill record
	// is deleted on completion; a consumed record is already gone and the
	// double delete is benign.
	if err := d.killStore.Delete(ctx, c.User, c.RunID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		d.logger.Warn("failed to delete kill record", "request_id", c.RunID, "err", err)
	}
	if d.resumeStore != nil {
		if err := d.resumeStore.Delete(ctx, c.User, c.RunID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("failed to delete resumption record", "request_id", c.RunID, "err", err)
		}
	}

	if runErr != nil {
		d.logger.Error("run aborted", "machine", d.machine.Name(), "request_id", c.RunID, "final_state", outcome.Final, "err", runErr)
		return
	}
	d.logger.Info("run finished", "machine", d.machine.Name(), "request_id", c.RunID, "final_state", outcome.Final, "steps", outcome.Steps, "paused", outcome.Paused, "killed", outcome.Killed)
}
