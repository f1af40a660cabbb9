package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/action"
	"github.com/weftworks/loom/pkg/domain"
)

// DefaultMaxTransitions is the hard upper bound on steps per run, a safety
// valve against model-driven infinite loops.
const DefaultMaxTransitions = 100

// Outcome reports how a run ended.
type Outcome struct {
	// Final is the name of the state the run stopped at.
	Final string
	// Paused is true when the run suspended at an awaiting-input point.
	Paused bool
	// Record carries the resumption snapshot when Paused.
	Record *domain.ResumptionRecord
	// Killed is true when the cancellation gate stopped the run.
	Killed bool
	// Steps is the number of state entries performed.
	Steps int
}

// Machine drives a set of states from a start state to a terminal one.
type Machine struct {
	name           string
	description    string
	states         map[string]*State
	start          string
	maxTransitions int
	logger         *slog.Logger
	metrics        *Metrics
}

// Option configures a Machine.
type Option func(*Machine)

// WithDescription sets a human description, surfaced in introspection.
func WithDescription(desc string) Option {
	return func(m *Machine) {
		m.description = desc
	}
}

// WithMaxTransitions overrides the transition budget.
func WithMaxTransitions(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxTransitions = n
		}
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

// New builds a machine from the given states. The start state must be one
// of them; transition targets are deliberately not validated here, since an
// undeclared target halts the run at decision time instead.
func New(name, start string, states []*State, opts ...Option) (*Machine, error) {
	m := &Machine{
		name:           name,
		states:         make(map[string]*State, len(states)),
		start:          start,
		maxTransitions: DefaultMaxTransitions,
		logger:         logging.NewNop(),
	}
	for _, st := range states {
		if st.Name == "" {
			return nil, fmt.Errorf("machine %q: state with empty name", name)
		}
		if _, dup := m.states[st.Name]; dup {
			return nil, fmt.Errorf("machine %q: duplicate state %q", name, st.Name)
		}
		m.states[st.Name] = st
	}
	if _, ok := m.states[start]; !ok {
		return nil, fmt.Errorf("machine %q: start state %q not declared", name, start)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Name returns the machine name.
func (m *Machine) Name() string { return m.name }

// Description returns the machine description.
func (m *Machine) Description() string { return m.description }

// States returns the declared states, for introspection.
func (m *Machine) States() map[string]*State {
	out := make(map[string]*State, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// Run drives the loop from the given state (or the start state when empty)
// until a terminal state, a pause, a kill, or budget exhaustion.
//
// A paused run emits its resumption record as a state event on the response
// channel and returns without advancing; the caller resumes by re-invoking
// Run with the recorded state name after restoring the context.
func (m *Machine) Run(ctx context.Context, env action.Env, c *domain.Context, from string) (Outcome, error) {
	env = env.Normalize()

	current := from
	if current == "" {
		current = m.start
	}
	st, ok := m.states[current]
	if !ok {
		return Outcome{Final: current}, fmt.Errorf("machine %q: unknown state %q", m.name, current)
	}

	budget := m.maxTransitions
	steps := 0

	for !st.End && budget > 0 {
		if env.Gate != nil && env.Gate.IsKilled(ctx, c.User, c.RunID) {
			m.logger.Info("run killed", "machine", m.name, "state", current, "request_id", c.RunID)
			return Outcome{Final: current, Killed: true, Steps: steps}, nil
		}

		budget--
		steps++

		started := time.Now()
		res, err := st.Enter(ctx, env, c)
		m.metrics.ObserveStep(m.name, current, time.Since(started))
		if err != nil {
			// Only fail-fast states and exhausted decisions surface here;
			// recoverable entry failures were already absorbed in Enter.
			return Outcome{Final: current, Steps: steps}, err
		}

		switch res.Kind {
		case StepHalt:
			return Outcome{Final: current, Killed: true, Steps: steps}, nil

		case StepAwaitInput:
			rec := c.Suspend(current)
			if err := env.Output.WriteStateEvent(domain.StateEvent{
				Type:   domain.StateEventPaused,
				Record: rec,
			}); err != nil {
				m.logger.Warn("failed to emit pause event", "machine", m.name, "state", current, "err", err)
			}
			m.logger.Info("run paused for external input", "machine", m.name, "state", current)
			return Outcome{Final: current, Paused: true, Record: &rec, Steps: steps}, nil

		case StepAdvance:
			next, declared := m.states[res.Next]
			if !declared {
				// A malformed transition target must not crash, only halt.
				m.logger.Warn("transition to undeclared state, halting", "machine", m.name, "state", current, "next", res.Next)
				return Outcome{Final: current, Steps: steps}, nil
			}
			m.metrics.CountTransition(m.name, current, res.Next)
			current = res.Next
			st = next
		}
	}

	if budget <= 0 && !st.End {
		m.logger.Warn("transition budget exhausted", "machine", m.name, "state", current, "budget", m.maxTransitions)
	}
	return Outcome{Final: current, Steps: steps}, nil
}
