// Package machine implements the LLM-driven state machine: named states
// whose entry actions do the work and whose outgoing transitions are chosen
// by a model completion, driven in a loop until a terminal state or the
// transition budget is reached.
package machine

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftworks/loom/pkg/action"
	"github.com/weftworks/loom/pkg/domain"
)

// AwaitInputTarget is the reserved transition target that pauses the entire
// run and hands control back to the caller. It exists only at the
// definition boundary; inside the engine the outcome is the tagged
// StepAwaitInput result.
const AwaitInputTarget = "awaiting-input"

// StepKind discriminates the possible outcomes of entering a state.
type StepKind int

const (
	// StepAdvance moves to the named next state.
	StepAdvance StepKind = iota
	// StepAwaitInput pauses the run for external input.
	StepAwaitInput
	// StepHalt stops the run entirely (cancellation or an unrecoverable step).
	StepHalt
)

// StepResult is the exhaustively-checked outcome of State.Enter.
type StepResult struct {
	Kind StepKind
	Next string
}

// Advance yields a transition to the named state.
func Advance(next string) StepResult { return StepResult{Kind: StepAdvance, Next: next} }

// AwaitInput yields a pause for external input.
func AwaitInput() StepResult { return StepResult{Kind: StepAwaitInput} }

// Halt yields a full stop.
func Halt() StepResult { return StepResult{Kind: StepHalt} }

// Transition is a labeled, model-describable edge to another state. The
// description is natural language: it is what the model reads when choosing.
// Reachability is not validated ahead of time; only a chosen value is
// checked against the declared targets at decision time.
type Transition struct {
	To          string `json:"to"`
	Description string `json:"description"`
}

// State is a named unit of work: an entry action plus labeled outgoing
// edges the model chooses between.
type State struct {
	Name        string
	Description string

	// Entry runs when the state is entered. May be a single action or a
	// composed tree; may be nil for pure routing states.
	Entry action.Action

	Transitions []Transition

	// End marks a terminal state: the run loop stops before entering it.
	End bool

	// ShowHistory includes the full conversation history in the
	// transition-decision prompt.
	ShowHistory bool

	// SuppressResources hides the run's retrievable resources from the
	// entry action and the decision call.
	SuppressResources bool

	// PreInstructions / PostInstructions are appended around the
	// transition listing in the decision prompt.
	PreInstructions  string
	PostInstructions string

	// RouteToStatus runs the entry action behind a status wrapper keyed by
	// the state name, so its sub-calls land on the status channel.
	// Passthrough additionally forwards those tokens to the response
	// channel.
	RouteToStatus bool
	Passthrough   bool

	// Async launches the entry action without awaiting it. The background
	// work keeps mutating the shared context while the machine advances;
	// polling states observe a completion flag it eventually sets.
	Async bool

	// FailFast aborts the whole run when the entry action fails. The
	// default is best-effort continuation to the decision step.
	FailFast bool
}

// DecisionFields is the labeled-section vocabulary of the transition
// decision call.
var DecisionFields = []string{"thought", "state"}

// decisionSystemPrompt is the fixed instruction for transition decisions.
const decisionSystemPrompt = "You drive a workflow state machine. Decide which state to move to next. " +
	"Reply with exactly two labeled sections, one per line:\n" +
	"thought: <brief reasoning>\n" +
	"state: <the name of one of the offered states, verbatim>"

// Enter executes the state against the context and resolves the next step.
//
// Zero declared transitions resolve to the state's own name; exactly one
// resolves directly to its target. Neither case makes a model call; linear
// steps are deterministic by construction. Two or more transitions trigger
// the structured decision prompt.
func (s *State) Enter(ctx context.Context, env action.Env, c *domain.Context) (StepResult, error) {
	if env.Gate != nil && env.Gate.IsKilled(ctx, c.User, c.RunID) {
		return Halt(), nil
	}

	env = env.Normalize()
	if s.SuppressResources {
		env.Resources = nil
	}

	if err := s.runEntry(ctx, env, c); err != nil {
		if s.FailFast {
			return Halt(), &domain.EntryActionError{State: s.Name, Err: err}
		}
		env.Logger.Warn("entry action failed, continuing to decision", "state", s.Name, "err", err)
	}

	switch len(s.Transitions) {
	case 0:
		return Advance(s.Name), nil
	case 1:
		return s.resolve(s.Transitions[0].To), nil
	}

	if env.Gate != nil && env.Gate.IsKilled(ctx, c.User, c.RunID) {
		return Halt(), nil
	}

	next, err := s.decide(ctx, env, c)
	if err != nil {
		return Halt(), &domain.EntryActionError{State: s.Name, Err: err}
	}
	return s.resolve(next), nil
}

// runEntry executes the entry action, awaited or fire-and-forget.
func (s *State) runEntry(ctx context.Context, env action.Env, c *domain.Context) error {
	if s.Entry == nil {
		return nil
	}

	entry := s.Entry
	if s.RouteToStatus {
		entry = action.WithStatus{
			ID:          s.Name,
			Summary:     s.Description,
			Passthrough: s.Passthrough,
			Sub:         s.Entry,
		}
	}

	if s.Async {
		// Detached: the machine advances while this keeps running. There
		// is no join primitive; polling states watch a context-data flag
		// the background action eventually sets.
		go func() {
			if err := entry.Execute(context.WithoutCancel(ctx), env, c); err != nil {
				env.Logger.Warn("async entry action failed", "state", s.Name, "err", err)
			}
		}()
		return nil
	}
	return entry.Execute(ctx, env, c)
}

// decide asks the model to pick one of the declared transition targets.
func (s *State) decide(ctx context.Context, env action.Env, c *domain.Context) (string, error) {
	targets := make([]string, 0, len(s.Transitions))
	for _, t := range s.Transitions {
		targets = append(targets, t.To)
	}

	var msgs []domain.Message
	if s.ShowHistory {
		msgs = append(msgs, c.History()...)
	}
	msgs = append(msgs,
		domain.Message{Role: domain.RoleSystem, Content: decisionSystemPrompt},
		domain.Message{Role: domain.RoleUser, Content: s.decisionBody()},
	)

	decision := action.StructuredPrompt{
		Messages: msgs,
		Fields:   DecisionFields,
		Validate: func(fields map[string]string) bool {
			return memberOf(fields["state"], targets)
		},
		Retries: action.DefaultRetries,
	}
	fields, err := decision.Ask(ctx, env, c)
	if err != nil {
		return "", err
	}

	// The choice comes from the validated fields, never from the shared
	// context: background entry actions may write a "state" key of their
	// own at any time.
	chosen := strings.TrimSpace(fields["state"])
	if !memberOf(chosen, targets) {
		return "", &domain.InvalidDecisionError{State: s.Name, Chosen: chosen, Declared: targets}
	}
	return chosen, nil
}

// decisionBody lists the available transitions plus any per-state framing.
func (s *State) decisionBody() string {
	var b strings.Builder
	if s.PreInstructions != "" {
		b.WriteString(s.PreInstructions)
		b.WriteString("\n\n")
	}
	b.WriteString("Available transitions:\n")
	for _, t := range s.Transitions {
		fmt.Fprintf(&b, "- %s: %s\n", t.To, t.Description)
	}
	if s.PostInstructions != "" {
		b.WriteString("\n")
		b.WriteString(s.PostInstructions)
	}
	return b.String()
}

// resolve maps the reserved sentinel to its tagged result.
func (s *State) resolve(target string) StepResult {
	if target == AwaitInputTarget {
		return AwaitInput()
	}
	return Advance(target)
}

func memberOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
