package action

import (
	"context"
	"fmt"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// ResponseKey is the default output key for free-text model sub-prompts.
const ResponseKey = "response"

// Prompt is a free-text model sub-prompt: the message list is
// template-rendered against the context data, sent to the model with a
// small fixed retry budget, and the resulting text is written into one
// output key.
type Prompt struct {
	Messages []domain.Message
	// OutputKey defaults to "response".
	OutputKey string
	// AppendToHistory also appends the rendered messages to the
	// conversation before the call.
	AppendToHistory bool
	// Retries defaults to DefaultRetries.
	Retries int
}

// Execute renders and sends the prompt.
func (p Prompt) Execute(ctx context.Context, env Env, c *domain.Context) error {
	msgs := env.Renderer.RenderMessages(p.Messages, c.Snapshot())
	if p.AppendToHistory {
		c.AppendHistory(msgs...)
	}

	retries := p.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	text, err := env.Session.PromptForString(ctx, msgs, env.Resources, retries)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}

	key := p.OutputKey
	if key == "" {
		key = ResponseKey
	}
	c.Set(key, text)
	return nil
}

// StructuredPrompt is a model sub-prompt expecting a small set of named
// fields (a short fixed vocabulary of labeled sections, e.g. thought/state).
// The session retries until the validator passes or the budget is
// exhausted; the extracted fields are merged into the context data.
type StructuredPrompt struct {
	Messages []domain.Message
	Fields   []string
	Validate ports.FieldValidator
	// AppendToHistory also appends the rendered messages to the
	// conversation before the call.
	AppendToHistory bool
	// Retries defaults to DefaultRetries.
	Retries int
}

// Execute renders and sends the prompt, merging the validated fields.
func (p StructuredPrompt) Execute(ctx context.Context, env Env, c *domain.Context) error {
	fields, err := p.Ask(ctx, env, c)
	if err != nil {
		return err
	}

	merged := make(map[string]any, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	c.SetAll(merged)
	return nil
}

// Ask renders and sends the prompt, returning the validated fields without
// writing them into the context data. Callers that consume the fields
// themselves (the transition decision, for one) use this to keep the
// context free of prompt bookkeeping.
func (p StructuredPrompt) Ask(ctx context.Context, env Env, c *domain.Context) (map[string]string, error) {
	msgs := env.Renderer.RenderMessages(p.Messages, c.Snapshot())
	if p.AppendToHistory {
		c.AppendHistory(msgs...)
	}

	retries := p.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}

	fields, err := env.Session.PromptForStructured(ctx, msgs, p.Fields, env.Resources, p.Validate, retries)
	if err != nil {
		return nil, fmt.Errorf("structured prompt: %w", err)
	}
	return fields, nil
}
