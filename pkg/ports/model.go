package ports

import (
	"context"

	"github.com/weftworks/loom/pkg/domain"
)

// ModelTier selects a cost/quality class of the underlying model.
type ModelTier string

const (
	// TierDefault is the session's configured model.
	TierDefault ModelTier = "default"
	// TierCheapest is the provider's least expensive model, used for
	// high-volume auxiliary calls such as retrieval query synthesis.
	TierCheapest ModelTier = "cheapest"
)

// FieldValidator accepts or rejects the named fields extracted from a
// structured model response. Returning false triggers a retry with an
// adapted prompt, until the retry budget is exhausted.
type FieldValidator func(fields map[string]string) bool

// ModelSession is an abstract LLM conversation capability.
//
// Implementations own the provider wire protocol, token accounting and
// streaming; the engine only renders prompts and consumes results.
type ModelSession interface {
	// PromptForString sends the messages and returns the completion text,
	// retrying transient failures up to retries times.
	PromptForString(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef, retries int) (string, error)

	// PromptForStructured sends the messages and parses a small set of
	// labeled sections out of the completion. It retries until validate
	// passes or the budget is exhausted, reminding the model of the
	// required format on each retry.
	PromptForStructured(ctx context.Context, msgs []domain.Message, fields []string, resources []domain.ResourceRef, validate FieldValidator, retries int) (map[string]string, error)

	// Clone returns an independent copy sharing no mutable state, suitable
	// for concurrent sub-prompts.
	Clone() ModelSession

	// SetOutput points the session's streaming output at ch. Passing nil
	// detaches streaming.
	SetOutput(ch OutputChannel)
}
