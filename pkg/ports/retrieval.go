package ports

import (
	"context"

	"github.com/weftworks/loom/pkg/domain"
)

// RetrievalParams tunes a single retrieval call.
type RetrievalParams struct {
	// Tier selects the model class used for query synthesis and ranking.
	Tier ModelTier
	// TopK bounds the number of returned items; 0 means backend default.
	TopK int
}

// RetrievalResult is what the retrieval subsystem hands back: messages ready
// for splicing into a conversation, plus the source refs they came from.
type RetrievalResult struct {
	Messages []domain.Message
	Sources  []domain.ResourceRef
}

// Retriever is the call contract of the retrieval/ranking subsystem.
// The subsystem itself is an external collaborator.
type Retriever interface {
	Retrieve(ctx context.Context, session ModelSession, params RetrievalParams, query string, refs []domain.ResourceRef) (*RetrievalResult, error)
}
