package action

import (
	"context"
	"fmt"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// Retrieve queries the retrieval subsystem and splices the outcome into the
// conversation history.
//
// Resource resolution order: the action's explicit override, else the run's
// active resources, else the conversation's attached resources, else the
// full inventory handed to the run. Bare-identifier resources are
// normalized to reference objects before the call.
//
// Inserted material always lands immediately before the trailing history
// message, never after it: downstream prompting assumes the trailing
// message is the live user turn.
type Retrieve struct {
	// Resources overrides resolution entirely when non-empty.
	Resources []domain.ResourceRef
	// Query is an optional template; when empty the trailing history
	// message is used as the query.
	Query string
	// DefaultMessage is a template substituted for retrieved content when
	// the backend returns nothing.
	DefaultMessage string
	// IncludeResults inserts both the synthesized query and the retrieved
	// messages; otherwise only the query is inserted.
	IncludeResults bool
	// CaptureKey, when set, records the raw retrieved items in context
	// data under that key.
	CaptureKey string
	// TopK bounds the result set; 0 means backend default.
	TopK int
}

// Execute performs the retrieval call.
func (r Retrieve) Execute(ctx context.Context, env Env, c *domain.Context) error {
	if env.Retriever == nil {
		return fmt.Errorf("retrieve: no retriever configured")
	}

	refs := r.resolveResources(env, c)

	query := env.Renderer.Render(r.Query, c.Snapshot())
	if r.Query == "" {
		if last, ok := c.LastMessage(); ok {
			query = last.Content
		}
	}

	// Auxiliary call: always the cheapest model tier.
	result, err := env.Retriever.Retrieve(ctx, env.Session, ports.RetrievalParams{
		Tier: ports.TierCheapest,
		TopK: r.TopK,
	}, query, refs)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	content := result.Messages
	if len(content) == 0 && r.DefaultMessage != "" {
		content = []domain.Message{{
			Role:    domain.RoleTool,
			Content: env.Renderer.Render(r.DefaultMessage, c.Snapshot()),
		}}
	}

	insert := []domain.Message{{Role: domain.RoleUser, Content: query}}
	if r.IncludeResults {
		insert = append(insert, content...)
	}
	c.InsertBeforeTail(insert...)

	if r.CaptureKey != "" {
		items := make([]any, 0, len(result.Messages))
		for _, m := range result.Messages {
			items = append(items, m.Content)
		}
		c.Set(r.CaptureKey, map[string]any{
			"items":   items,
			"sources": result.Sources,
		})
	}
	return nil
}

func (r Retrieve) resolveResources(env Env, c *domain.Context) []domain.ResourceRef {
	switch {
	case len(r.Resources) > 0:
		return normalize(r.Resources)
	case len(c.ActiveDataSources) > 0:
		return normalize(c.ActiveDataSources)
	case len(c.DataSources) > 0:
		return normalize(c.DataSources)
	default:
		return normalize(env.Resources)
	}
}

// normalize fills in reference objects for refs that only carry a bare name.
func normalize(refs []domain.ResourceRef) []domain.ResourceRef {
	out := make([]domain.ResourceRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" && ref.Name != "" {
			ref.ID = ref.Name
		}
		out = append(out, ref)
	}
	return out
}
