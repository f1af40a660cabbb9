package action

import (
	"context"

	"github.com/weftworks/loom/pkg/domain"
)

// Keys under which fan-out actions expose the matched data to their
// sub-action's forked context.
const (
	// ItemKey holds the single matched value inside a MapKeys iteration.
	ItemKey = "item"
	// ItemNameKey holds the data key the value was matched under.
	ItemNameKey = "itemKey"
	// ItemsKey holds the full matched value list inside a ReduceKeys call.
	ItemsKey = "items"
)

// MapKeys finds every context-data key starting with Prefix and runs Sub
// once per matching value against an isolated forked context, so the
// sub-action's mutations are diffed against the pre-call data rather than
// applied wholesale.
//
// Results go back into the original keys by default, or into one list under
// OutputKey when it is set. Match order follows map iteration and
// is not guaranteed stable; sub-actions must not rely on it.
//
// The cancellation gate is checked between iterations; a positive verdict
// aborts the remaining iterations without error.
type MapKeys struct {
	Prefix    string
	Sub       Action
	OutputKey string
}

// Execute runs the fan-out.
func (m MapKeys) Execute(ctx context.Context, env Env, c *domain.Context) error {
	matched := c.MatchPrefix(m.Prefix)
	var collected []any

	for _, kv := range matched {
		if env.killed(ctx, c) {
			env.Logger.Info("map aborted by kill switch", "prefix", m.Prefix, "request_id", c.RunID)
			return nil
		}

		fork := c.Fork()
		fork.Set(ItemKey, kv.Value)
		fork.Set(ItemNameKey, kv.Key)
		before := fork.Snapshot()

		if err := m.Sub.Execute(ctx, env, fork); err != nil {
			return err
		}

		result := collapse(fork.Diff(before))
		if m.OutputKey != "" {
			collected = append(collected, result)
		} else {
			c.Set(kv.Key, result)
		}
	}

	if m.OutputKey != "" {
		c.Set(m.OutputKey, collected)
	}
	return nil
}

// ReduceKeys finds every context-data key starting with Prefix and runs Sub
// exactly once, passing the full list of matched values as one argument.
// The diffed result is written under OutputKey, which defaults to the
// prefix itself.
type ReduceKeys struct {
	Prefix    string
	Sub       Action
	OutputKey string
}

// Execute runs the reduction.
func (r ReduceKeys) Execute(ctx context.Context, env Env, c *domain.Context) error {
	if env.killed(ctx, c) {
		env.Logger.Info("reduce aborted by kill switch", "prefix", r.Prefix, "request_id", c.RunID)
		return nil
	}

	matched := c.MatchPrefix(r.Prefix)
	values := make([]any, 0, len(matched))
	for _, kv := range matched {
		values = append(values, kv.Value)
	}

	fork := c.Fork()
	fork.Set(ItemsKey, values)
	before := fork.Snapshot()

	if err := r.Sub.Execute(ctx, env, fork); err != nil {
		return err
	}

	out := r.OutputKey
	if out == "" {
		out = r.Prefix
	}
	c.Set(out, collapse(fork.Diff(before)))
	return nil
}

// collapse reduces a diff to its natural shape: a single mutated entry
// yields its bare value, anything else yields the whole diff map.
func collapse(diff map[string]any) any {
	if len(diff) == 1 {
		for _, v := range diff {
			return v
		}
	}
	return diff
}
