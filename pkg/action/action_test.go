package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/model"
	"github.com/weftworks/loom/pkg/ports"
	"github.com/weftworks/loom/pkg/stream"
)

// scriptedSession builds a real model session over a canned completion.
func scriptedSession(reply string) ports.ModelSession {
	return model.NewSession(model.CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		return reply, nil
	}))
}

// recordingSession captures the rendered messages of each call.
func recordingSession(seen *[]domain.Message, reply string) ports.ModelSession {
	return model.NewSession(model.CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		*seen = append(*seen, msgs...)
		return reply, nil
	}))
}

// fakeRetriever returns fixed messages and records the queries it saw.
type fakeRetriever struct {
	result  ports.RetrievalResult
	queries []string
	refs    [][]domain.ResourceRef
}

func (f *fakeRetriever) Retrieve(ctx context.Context, _ ports.ModelSession, params ports.RetrievalParams, query string, refs []domain.ResourceRef) (*ports.RetrievalResult, error) {
	f.queries = append(f.queries, query)
	f.refs = append(f.refs, refs)
	res := f.result
	return &res, nil
}

func testEnv(session ports.ModelSession) Env {
	return Env{
		Session: session,
		Output:  stream.NewBuffer(),
	}.Normalize()
}

func TestChainRunsInOrder(t *testing.T) {
	c := domain.NewContext("task")
	var order []string
	step := func(name string) Action {
		return Func(func(ctx context.Context, env Env, c *domain.Context) error {
			order = append(order, name)
			return nil
		})
	}

	err := Chain{step("a"), step("b"), step("c")}.Execute(context.Background(), testEnv(nil), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestChainStopsAtFirstError(t *testing.T) {
	c := domain.NewContext("task")
	ran := false
	boom := Func(func(ctx context.Context, env Env, c *domain.Context) error {
		return assert.AnError
	})
	after := Func(func(ctx context.Context, env Env, c *domain.Context) error {
		ran = true
		return nil
	})

	err := Chain{boom, after}.Execute(context.Background(), testEnv(nil), c)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, ran)
}

func TestParallelRunsAllChildren(t *testing.T) {
	c := domain.NewContext("task")
	write := func(key string) Action {
		return Func(func(ctx context.Context, env Env, c *domain.Context) error {
			c.Set(key, true)
			return nil
		})
	}

	err := Parallel{write("a"), write("b"), write("c")}.Execute(context.Background(), testEnv(scriptedSession("x")), c)
	require.NoError(t, err)
	for _, key := range []string{"a", "b", "c"} {
		_, ok := c.Get(key)
		assert.True(t, ok, key)
	}
}

func TestParallelPropagatesError(t *testing.T) {
	c := domain.NewContext("task")
	ok := Func(func(ctx context.Context, env Env, c *domain.Context) error { return nil })
	bad := Func(func(ctx context.Context, env Env, c *domain.Context) error { return assert.AnError })

	err := Parallel{ok, bad}.Execute(context.Background(), testEnv(nil), c)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestWithOutputClonesSession(t *testing.T) {
	session := scriptedSession("streamed")
	shared := stream.NewBuffer()
	session.SetOutput(shared)

	env := testEnv(session)
	redirected := stream.NewBuffer()
	sub := env.WithOutput(redirected)

	_, err := sub.Session.PromptForString(context.Background(), nil, nil, 1)
	require.NoError(t, err)

	assert.Empty(t, shared.Messages())
	assert.Len(t, redirected.Messages(), 1)
	assert.Same(t, session, env.Session)
}
