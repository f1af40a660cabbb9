package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/pkg/domain"
)

func TestKillStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewKillStore()

	_, err := s.Get(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, domain.KillRecord{User: "alice", RequestID: "r1", ShouldExit: true}))

	rec, err := s.Get(ctx, "alice", "r1")
	require.NoError(t, err)
	assert.True(t, rec.ShouldExit)

	require.NoError(t, s.Delete(ctx, "alice", "r1"))
	_, err = s.Get(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKillStoreKeysByUserAndRequest(t *testing.T) {
	ctx := context.Background()
	s := NewKillStore()
	require.NoError(t, s.Put(ctx, domain.KillRecord{User: "alice", RequestID: "r1"}))

	_, err := s.Get(ctx, "alice", "r2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Get(ctx, "bob", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResumeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewResumeStore()

	_, err := s.Load(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := domain.ResumptionRecord{
		CurrentStateName: "await-feedback",
		Task:             "write the essay",
		Data:             map[string]any{"outline": "three parts"},
	}
	require.NoError(t, s.Save(ctx, "alice", "r1", in))

	out, err := s.Load(ctx, "alice", "r1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, s.Delete(ctx, "alice", "r1"))
	_, err = s.Load(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
