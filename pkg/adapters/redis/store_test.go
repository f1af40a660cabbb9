package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/pkg/domain"
)

func testClient(t *testing.T) (*backend.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestKillStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := testClient(t)
	s := NewKillStore(client)

	_, err := s.Get(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Put(ctx, domain.KillRecord{
		User:       "alice",
		RequestID:  "r1",
		ShouldExit: true,
		TTL:        time.Minute,
	}))

	rec, err := s.Get(ctx, "alice", "r1")
	require.NoError(t, err)
	assert.True(t, rec.ShouldExit)
	assert.Equal(t, "alice", rec.User)

	require.NoError(t, s.Delete(ctx, "alice", "r1"))
	_, err = s.Get(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKillStoreAppliesTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := testClient(t)
	s := NewKillStore(client)

	require.NoError(t, s.Put(ctx, domain.KillRecord{
		User: "alice", RequestID: "r1", ShouldExit: true, TTL: time.Minute,
	}))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKillStoreDefaultsTTLWhenUnset(t *testing.T) {
	ctx := context.Background()
	client, mr := testClient(t)
	s := NewKillStore(client)

	require.NoError(t, s.Put(ctx, domain.KillRecord{User: "alice", RequestID: "r1"}))
	ttl := mr.TTL("loom:kill:alice:r1")
	assert.Equal(t, time.Hour, ttl)
}

func TestKillStoreCustomPrefix(t *testing.T) {
	ctx := context.Background()
	client, mr := testClient(t)
	s := NewKillStore(client, WithKillPrefix("other:"))

	require.NoError(t, s.Put(ctx, domain.KillRecord{User: "alice", RequestID: "r1", TTL: time.Minute}))
	assert.True(t, mr.Exists("other:alice:r1"))
}

func TestResumeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := testClient(t)
	s := NewResumeStore(client)

	_, err := s.Load(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	in := domain.ResumptionRecord{
		CurrentStateName: "await-feedback",
		Task:             "write the essay",
		Data:             map[string]any{"outline": "three parts"},
		DataSources:      []domain.ResourceRef{{ID: "kb", Name: "knowledge base"}},
	}
	require.NoError(t, s.Save(ctx, "alice", "r1", in))

	out, err := s.Load(ctx, "alice", "r1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, s.Delete(ctx, "alice", "r1"))
	_, err = s.Load(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResumeStoreExpires(t *testing.T) {
	ctx := context.Background()
	client, mr := testClient(t)
	s := NewResumeStore(client, WithResumeTTL(time.Minute))

	require.NoError(t, s.Save(ctx, "alice", "r1", domain.ResumptionRecord{CurrentStateName: "ask"}))
	mr.FastForward(2 * time.Minute)

	_, err := s.Load(ctx, "alice", "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
