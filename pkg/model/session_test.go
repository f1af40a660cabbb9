package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/stream"
)

func TestPromptForStringStreamsToOutput(t *testing.T) {
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		return "the answer", nil
	}))
	buf := stream.NewBuffer()
	s.SetOutput(buf)

	text, err := s.PromptForString(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "q"}}, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)

	msgs := buf.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "the answer", msgs[0].Content)
}

func TestPromptForStringRetriesTransientFailures(t *testing.T) {
	calls := 0
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}))

	text, err := s.PromptForString(context.Background(), nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestPromptForStringExhaustsRetries(t *testing.T) {
	calls := 0
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		calls++
		return "", errors.New("down")
	}))

	_, err := s.PromptForString(context.Background(), nil, nil, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
}

func TestPromptForStructuredParsesFields(t *testing.T) {
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		return "thought: easy\nstate: done", nil
	}))

	fields, err := s.PromptForStructured(context.Background(), nil, []string{"thought", "state"}, nil, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "done", fields["state"])
}

func TestPromptForStructuredRepromptsWithFormatReminder(t *testing.T) {
	var secondCallMsgs []domain.Message
	calls := 0
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		calls++
		if calls == 1 {
			return "free prose, no labels", nil
		}
		secondCallMsgs = msgs
		return "state: fixed", nil
	}))

	base := []domain.Message{{Role: domain.RoleUser, Content: "pick"}}
	fields, err := s.PromptForStructured(context.Background(), base, []string{"state"}, nil, func(f map[string]string) bool {
		return f["state"] != ""
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, "fixed", fields["state"])
	assert.Equal(t, 2, calls)

	// Retry carries the original messages plus one reminder; the caller's
	// slice stays untouched.
	require.Len(t, secondCallMsgs, 2)
	assert.Contains(t, secondCallMsgs[1].Content, "did not follow the required format")
	assert.Contains(t, secondCallMsgs[1].Content, "state: <state>")
	require.Len(t, base, 1)
}

func TestPromptForStructuredGivesUpAfterBudget(t *testing.T) {
	calls := 0
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		calls++
		return "never valid", nil
	}))

	_, err := s.PromptForStructured(context.Background(), nil, []string{"state"}, nil, func(f map[string]string) bool {
		return false
	}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
}

func TestPromptForStructuredRetriesMultibyteRejection(t *testing.T) {
	// 80 CJK runes is 240 bytes; the rejection log must not trip over the
	// byte/rune mismatch while truncating the rejected response.
	calls := 0
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		calls++
		return strings.Repeat("界", 80), nil
	}))

	_, err := s.PromptForStructured(context.Background(), nil, []string{"state"}, nil, func(f map[string]string) bool {
		return false
	}, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSession(CompleterFunc(func(ctx context.Context, msgs []domain.Message, _ []domain.ResourceRef) (string, error) {
		return "hi", nil
	}))
	orig := stream.NewBuffer()
	s.SetOutput(orig)

	clone := s.Clone()
	cloneBuf := stream.NewBuffer()
	clone.SetOutput(cloneBuf)

	_, err := clone.PromptForString(context.Background(), nil, nil, 1)
	require.NoError(t, err)

	assert.Empty(t, orig.Messages())
	assert.Len(t, cloneBuf.Messages(), 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 50)
	assert.Equal(t, strings.Repeat("x", 20)+"...", truncate(long, 20))
	// Multibyte input counts runes, not bytes.
	wide := strings.Repeat("界", 30)
	assert.Equal(t, wide, truncate(wide, 30))
	assert.Equal(t, strings.Repeat("界", 10)+"...", truncate(wide, 10))
}
