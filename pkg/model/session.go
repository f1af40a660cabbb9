// Package model adapts a raw completion capability into the engine's
// ModelSession port: bounded retries, labeled-section extraction with
// format-reminder reprompts, and response streaming to an output channel.
//
// Provider wire protocols stay outside this module; a Completer is the only
// thing a provider integration has to supply.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// Completer is the minimal provider capability: one completion call.
type Completer interface {
	Complete(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef) (string, error)

// Complete calls the function.
func (f CompleterFunc) Complete(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef) (string, error) {
	return f(ctx, msgs, resources)
}

// Session implements ports.ModelSession over a Completer.
type Session struct {
	completer Completer
	logger    *slog.Logger

	mu     sync.Mutex
	output ports.OutputChannel
}

var _ ports.ModelSession = (*Session)(nil)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a session over the given completer.
func NewSession(completer Completer, opts ...Option) *Session {
	s := &Session{completer: completer, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOutput points response streaming at ch.
func (s *Session) SetOutput(ch ports.OutputChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = ch
}

func (s *Session) currentOutput() ports.OutputChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Clone returns an independent copy sharing the completer but no mutable
// state. The clone starts with the same output target.
func (s *Session) Clone() ports.ModelSession {
	return &Session{
		completer: s.completer,
		logger:    s.logger,
		output:    s.currentOutput(),
	}
}

// PromptForString sends the messages and returns the completion text,
// retrying transient completer failures up to retries times. The text is
// also streamed to the session's output channel, if one is attached.
func (s *Session) PromptForString(ctx context.Context, msgs []domain.Message, resources []domain.ResourceRef, retries int) (string, error) {
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		text, err := s.completer.Complete(ctx, msgs, resources)
		if err != nil {
			lastErr = err
			s.logger.Warn("completion failed", "attempt", attempt, "err", err)
			continue
		}
		if out := s.currentOutput(); out != nil {
			if werr := out.Write(domain.RoleAssistant, text); werr != nil {
				s.logger.Warn("failed to stream completion", "err", werr)
			}
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %v", domain.ErrRetriesExhausted, lastErr)
}

// PromptForStructured sends the messages and extracts the requested labeled
// sections from the completion. An invalid or unparseable response triggers
// a retry with the format requirements restated; the budget covers both
// transport failures and validation failures.
func (s *Session) PromptForStructured(ctx context.Context, msgs []domain.Message, fields []string, resources []domain.ResourceRef, validate ports.FieldValidator, retries int) (map[string]string, error) {
	if retries <= 0 {
		retries = 1
	}

	attemptMsgs := msgs
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		text, err := s.completer.Complete(ctx, attemptMsgs, resources)
		if err != nil {
			lastErr = err
			s.logger.Warn("structured completion failed", "attempt", attempt, "err", err)
			continue
		}

		parsed := ParseSections(text, fields)
		if validate == nil || validate(parsed) {
			return parsed, nil
		}

		lastErr = fmt.Errorf("response failed validation: %s", truncate(text, 200))
		s.logger.Debug("structured response rejected, reprompting", "attempt", attempt, "fields", fields)
		attemptMsgs = make([]domain.Message, 0, len(msgs)+1)
		attemptMsgs = append(attemptMsgs, msgs...)
		attemptMsgs = append(attemptMsgs, formatReminder(fields))
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrRetriesExhausted, lastErr)
}

// formatReminder builds the adapted prompt appended on retry, restating the
// exact labeled-section format the model must emit.
func formatReminder(fields []string) domain.Message {
	var b strings.Builder
	b.WriteString("Your previous answer did not follow the required format. ")
	b.WriteString("Reply again using exactly these labeled sections, one per line:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: <%s>\n", f, f)
	}
	return domain.Message{Role: domain.RoleUser, Content: b.String()}
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
