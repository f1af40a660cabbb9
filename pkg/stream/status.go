// Package stream implements the dual-channel output model: a response
// channel for final user-visible content and a status channel for ephemeral
// progress, multiplexed over a single ports.OutputChannel transport.
package stream

import (
	"sync"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// StatusStream wraps an output channel for the duration of one unit of work.
//
// On creation it marks its status record in-progress and emits it on the
// status channel. While open, intercepted response tokens are forwarded to
// the real response channel only when passthrough is enabled. Close marks
// the record done and re-emits it, success or error alike.
//
// The wrapper satisfies ports.OutputChannel, so no action needs to know
// whether it is writing into a bare channel or a status-wrapped one.
type StatusStream struct {
	inner       ports.OutputChannel
	passthrough bool

	mu     sync.Mutex
	rec    domain.StatusRecord
	closed bool
}

var _ ports.OutputChannel = (*StatusStream)(nil)

// Status opens a status-wrapped view of inner.
func Status(inner ports.OutputChannel, rec domain.StatusRecord, passthrough bool) (*StatusStream, error) {
	rec.InProgress = true
	s := &StatusStream{inner: inner, passthrough: passthrough, rec: rec}
	if err := inner.WriteStatus(rec); err != nil {
		return nil, err
	}
	return s, nil
}

// Write forwards a response token to the underlying channel when the
// issuing state was configured for pass-through; otherwise the token is
// swallowed (it only ever existed as progress detail).
func (s *StatusStream) Write(role domain.Role, content string) error {
	if !s.passthrough {
		return nil
	}
	return s.inner.Write(role, content)
}

// WriteStatus forwards nested status records unmodified.
func (s *StatusStream) WriteStatus(rec domain.StatusRecord) error {
	return s.inner.WriteStatus(rec)
}

// WriteStateEvent forwards state events unmodified.
func (s *StatusStream) WriteStateEvent(ev domain.StateEvent) error {
	return s.inner.WriteStateEvent(ev)
}

// End forwards stream termination to the real channel.
func (s *StatusStream) End() error {
	return s.inner.End()
}

// Close marks the status record no longer in progress and re-emits it.
// Calling Close more than once is benign. The summary may be updated to
// reflect the completed work.
func (s *StatusStream) Close(summary string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if summary != "" {
		s.rec.Summary = summary
	}
	s.rec.InProgress = false
	rec := s.rec
	s.mu.Unlock()
	return s.inner.WriteStatus(rec)
}

// Record returns the wrapper's current status record.
func (s *StatusStream) Record() domain.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}
