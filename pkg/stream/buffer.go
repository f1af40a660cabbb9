package stream

import (
	"sync"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// Buffer is an in-memory OutputChannel that records everything written to
// it. It backs synchronous callers (collect-then-return APIs) and tests.
type Buffer struct {
	mu          sync.Mutex
	messages    []domain.Message
	statuses    []domain.StatusRecord
	stateEvents []domain.StateEvent
	ended       bool
}

var _ ports.OutputChannel = (*Buffer)(nil)

// NewBuffer creates an empty recording channel.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Write(role domain.Role, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, domain.Message{Role: role, Content: content})
	return nil
}

func (b *Buffer) WriteStatus(rec domain.StatusRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, rec)
	return nil
}

func (b *Buffer) WriteStateEvent(ev domain.StateEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stateEvents = append(b.stateEvents, ev)
	return nil
}

func (b *Buffer) End() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = true
	return nil
}

// Messages returns a copy of the recorded response messages.
func (b *Buffer) Messages() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Message(nil), b.messages...)
}

// Statuses returns a copy of the recorded status records, in emission order.
func (b *Buffer) Statuses() []domain.StatusRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.StatusRecord(nil), b.statuses...)
}

// StateEvents returns a copy of the recorded state events.
func (b *Buffer) StateEvents() []domain.StateEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.StateEvent(nil), b.stateEvents...)
}

// Ended reports whether End was called.
func (b *Buffer) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}
