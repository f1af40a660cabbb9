package stream

import (
	"fmt"
	"io"
	"sync"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// WriterChannel adapts a pair of io.Writers into an OutputChannel: response
// content goes to one writer, status and state events go to the other.
// The CLI wires stdout/stderr here so progress never pollutes piped output.
type WriterChannel struct {
	mu       sync.Mutex
	response io.Writer
	status   io.Writer
	ended    bool
}

var _ ports.OutputChannel = (*WriterChannel)(nil)

// NewWriterChannel creates a channel over the given writers. A nil status
// writer silently drops status records.
func NewWriterChannel(response, status io.Writer) *WriterChannel {
	return &WriterChannel{response: response, status: status}
}

func (w *WriterChannel) Write(role domain.Role, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ended {
		return nil
	}
	_, err := io.WriteString(w.response, content)
	return err
}

func (w *WriterChannel) WriteStatus(rec domain.StatusRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ended || w.status == nil {
		return nil
	}
	marker := "done"
	if rec.InProgress {
		marker = "working"
	}
	_, err := fmt.Fprintf(w.status, "[%s] %s: %s\n", marker, rec.ID, rec.Summary)
	return err
}

func (w *WriterChannel) WriteStateEvent(ev domain.StateEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ended || w.status == nil {
		return nil
	}
	_, err := fmt.Fprintf(w.status, "[%s] run paused at %s\n", ev.Type, ev.Record.CurrentStateName)
	return err
}

func (w *WriterChannel) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ended {
		return nil
	}
	w.ended = true
	_, err := io.WriteString(w.response, "\n")
	return err
}
