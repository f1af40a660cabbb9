package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

// SSEChannel streams a run's dual-channel output to an HTTP client as
// Server-Sent Events: response tokens as "message" events, status records
// as "status" events, pause points as "state" events, and a final "end".
type SSEChannel struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	ended   bool
}

var _ ports.OutputChannel = (*SSEChannel)(nil)

// NewSSEChannel prepares w for event streaming. It returns an error when
// the ResponseWriter does not support flushing.
func NewSSEChannel(w http.ResponseWriter) (*SSEChannel, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEChannel{w: w, flusher: flusher}, nil
}

func (s *SSEChannel) emit(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEChannel) Write(role domain.Role, content string) error {
	return s.emit("message", domain.Message{Role: role, Content: content})
}

func (s *SSEChannel) WriteStatus(rec domain.StatusRecord) error {
	return s.emit("status", rec)
}

func (s *SSEChannel) WriteStateEvent(ev domain.StateEvent) error {
	return s.emit("state", ev)
}

func (s *SSEChannel) End() error {
	if err := s.emit("end", struct{}{}); err != nil {
		return err
	}
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	return nil
}
