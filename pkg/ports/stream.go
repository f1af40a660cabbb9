package ports

import "github.com/weftworks/loom/pkg/domain"

// OutputChannel is the stream a workflow run writes into. Two logical
// channels share it: Write carries final user-visible response content,
// WriteStatus carries ephemeral progress records. WriteStateEvent serializes
// the run's pause point. End closes the stream; a hard abort still calls End
// so the caller sees a well-formed close rather than a hang.
type OutputChannel interface {
	Write(role domain.Role, content string) error
	WriteStatus(rec domain.StatusRecord) error
	WriteStateEvent(ev domain.StateEvent) error
	End() error
}
