package ports

import (
	"context"

	"github.com/weftworks/loom/pkg/domain"
)

// KillStore is durable storage for cooperative kill-switch records.
// Absence of a record means "continue", not "block": Get returns
// domain.ErrNotFound when no record exists.
type KillStore interface {
	// Get retrieves the kill record for (user, requestID).
	Get(ctx context.Context, user, requestID string) (*domain.KillRecord, error)

	// Put creates or replaces the kill record.
	Put(ctx context.Context, rec domain.KillRecord) error

	// Delete removes the record. Deleting a missing record is benign:
	// multiple processes may race to consume the same kill signal.
	Delete(ctx context.Context, user, requestID string) error
}

// ResumeStore persists resumption records for paused runs, enabling
// stop-and-resume across process restarts.
type ResumeStore interface {
	// Save persists the record under (user, requestID).
	Save(ctx context.Context, user, requestID string, rec domain.ResumptionRecord) error

	// Load retrieves a previously saved record.
	// Returns domain.ErrNotFound if none exists.
	Load(ctx context.Context, user, requestID string) (domain.ResumptionRecord, error)

	// Delete removes the record.
	Delete(ctx context.Context, user, requestID string) error
}
