package domain

import "time"

// KillRecord is the durable kill-switch entry for a single run, keyed by
// (user, requestID). A positive ShouldExit is consumed exactly once from the
// store; afterwards the verdict lives only in the per-process cache.
type KillRecord struct {
	User        string        `json:"user"`
	RequestID   string        `json:"requestId"`
	ShouldExit  bool          `json:"shouldExit"`
	LastUpdated time.Time     `json:"lastUpdated"`
	TTL         time.Duration `json:"ttl"`
}
