package domain

// StatusRecord is an ephemeral progress indicator sent on the status channel.
// Records are keyed by a caller-chosen ID so repeated updates for the same
// unit of work replace each other instead of piling up.
type StatusRecord struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	InProgress bool   `json:"inProgress"`
}

// StateEvent serializes the state machine's pause point to the caller.
// It carries the resumption record a client needs to continue the run later.
type StateEvent struct {
	Type   string           `json:"type"`
	Record ResumptionRecord `json:"record"`
}

// StateEventPaused marks a run that stopped at an awaiting-input state.
const StateEventPaused = "paused"
