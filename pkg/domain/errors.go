package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record exists for the key.
	ErrNotFound = errors.New("record not found")

	// ErrRetriesExhausted is returned when a model call fails its validity
	// predicate on every attempt of its retry budget.
	ErrRetriesExhausted = errors.New("model retries exhausted")
)

// InvalidDecisionError reports a model transition choice that is not among
// the declared targets of the deciding state.
type InvalidDecisionError struct {
	State    string
	Chosen   string
	Declared []string
}

func (e *InvalidDecisionError) Error() string {
	return fmt.Sprintf("state %q: model chose undeclared transition %q (declared: %v)", e.State, e.Chosen, e.Declared)
}

// EntryActionError wraps a failure from a state's entry action.
type EntryActionError struct {
	State string
	Err   error
}

func (e *EntryActionError) Error() string {
	return fmt.Sprintf("entry action of state %q failed: %v", e.State, e.Err)
}

func (e *EntryActionError) Unwrap() error { return e.Err }
