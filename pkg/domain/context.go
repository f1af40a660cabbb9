package domain

import (
	"strings"
	"sync"
)

// KV is a key/value pair selected from the working data map.
type KV struct {
	Key   string
	Value any
}

// Context is the mutable working memory threaded through one workflow run.
//
// The data map and the conversation history are the only channels by which
// actions communicate. Serial actions see each other's mutations in order;
// concurrent siblings (parallel groups, fire-and-forget states) must touch
// disjoint keys: the Context guards individual operations with a lock but
// provides no transactional isolation across them.
type Context struct {
	mu      sync.RWMutex
	data    map[string]any
	history []Message
	status  map[string]StatusRecord

	// Task is the original natural-language objective for this run.
	Task string

	// RunID identifies this run for cancellation and resumption.
	RunID string

	// User is the caller identity the kill switch is keyed by.
	User string

	// ActiveDataSources are the resources the run is currently focused on;
	// DataSources is the full inventory handed to the run.
	ActiveDataSources []ResourceRef
	DataSources       []ResourceRef
}

// NewContext creates an empty working context for the given task.
func NewContext(task string) *Context {
	return &Context{
		data:    make(map[string]any),
		history: make([]Message, 0),
		status:  make(map[string]StatusRecord),
		Task:    task,
	}
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// GetString returns the value under key rendered as a string, or "" if absent.
func (c *Context) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set stores a value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Delete removes key from the data map.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Snapshot returns a shallow copy of the data map.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]any, len(c.data))
	for k, v := range c.data {
		snap[k] = v
	}
	return snap
}

// SetAll merges every entry of m into the data map.
func (c *Context) SetAll(m map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range m {
		c.data[k] = v
	}
}

// MatchPrefix returns every (key, value) pair whose key starts with prefix.
// Order follows map iteration and is not guaranteed stable.
func (c *Context) MatchPrefix(prefix string) []KV {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []KV
	for k, v := range c.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, KV{Key: k, Value: v})
		}
	}
	return out
}

// Fork creates an isolated copy sharing no mutable state with the original.
// Used by fan-out actions so a sub-action's mutations can be diffed against
// the pre-call data rather than applied wholesale.
func (c *Context) Fork() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f := &Context{
		data:              make(map[string]any, len(c.data)),
		history:           append([]Message(nil), c.history...),
		status:            make(map[string]StatusRecord, len(c.status)),
		Task:              c.Task,
		RunID:             c.RunID,
		User:              c.User,
		ActiveDataSources: append([]ResourceRef(nil), c.ActiveDataSources...),
		DataSources:       append([]ResourceRef(nil), c.DataSources...),
	}
	for k, v := range c.data {
		f.data[k] = v
	}
	for k, v := range c.status {
		f.status[k] = v
	}
	return f
}

// Diff returns the entries of the data map that were added or changed
// relative to before. Values are compared by identity of the stored slot,
// not deep equality: a key counts as changed when its current value differs
// from the snapshot entry under ==, or when comparison is not possible.
func (c *Context) Diff(before map[string]any) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any)
	for k, v := range c.data {
		prev, ok := before[k]
		if !ok || !shallowEqual(prev, v) {
			out[k] = v
		}
	}
	return out
}

func shallowEqual(a, b any) bool {
	defer func() { _ = recover() }()
	return a == b
}

// History returns a copy of the conversation history.
func (c *Context) History() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.history...)
}

// HistoryLen reports the number of messages in the conversation.
func (c *Context) HistoryLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

// LastMessage returns the trailing conversation message, if any.
func (c *Context) LastMessage() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.history) == 0 {
		return Message{}, false
	}
	return c.history[len(c.history)-1], true
}

// AppendHistory adds messages at the tail of the conversation.
func (c *Context) AppendHistory(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, msgs...)
}

// InsertBeforeTail splices messages immediately before the trailing message.
// Downstream prompting assumes the trailing message is always the live user
// turn, so inserted material must never land after it. On an empty history
// the messages are simply appended.
func (c *Context) InsertBeforeTail(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		c.history = append(c.history, msgs...)
		return
	}
	tail := c.history[len(c.history)-1]
	head := c.history[:len(c.history)-1]
	spliced := make([]Message, 0, len(c.history)+len(msgs))
	spliced = append(spliced, head...)
	spliced = append(spliced, msgs...)
	spliced = append(spliced, tail)
	c.history = spliced
}

// SetHistory replaces the conversation wholesale.
func (c *Context) SetHistory(msgs []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append([]Message(nil), msgs...)
}

// Status returns the last-sent status record for id.
func (c *Context) Status(id string) (StatusRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.status[id]
	return rec, ok
}

// SetStatus records the last-sent status for id, enabling idempotent updates.
func (c *Context) SetStatus(rec StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status[rec.ID] = rec
}
