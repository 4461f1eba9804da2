package services

import (
	"strconv"
	"sync"
	"time"
)

// RowAction is a certificate action that can be in flight for one participant.
type RowAction string

const (
	ActionDownload RowAction = "download"
	ActionSend     RowAction = "send"
)

// How long a finished action's outcome stays visible on its row.
const (
	DownloadStatusTTL = 3 * time.Second
	SendStatusTTL     = 5 * time.Second
)

// RowState tags a RowStatus.
type RowState int

const (
	RowIdle RowState = iota
	RowPending
	RowSucceeded
	RowFailed
)

func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s RowState) String() string {
	switch s {
	case RowPending:
		return "pending"
	case RowSucceeded:
		return "succeeded"
	case RowFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RowStatus is the state of one action on one row. Message is set for
// succeeded and failed.
type RowStatus struct {
	State   RowState `json:"state"`
	Message string   `json:"message,omitempty"`
}

func (s RowStatus) Pending() bool   { return s.State == RowPending }
func (s RowStatus) Succeeded() bool { return s.State == RowSucceeded }

type rowEntry struct {
	status RowStatus
	gen    uint64
	timer  *time.Timer
}

// RowTracker maps (action, participant id) to a RowStatus. Finished statuses
// revert to idle after the action's TTL unless a newer status replaced them.
type RowTracker struct {
	mu      sync.Mutex
	entries map[string]*rowEntry
	ttls    map[RowAction]time.Duration
	gen     uint64
}

// NewRowTracker creates a tracker with the standard download/send TTLs.
func NewRowTracker() *RowTracker {
	return &RowTracker{
		entries: make(map[string]*rowEntry),
		ttls: map[RowAction]time.Duration{
			ActionDownload: DownloadStatusTTL,
			ActionSend:     SendStatusTTL,
		},
	}
}

// Begin marks the action pending, dropping any earlier outcome.
func (t *RowTracker) Begin(action RowAction, id int64) {
	t.set(action, id, RowStatus{State: RowPending}, false)
}

// Succeed records a success visible until the action's TTL elapses.
func (t *RowTracker) Succeed(action RowAction, id int64, message string) {
	t.set(action, id, RowStatus{State: RowSucceeded, Message: message}, true)
}

// Fail records a failure visible until the action's TTL elapses.
func (t *RowTracker) Fail(action RowAction, id int64, message string) {
	t.set(action, id, RowStatus{State: RowFailed, Message: message}, true)
}

// Status returns the current status, RowIdle when there is none.
func (t *RowTracker) Status(action RowAction, id int64) RowStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[rowKey(action, id)]; ok {
		return e.status
	}
	return RowStatus{State: RowIdle}
}

// Stop cancels pending expiries.
func (t *RowTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

func (t *RowTracker) set(action RowAction, id int64, status RowStatus, expire bool) {
	key := rowKey(action, id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[key]; ok && old.timer != nil {
		old.timer.Stop()
	}

	t.gen++
	e := &rowEntry{status: status, gen: t.gen}
	if expire {
		gen := e.gen
		e.timer = time.AfterFunc(t.ttls[action], func() { t.expire(key, gen) })
	}
	t.entries[key] = e
}

func (t *RowTracker) expire(key string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[key]; ok && e.gen == gen {
		delete(t.entries, key)
	}
}

func rowKey(action RowAction, id int64) string {
	return string(action) + "-" + strconv.FormatInt(id, 10)
}
