package card

import (
	"encoding/json"
	"sync"
	"time"
)

// DebugCapacity is how many request cycles a card remembers.
const DebugCapacity = 5

// DebugStatus is the outcome of a recorded request.
type DebugStatus string

const (
	DebugSuccess DebugStatus = "success"
	DebugError   DebugStatus = "error"
)

// DebugRecord is one request/response/error cycle.
type DebugRecord struct {
	Status    DebugStatus     `json:"status"`
	Timestamp string          `json:"timestamp"`
	Request   ServiceCall     `json:"request"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func newDebugRecord(at time.Time, call ServiceCall, resp json.RawMessage, err error) DebugRecord {
	rec := DebugRecord{
		Status:    DebugSuccess,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Request:   call,
		Response:  resp,
	}
	if err != nil {
		rec.Status = DebugError
		rec.Error = err.Error()
	}
	return rec
}

// DebugRing keeps the latest records and overwrites the oldest on overflow.
// A nil ring records nothing.
type DebugRing struct {
	mu      sync.Mutex
	records []DebugRecord
	next    int
	size    int
}

// NewDebugRing creates a ring; a non-positive capacity uses DebugCapacity.
func NewDebugRing(capacity int) *DebugRing {
	if capacity <= 0 {
		capacity = DebugCapacity
	}
	return &DebugRing{records: make([]DebugRecord, capacity)}
}

// Push records rec.
func (r *DebugRing) Push(rec DebugRecord) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.next] = rec
	r.next = (r.next + 1) % len(r.records)
	if r.size < len(r.records) {
		r.size++
	}
}

// All returns the records newest first.
func (r *DebugRing) All() []DebugRecord {
	if r == nil {
		return []DebugRecord{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DebugRecord, 0, r.size)
	for i := 1; i <= r.size; i++ {
		idx := (r.next - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out
}

// Len returns the number of stored records.
func (r *DebugRing) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Clear drops all records.
func (r *DebugRing) Clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		r.records[i] = DebugRecord{}
	}
	r.next = 0
	r.size = 0
}
