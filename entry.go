package swrcache

import (
	"time"
)

// entry is the state of one key. Every field is guarded by store.mu.
type entry struct {
	key   string
	fetch Fetcher
	opts  SubscribeOptions

	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time
	stale     bool

	optimistic bool
	pending    bool
	// last server value, restored when a fetch fails over an optimistic value
	confirmed    any
	hasConfirmed bool

	gen     uint64 // newest generation issued for key
	call    *call  // newest fetch in flight
	subs    map[*Subscription]struct{}
	version uint64

	refresh chan struct{} // closed to stop the interval loop
}

// call is one fetch. done is closed once its result was applied or dropped.
type call struct {
	gen        uint64
	done       chan struct{}
	superseded bool // written before done is closed
}

func newEntry(key string) *entry {
	return &entry{key: key, subs: make(map[*Subscription]struct{})}
}

func (e *entry) stateLocked() State {
	return State{
		Key:        e.key,
		Value:      e.value,
		HasValue:   e.hasValue,
		Err:        e.err,
		IsLoading:  e.call != nil,
		Stale:      e.stale,
		Optimistic: e.optimistic,
		Pending:    e.pending,
		FetchedAt:  e.fetchedAt,
		Version:    e.version,
	}
}

func (e *entry) freshLocked(now time.Time, staleTime time.Duration) bool {
	if !e.hasValue || e.stale || e.fetchedAt.IsZero() {
		return false
	}
	return now.Sub(e.fetchedAt) < staleTime
}

// mutatingLocked reports an outstanding optimistic write over a value;
// background triggers leave such entries alone.
func (e *entry) mutatingLocked() bool {
	return e.hasValue && (e.optimistic || e.pending)
}
