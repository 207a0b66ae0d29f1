package dwell

import (
	"sync"
	"time"
)

// Turn is a snapshot of one conversational exchange's lifecycle record.
type Turn struct {
	ID          uint64
	OpenedAt    time.Time
	Transcript  string
	STTDuration time.Duration
	Closed      bool
}

// TurnTracker owns the monotonically increasing turn counter and the single
// open-turn pointer. A turn id handed out here is captured by value into
// frame metadata at enqueue time; the tracker is never consulted again for
// attribution of a sample already in flight.
type TurnTracker struct {
	mu      sync.Mutex
	counter uint64
	open    bool
	current Turn
}

// NewTurnTracker returns a tracker in the idle state.
func NewTurnTracker() *TurnTracker {
	return &TurnTracker{}
}

// Current reports the open turn id, if a turn is open.
func (t *TurnTracker) Current() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return 0, false
	}
	return t.current.ID, true
}

// Open starts a new turn and returns its id. Opening while a turn is
// already open abandons the prior turn's accumulation window; its id stays
// valid for late samples until the bucket is evicted.
func (t *TurnTracker) Open(at time.Time, transcript string, sttDuration time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counter++
	t.current = Turn{
		ID:          t.counter,
		OpenedAt:    at,
		Transcript:  transcript,
		STTDuration: sttDuration,
	}
	t.open = true
	return t.current.ID
}

// Close finalizes the open turn and returns its snapshot. With no open
// turn (including a repeated response-end for an already-closed turn) it
// reports false and changes nothing.
func (t *TurnTracker) Close() (Turn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return Turn{}, false
	}
	t.open = false
	t.current.Closed = true
	return t.current, true
}
