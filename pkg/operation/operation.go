// Package operation implements asynchronous document loading on a
// bounded worker pool.
//
// Each submitted load is tracked as an Operation moving through a
// strict state machine. Duplicate submissions for the same source
// attach their callbacks to the in-flight operation instead of loading
// twice; every attached callback set observes the identical terminal
// outcome. Cancellation is cooperative and observed between chunks.
package operation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kikk79/docstore/pkg/document"
)

// State is an operation lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Callbacks receive operation events. All fields are optional.
//
// Ordering guarantee per operation: zero or more OnProgress calls, then
// exactly one of OnComplete, OnError, OnCancelled.
type Callbacks struct {
	OnProgress  func(document.Progress)
	OnComplete  func(*document.Result)
	OnError     func(*document.LoadError)
	OnCancelled func()
}

// Operation tracks one asynchronous load.
type Operation struct {
	id        string
	source    string
	key       string
	createdAt time.Time

	mu         sync.Mutex
	state      State
	progress   document.Progress
	callbacks  []Callbacks
	startedAt  time.Time
	finishedAt time.Time

	// cancelRequested is the cooperative flag the worker checks
	// between chunks; cancelCtx tears down the in-flight stream.
	cancelRequested bool
	cancelCtx       context.CancelFunc
}

func newOperation(source, key string, cb Callbacks) *Operation {
	return &Operation{
		id:        uuid.NewString(),
		source:    source,
		key:       key,
		createdAt: time.Now(),
		state:     StatePending,
		callbacks: []Callbacks{cb},
	}
}

// ID returns the operation identifier handed out by Submit.
func (o *Operation) ID() string { return o.id }

// Source returns the source as submitted.
func (o *Operation) Source() string { return o.source }

// State returns the current lifecycle state.
func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot is a point-in-time view of an operation for observers.
type Snapshot struct {
	ID         string
	Source     string
	State      State
	Progress   document.Progress
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot returns a copy of the operation's observable fields.
func (o *Operation) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		ID:         o.id,
		Source:     o.source,
		State:      o.state,
		Progress:   o.progress,
		CreatedAt:  o.createdAt,
		StartedAt:  o.startedAt,
		FinishedAt: o.finishedAt,
	}
}

// attach adds a callback set to a non-terminal operation. Returns false
// when the operation already finished and a new one is needed.
func (o *Operation) attach(cb Callbacks) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return false
	}
	o.callbacks = append(o.callbacks, cb)
	return true
}

// markRunning transitions Pending to Running, recording the context
// cancel used to tear down the stream. Returns false when the operation
// was cancelled before a worker picked it up.
func (o *Operation) markRunning(cancel context.CancelFunc) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StatePending {
		return false
	}
	o.state = StateRunning
	o.startedAt = time.Now()
	o.cancelCtx = cancel
	return true
}

// requestCancel marks the operation for cancellation.
//
// A Pending operation transitions to Cancelled immediately and its
// callbacks are returned for the caller to fire. A Running operation is
// flagged and its stream context cancelled; the worker finishes the
// transition. Terminal operations are untouched (idempotent).
func (o *Operation) requestCancel() (cbs []Callbacks, terminal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StatePending:
		o.state = StateCancelled
		o.finishedAt = time.Now()
		o.cancelRequested = true
		return o.callbacks, true
	case StateRunning:
		o.cancelRequested = true
		if o.cancelCtx != nil {
			o.cancelCtx()
		}
	}
	return nil, false
}

func (o *Operation) cancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelRequested
}

// setProgress records progress and returns the callbacks to notify, or
// nil when the operation is no longer running.
func (o *Operation) setProgress(p document.Progress) []Callbacks {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return nil
	}
	o.progress = p
	return o.callbacks
}

// complete transitions to Completed, returning the callbacks to fire or
// nil if a terminal transition already happened.
func (o *Operation) complete() []Callbacks {
	return o.finish(StateCompleted)
}

// fail transitions to Failed.
func (o *Operation) fail() []Callbacks {
	return o.finish(StateFailed)
}

// finishCancelled transitions to Cancelled from the worker side.
func (o *Operation) finishCancelled() []Callbacks {
	return o.finish(StateCancelled)
}

func (o *Operation) finish(terminal State) []Callbacks {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		return nil
	}
	o.state = terminal
	o.finishedAt = time.Now()
	return o.callbacks
}
