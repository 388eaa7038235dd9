// Package async drives single-shot remote operations through the
// pending -> fulfilled | rejected lifecycle and mirrors each phase into a
// slice of view state.
package async

import (
	"sync"
	"time"
)

// Phase is an observable stage of an operation.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Status is the loading/error pair every slice carries.
type Status struct {
	Loading bool   `json:"isLoading"`
	Error   string `json:"error"`
}

// Transition describes one phase change of one operation.
type Transition struct {
	Slice     string
	Operation string
	Phase     Phase
	Err       error
	Message   string
	Duration  time.Duration
}

// Observer receives transitions after the reducer has run and the slice lock
// is released, so observers may touch other slices.
type Observer func(Transition)

// Dispatcher fans transitions out to observers. One dispatcher is shared by
// all slices of a workspace.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewDispatcher constructs a Dispatcher with the given observers.
func NewDispatcher(observers ...Observer) *Dispatcher {
	return &Dispatcher{observers: append([]Observer(nil), observers...)}
}

// Observe registers an observer.
func (d *Dispatcher) Observe(fn Observer) {
	if d == nil || fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

func (d *Dispatcher) emit(t Transition) {
	if d == nil {
		return
	}
	d.mu.RLock()
	observers := append([]Observer(nil), d.observers...)
	d.mu.RUnlock()
	for _, fn := range observers {
		fn(t)
	}
}

// Slice is an isolated fragment of state plus its loading/error status.
// Reducers run to completion under the slice lock. Reducers must replace
// nested slices and maps rather than mutate them, because Snapshot hands out
// shallow copies.
type Slice[S any] struct {
	name     string
	d        *Dispatcher
	mu       sync.Mutex
	state    S
	status   Status
	inflight int
}

// NewSlice constructs a slice with its initial state.
func NewSlice[S any](d *Dispatcher, name string, initial S) *Slice[S] {
	return &Slice[S]{name: name, d: d, state: initial}
}

// Name returns the slice name, e.g. "files".
func (s *Slice[S]) Name() string {
	return s.name
}

// Snapshot returns a copy of the current state and status.
func (s *Slice[S]) Snapshot() (S, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.status
}

// State returns a copy of the current state.
func (s *Slice[S]) State() S {
	st, _ := s.Snapshot()
	return st
}

// Status returns the current loading/error status.
func (s *Slice[S]) Status() Status {
	_, status := s.Snapshot()
	return status
}

// Update applies a synchronous reducer.
func (s *Slice[S]) Update(fn func(*S)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// ClearError resets the error field.
func (s *Slice[S]) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Error = ""
}

// Reset replaces the state and clears the error. In-flight operations still
// finish and apply their terminal transition.
func (s *Slice[S]) Reset(initial S) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = initial
	s.status.Error = ""
}

func (s *Slice[S]) begin(op string) {
	s.mu.Lock()
	s.inflight++
	s.status.Loading = true
	s.status.Error = ""
	s.mu.Unlock()
	s.d.emit(Transition{Slice: s.name, Operation: op, Phase: PhasePending})
}

func (s *Slice[S]) fulfill(op string, reduce func(*S), took time.Duration) {
	s.mu.Lock()
	s.finish()
	s.status.Error = ""
	if reduce != nil {
		reduce(&s.state)
	}
	s.mu.Unlock()
	s.d.emit(Transition{Slice: s.name, Operation: op, Phase: PhaseFulfilled, Duration: took})
}

func (s *Slice[S]) reject(op string, err error, msg string, took time.Duration) {
	s.mu.Lock()
	s.finish()
	s.status.Error = msg
	s.mu.Unlock()
	s.d.emit(Transition{Slice: s.name, Operation: op, Phase: PhaseRejected, Err: err, Message: msg, Duration: took})
}

// finish must be called with s.mu held.
func (s *Slice[S]) finish() {
	if s.inflight > 0 {
		s.inflight--
	}
	s.status.Loading = s.inflight > 0
}
