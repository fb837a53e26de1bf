// Package state provides the reactive value cell returned by data hooks: a
// current value plus a setter that notifies subscribers.
package state

import "sync"

// State is a reactive value cell
type State struct {
	mu          sync.RWMutex
	value       any
	nextID      int
	subscribers map[int]func(any)
}

// New creates a cell holding initial
func New(initial any) *State {
	return &State{
		value:       initial,
		subscribers: make(map[int]func(any)),
	}
}

// Get returns the current value
func (s *State) Get() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies subscribers synchronously
func (s *State) Set(value any) {
	s.mu.Lock()
	s.value = value
	subs := make([]func(any), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Pair returns the conventional [value, setter] shape
func (s *State) Pair() (any, func(any)) {
	return s.Get(), s.Set
}

// Subscribe registers fn to run after every Set. The returned function
// removes the subscription.
func (s *State) Subscribe(fn func(any)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}
