// Package port provides observable input values shared between components,
// standing in for the keyword field and gender selector of an interactive front end.
package port

import (
	"sync"
	"sync/atomic"
)

// Input is an observable value. Subscribers are called synchronously on the
// goroutine that changed the value, after the internal lock is released.
type Input[T comparable] struct {
	mu      sync.Mutex
	value   T
	nextID  int
	subs    map[int]func(T)
	onFocus func()
	focused atomic.Int64
}

// NewInput creates an Input holding initial
func NewInput[T comparable](initial T) *Input[T] {
	return &Input[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Value returns the current value
func (in *Input[T]) Value() T {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

// SetValue stores v and notifies subscribers when it differs from the current value.
// It reports whether the value changed.
func (in *Input[T]) SetValue(v T) bool {
	in.mu.Lock()
	if in.value == v {
		in.mu.Unlock()
		return false
	}
	in.value = v
	subs := make([]func(T), 0, len(in.subs))
	for id := 0; id < in.nextID; id++ {
		if fn, ok := in.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	in.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
	return true
}

// Subscribe registers fn for value changes and returns a function that removes it.
// Subscribers run in registration order.
func (in *Input[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	in.mu.Lock()
	id := in.nextID
	in.nextID++
	in.subs[id] = fn
	in.mu.Unlock()

	return func() {
		in.mu.Lock()
		delete(in.subs, id)
		in.mu.Unlock()
	}
}

// OnFocus sets the hook invoked by Focus
func (in *Input[T]) OnFocus(fn func()) {
	in.mu.Lock()
	in.onFocus = fn
	in.mu.Unlock()
}

// Focus requests input focus
func (in *Input[T]) Focus() {
	in.focused.Add(1)
	in.mu.Lock()
	fn := in.onFocus
	in.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// FocusCount returns how many times focus was requested
func (in *Input[T]) FocusCount() int {
	return int(in.focused.Load())
}
