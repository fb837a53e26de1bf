package inflight

import (
	"context"
	"sync"
)

// Call is a single shared unit of pending work. Every caller that asks for
// the same key while it is in flight receives the same *Call and observes
// the same outcome.
type Call struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewCall creates an unsettled call
func NewCall() *Call {
	return &Call{done: make(chan struct{})}
}

// Resolve settles the call. Only the first settlement takes effect.
func (c *Call) Resolve(value any, err error) bool {
	settled := false
	c.once.Do(func() {
		c.value = value
		c.err = err
		close(c.done)
		settled = true
	})
	return settled
}

// Done is closed once the call settles
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Settled reports whether Resolve has been called
func (c *Call) Settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the call settles or ctx is done. Cancelling ctx only
// stops this waiter; the work itself keeps running.
func (c *Call) Wait(ctx context.Context) (any, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a settled call. It must not be called
// before Done is closed.
func (c *Call) Result() (any, error) {
	<-c.done
	return c.value, c.err
}

// Registry tracks the calls currently in flight, keyed by route path.
// At most one call exists per key; the caller that stored it is the only
// one that removes it.
type Registry struct {
	calls sync.Map
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Has reports whether a call is in flight for key
func (r *Registry) Has(key string) bool {
	_, ok := r.calls.Load(key)
	return ok
}

// Get returns the call in flight for key
func (r *Registry) Get(key string) (*Call, bool) {
	v, ok := r.calls.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*Call), true
}

// Set registers call under key, replacing any existing entry
func (r *Registry) Set(key string, call *Call) {
	r.calls.Store(key, call)
}

// LoadOrStore returns the call already in flight for key, or stores call
// and returns it. loaded is false when the caller became the owner.
func (r *Registry) LoadOrStore(key string, call *Call) (actual *Call, loaded bool) {
	v, loaded := r.calls.LoadOrStore(key, call)
	return v.(*Call), loaded
}

// Delete removes the entry for key
func (r *Registry) Delete(key string) {
	r.calls.Delete(key)
}

// Release removes the entry for key only if it is still call. Owners use
// it so that a settled call never removes a newer one.
func (r *Registry) Release(key string, call *Call) bool {
	return r.calls.CompareAndDelete(key, call)
}

// Len returns the number of calls in flight
func (r *Registry) Len() int {
	n := 0
	r.calls.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Keys returns the keys currently in flight
func (r *Registry) Keys() []string {
	var keys []string
	r.calls.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}
