// Package bridge lets a server-side render pass read API data in-process.
//
// A request for a route path is answered from the in-flight registry, the
// response cache, or by invoking the registered handler directly on a
// synthetic request. Work that has not finished yet is reported as a
// Pending result carrying the shared call, which the render driver waits on
// before rendering again.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bnolan/preact-kit/cache"
	"github.com/bnolan/preact-kit/envelope"
	"github.com/bnolan/preact-kit/inflight"
	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/routes"
	"github.com/bnolan/preact-kit/state"
	"github.com/bnolan/preact-kit/stats"

	log "github.com/sirupsen/logrus"
)

// ErrHandlerFailure wraps every failure of an in-process handler invocation
var ErrHandlerFailure = errors.New("handler failure")

// Status is the outcome of a Request
type Status int

const (
	StatusReady Status = iota
	StatusPending
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is exactly one of Ready (State set), Pending (Pending set) or
// Failed (Err set).
type Result struct {
	Status  Status
	State   *state.State
	Pending *inflight.Call
	Err     error
}

// Ready wraps a value in a fresh state cell
func Ready(value any) Result {
	return Result{Status: StatusReady, State: state.New(value)}
}

// Pending reports a call the caller has to wait for
func Pending(call *inflight.Call) Result {
	return Result{Status: StatusPending, Pending: call}
}

// Failed reports a failure that happened before anything was started
func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Bridge owns the cache and in-flight registry of one application
type Bridge struct {
	routes   *routes.Registry
	cache    *cache.Cache
	inflight *inflight.Registry
	stats    *stats.Stats
}

// Option configures a Bridge
type Option func(*Bridge)

// WithStats records bridge activity on s instead of the global stats
func WithStats(s *stats.Stats) Option {
	return func(b *Bridge) {
		b.stats = s
	}
}

// New creates a bridge over the given registries
func New(reg *routes.Registry, c *cache.Cache, calls *inflight.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		routes:   reg,
		cache:    c,
		inflight: calls,
		stats:    stats.Get(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cache returns the response cache
func (b *Bridge) Cache() *cache.Cache {
	return b.cache
}

// InFlight returns the in-flight registry
func (b *Bridge) InFlight() *inflight.Registry {
	return b.inflight
}

// Request answers path from the in-flight registry, then the cache, and
// otherwise starts the registered handler and reports it as pending.
// ctx is handed to the handler with its cancellation removed
// (context.WithoutCancel): its values reach the handler but cancelling it
// never stops a started call.
func (b *Bridge) Request(ctx context.Context, path string) Result {
	if call, ok := b.inflight.Get(path); ok {
		log.Debugf("%s Joining in-flight request for %s", logcolors.LogInFlight, logcolors.Route(path))
		b.stats.RecordSuspension(true)
		return Pending(call)
	}

	if value, ok := b.cache.Get(path); ok {
		log.Debugf("%s Cache hit for %s", logcolors.LogCache, logcolors.Route(path))
		b.stats.RecordCacheHit()
		return Ready(value)
	}

	if !routes.IsAPIPath(path) {
		return Failed(fmt.Errorf("%w: %s", routes.ErrInvalidRoute, path))
	}
	handler, err := b.routes.Resolve(path)
	if err != nil {
		return Failed(err)
	}

	b.stats.RecordCacheMiss()

	call := inflight.NewCall()
	if actual, loaded := b.inflight.LoadOrStore(path, call); loaded {
		b.stats.RecordSuspension(true)
		return Pending(actual)
	}

	log.Debugf("%s Invoking handler for %s in-process", logcolors.LogBridge, logcolors.Route(path))
	b.stats.RecordSuspension(false)
	go b.run(context.WithoutCancel(ctx), path, handler, call)
	return Pending(call)
}

// run invokes handler and settles call. The value is cached before the
// in-flight entry is released so that a concurrent Request always finds one
// of the two.
func (b *Bridge) run(ctx context.Context, path string, handler routes.HandlerFunc, call *inflight.Call) {
	value, err := b.invoke(ctx, path, handler)
	b.stats.RecordHandlerInvocation(err)

	if err != nil {
		log.Warnf("%s %s failed: %v", logcolors.LogBridge, logcolors.Route(path), err)
	} else {
		b.cache.Set(path, value)
	}
	b.inflight.Release(path, call)
	call.Resolve(value, err)
}

func (b *Bridge) invoke(ctx context.Context, path string, handler routes.HandlerFunc) (any, error) {
	rec, err := routes.Invoke(ctx, handler, routes.NewRequest(http.MethodGet, path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrHandlerFailure, path, err)
	}
	if code := rec.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s responded with status %d", ErrHandlerFailure, path, code)
	}

	value, err := envelope.Extract(rec.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrHandlerFailure, path, err)
	}
	return value, nil
}

// Value blocks until path yields a value or fails. It is meant for callers
// outside a render pass.
func (b *Bridge) Value(ctx context.Context, path string) (any, error) {
	res := b.Request(ctx, path)
	switch res.Status {
	case StatusReady:
		return res.State.Get(), nil
	case StatusFailed:
		return nil, res.Err
	}
	return res.Pending.Wait(ctx)
}
