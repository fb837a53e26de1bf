package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnolan/preact-kit/bridge"
	"github.com/bnolan/preact-kit/inflight"
	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/state"
	"github.com/bnolan/preact-kit/stats"

	log "github.com/sirupsen/logrus"
)

// DefaultMaxPasses bounds how often a page may suspend before the render gives up
const DefaultMaxPasses = 10

var (
	// ErrSuspended matches every *SuspendError
	ErrSuspended = errors.New("render suspended")
	// ErrTooManySuspensions is returned when a page keeps suspending
	ErrTooManySuspensions = errors.New("too many suspensions")
)

// Page renders the body markup of one page
type Page func(rc *Context) (string, error)

// Exports maps a page module name (the file stem, e.g. "index") to its page
type Exports map[string]Page

// DataSource answers data requests made during a render pass
type DataSource interface {
	Request(ctx context.Context, path string) bridge.Result
}

// SuspendError is returned by UseFetchState while the data for Path is
// still being produced. A page should return it unchanged.
type SuspendError struct {
	Path string
	Call *inflight.Call
}

func (e *SuspendError) Error() string {
	return fmt.Sprintf("render suspended on %s", e.Path)
}

// Is makes errors.Is(err, ErrSuspended) hold
func (e *SuspendError) Is(target error) bool {
	return target == ErrSuspended
}

// Context is handed to a page on every pass
type Context struct {
	ctx    context.Context
	source DataSource
	pass   int
}

// NewContext creates a page context reading from source
func NewContext(ctx context.Context, source DataSource) *Context {
	return &Context{ctx: ctx, source: source, pass: 1}
}

// Context returns the request context
func (rc *Context) Context() context.Context {
	return rc.ctx
}

// Pass returns the 1-based number of the current render pass
func (rc *Context) Pass() int {
	return rc.pass
}

// UseFetchState returns the state for path. While the value is still
// pending it returns a *SuspendError.
func (rc *Context) UseFetchState(path string) (*state.State, error) {
	res := rc.source.Request(rc.ctx, path)
	switch res.Status {
	case bridge.StatusReady:
		return res.State, nil
	case bridge.StatusPending:
		return nil, &SuspendError{Path: path, Call: res.Pending}
	default:
		return nil, res.Err
	}
}

// Renderer drives pages to completion, waiting out every suspension
type Renderer struct {
	source    DataSource
	maxPasses int
	stats     *stats.Stats
}

// NewRenderer creates a renderer. maxPasses <= 0 selects DefaultMaxPasses.
func NewRenderer(source DataSource, maxPasses int) *Renderer {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	return &Renderer{source: source, maxPasses: maxPasses, stats: stats.Get()}
}

// WithStats records renders on s instead of the global stats
func (r *Renderer) WithStats(s *stats.Stats) *Renderer {
	r.stats = s
	return r
}

// Render runs page until it completes. Each suspension is awaited and the
// page is rendered again; a failed pending call fails the render.
func (r *Renderer) Render(ctx context.Context, page Page) (string, error) {
	rc := NewContext(ctx, r.source)

	for ; rc.pass <= r.maxPasses; rc.pass++ {
		html, err := page(rc)
		if err == nil {
			r.stats.RecordRender(rc.pass, nil)
			return html, nil
		}

		var suspended *SuspendError
		if !errors.As(err, &suspended) {
			r.stats.RecordRender(rc.pass, err)
			return "", err
		}

		log.Debugf("%s Pass %d suspended on %s", logcolors.LogSuspend, rc.pass, logcolors.Route(suspended.Path))
		if _, err := suspended.Call.Wait(ctx); err != nil {
			r.stats.RecordRender(rc.pass, err)
			return "", err
		}
	}

	r.stats.RecordRender(r.maxPasses, ErrTooManySuspensions)
	log.Warnf("%s Page still suspending after %d passes", logcolors.LogRender, r.maxPasses)
	return "", fmt.Errorf("%w: gave up after %d passes", ErrTooManySuspensions, r.maxPasses)
}
