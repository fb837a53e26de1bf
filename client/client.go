// Package client is the network side of data loading: it fetches an API
// route over HTTP, unwraps the single-key envelope and stores the value in
// a state cell. It never consults the server-side cache or in-flight
// registry, and it does not retry.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bnolan/preact-kit/config"
	"github.com/bnolan/preact-kit/envelope"
	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/state"
	"github.com/bnolan/preact-kit/stats"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ErrNetworkFailure wraps every failed load: transport errors, non-2xx
// responses and payloads that are not a valid envelope
var ErrNetworkFailure = errors.New("network failure")

// DefaultTimeout bounds a single round trip
const DefaultTimeout = 10 * time.Second

// Fetcher performs the HTTP round trips for hooks
type Fetcher struct {
	client  *resty.Client
	baseURL string
	timeout time.Duration
	stats   *stats.Stats
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
		f.client.SetTimeout(d)
	}
}

// WithHeader sends header on every request
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.client.SetHeader(key, value)
	}
}

// WithStats records loads on s instead of the global stats
func WithStats(s *stats.Stats) Option {
	return func(f *Fetcher) {
		f.stats = s
	}
}

// NewFetcher creates a fetcher for the server at baseURL
func NewFetcher(baseURL string, opts ...Option) *Fetcher {
	c := resty.New().
		SetTimeout(DefaultTimeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	f := &Fetcher{
		client:  c,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
		stats:   stats.Get(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FromConfig creates a fetcher bounded by the configured fetch timeout.
// opts are applied afterwards and may override it.
func FromConfig(baseURL string, cfg config.Config, opts ...Option) *Fetcher {
	var base []Option
	if d := cfg.FetchTimeout(); d > 0 {
		base = append(base, WithTimeout(d))
	}
	return NewFetcher(baseURL, append(base, opts...)...)
}

// Timeout returns the round trip bound
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch performs one GET for url and returns the canonical value
func (f *Fetcher) Fetch(ctx context.Context, url string) (any, error) {
	value, err := f.fetch(ctx, url)
	f.stats.RecordClientFetch(err)
	if err != nil {
		log.Warnf("%s %s failed: %v", logcolors.LogFetch, logcolors.Route(url), err)
		return nil, err
	}
	return value, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) (any, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(f.baseURL + url)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetworkFailure, url, err)
	}
	defer resp.RawResponse.Body.Close()

	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrNetworkFailure, url, err)
	}

	code := resp.RawResponse.StatusCode
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNetworkFailure, url, code)
	}

	value, err := envelope.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	return value, nil
}

// UseFetchState binds a state cell, initialised to def, to url. Nothing is
// fetched until the hook is mounted.
func (f *Fetcher) UseFetchState(url string, def any) *Hook {
	return &Hook{
		fetcher: f,
		url:     url,
		state:   state.New(def),
	}
}

// Hook is the client-side counterpart of a server render's data request
type Hook struct {
	fetcher *Fetcher
	url     string
	state   *state.State

	once sync.Once
	load *Load
}

// State returns the hook's state cell
func (h *Hook) State() *state.State {
	return h.state
}

// Pair returns the current value and its setter
func (h *Hook) Pair() (any, func(any)) {
	return h.state.Pair()
}

// Mount starts the one-shot load. Later calls return the same Load.
func (h *Hook) Mount(ctx context.Context) *Load {
	h.once.Do(func() {
		h.load = &Load{done: make(chan struct{})}
		go func() {
			defer close(h.load.done)
			value, err := h.fetcher.Fetch(ctx, h.url)
			if err != nil {
				h.load.err = err
				return
			}
			h.state.Set(value)
		}()
	})
	return h.load
}

// Load tracks the asynchronous load started by Mount
type Load struct {
	done chan struct{}
	err  error
}

// Done is closed once the load has finished
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Err returns the load's failure. It is nil until Done is closed.
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Wait blocks until the load finishes or ctx is done
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
