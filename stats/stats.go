package stats

import (
	"strings"
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests atomic.Int64
	APIRequests   atomic.Int64
	PageRequests  atomic.Int64
	OpsRequests   atomic.Int64
	OtherRequests atomic.Int64

	// Server-side data access
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
	Suspensions        atomic.Int64 // Requests answered with a pending call
	DedupedRequests    atomic.Int64 // Callers that joined a call already in flight
	HandlerInvocations atomic.Int64
	HandlerFailures    atomic.Int64

	// Rendering
	RenderPasses   atomic.Int64
	RenderFailures atomic.Int64

	// Client-side data access
	ClientFetches       atomic.Int64
	ClientFetchFailures atomic.Int64

	// Rate limiting
	RateLimitAllowed  atomic.Int64
	RateLimitExceeded atomic.Int64 // Requests rejected (429)

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Page response times (microseconds)
	pageResponseTime  atomic.Int64
	pageResponseCount atomic.Int64
}

const noResponseTime = int64(^uint64(0) >> 1) // Max int64

// Global stats instance
var global = New()

// New creates a zeroed stats instance
func New() *Stats {
	s := &Stats{StartTime: time.Now()}
	s.minResponseTime.Store(noResponseTime)
	return s
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// Endpoint kinds accepted by RecordRequest
const (
	KindAPI   = "api"
	KindPage  = "page"
	KindOps   = "ops"
	KindOther = "other"
)

// ClassifyPath maps a request path to an endpoint kind
func ClassifyPath(path string, pages map[string]bool) string {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return KindAPI
	case path == "/health" || path == "/stats" || path == "/metrics":
		return KindOps
	case pages[path]:
		return KindPage
	default:
		return KindOther
	}
}

// RecordRequest records a request to a kind of endpoint
func (s *Stats) RecordRequest(kind string) {
	s.TotalRequests.Add(1)
	switch kind {
	case KindAPI:
		s.APIRequests.Add(1)
	case KindPage:
		s.PageRequests.Add(1)
	case KindOps:
		s.OpsRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordCacheHit records a cache hit
func (s *Stats) RecordCacheHit() {
	s.CacheHits.Add(1)
}

// RecordCacheMiss records a cache miss
func (s *Stats) RecordCacheMiss() {
	s.CacheMisses.Add(1)
}

// RecordSuspension records a request answered with a pending call.
// joined is true when the caller did not start the call itself.
func (s *Stats) RecordSuspension(joined bool) {
	s.Suspensions.Add(1)
	if joined {
		s.DedupedRequests.Add(1)
	}
}

// RecordHandlerInvocation records an in-process handler run and its outcome
func (s *Stats) RecordHandlerInvocation(err error) {
	s.HandlerInvocations.Add(1)
	if err != nil {
		s.HandlerFailures.Add(1)
	}
}

// RecordRender records one render pass and whether the page ultimately failed
func (s *Stats) RecordRender(passes int, err error) {
	s.RenderPasses.Add(int64(passes))
	if err != nil {
		s.RenderFailures.Add(1)
	}
}

// RecordClientFetch records a client-side network load
func (s *Stats) RecordClientFetch(err error) {
	s.ClientFetches.Add(1)
	if err != nil {
		s.ClientFetchFailures.Add(1)
	}
}

// RecordRateLimit records rate limit outcomes
func (s *Stats) RecordRateLimit(allowed bool) {
	if allowed {
		s.RateLimitAllowed.Add(1)
	} else {
		s.RateLimitExceeded.Add(1)
	}
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration, kind string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if kind == KindPage {
		s.pageResponseTime.Add(us)
		s.pageResponseCount.Add(1)
	}
}

// Uptime returns the server uptime
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// CacheHitRate returns the cache hit rate as a percentage
func (s *Stats) CacheHitRate() float64 {
	hits := s.CacheHits.Load()
	misses := s.CacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == noResponseTime {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgPageResponseTime returns the average response time for page renders
func (s *Stats) AvgPageResponseTime() time.Duration {
	count := s.pageResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.pageResponseTime.Load()/count) * time.Microsecond
}

// Snapshot is the JSON shape served by /stats
type Snapshot struct {
	Uptime            string  `json:"uptime"`
	StartTime         string  `json:"start_time"`
	TotalRequests     int64   `json:"total_requests"`
	APIRequests       int64   `json:"api_requests"`
	PageRequests      int64   `json:"page_requests"`
	CacheHits         int64   `json:"cache_hits"`
	CacheMisses       int64   `json:"cache_misses"`
	CacheHitRate      float64 `json:"cache_hit_rate_percent"`
	Suspensions       int64   `json:"suspensions"`
	DedupedRequests   int64   `json:"deduped_requests"`
	HandlerRuns       int64   `json:"handler_invocations"`
	HandlerFailures   int64   `json:"handler_failures"`
	RenderPasses      int64   `json:"render_passes"`
	RenderFailures    int64   `json:"render_failures"`
	RateLimitExceeded int64   `json:"rate_limit_exceeded"`
	Status2xx         int64   `json:"status_2xx"`
	Status4xx         int64   `json:"status_4xx"`
	Status5xx         int64   `json:"status_5xx"`
	AvgResponseTime   string  `json:"avg_response_time"`
	AvgPageResponse   string  `json:"avg_page_response_time"`
	MinResponseTime   string  `json:"min_response_time"`
	MaxResponseTime   string  `json:"max_response_time"`
}

// Snapshot returns a point-in-time copy of the counters
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Uptime:            s.Uptime().Round(time.Second).String(),
		StartTime:         s.StartTime.Format(time.RFC3339),
		TotalRequests:     s.TotalRequests.Load(),
		APIRequests:       s.APIRequests.Load(),
		PageRequests:      s.PageRequests.Load(),
		CacheHits:         s.CacheHits.Load(),
		CacheMisses:       s.CacheMisses.Load(),
		CacheHitRate:      s.CacheHitRate(),
		Suspensions:       s.Suspensions.Load(),
		DedupedRequests:   s.DedupedRequests.Load(),
		HandlerRuns:       s.HandlerInvocations.Load(),
		HandlerFailures:   s.HandlerFailures.Load(),
		RenderPasses:      s.RenderPasses.Load(),
		RenderFailures:    s.RenderFailures.Load(),
		RateLimitExceeded: s.RateLimitExceeded.Load(),
		Status2xx:         s.Status2xx.Load(),
		Status4xx:         s.Status4xx.Load(),
		Status5xx:         s.Status5xx.Load(),
		AvgResponseTime:   s.AvgResponseTime().String(),
		AvgPageResponse:   s.AvgPageResponseTime().String(),
		MinResponseTime:   s.MinResponseTime().String(),
		MaxResponseTime:   s.MaxResponseTime().String(),
	}
}
