package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnolan/preact-kit/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists counters to a dedicated BoltDB file so they survive restarts
type Store struct {
	db       *bolt.DB
	dbPath   string
	stats    *Stats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// PersistedStats is the JSON document kept under statsKey
type PersistedStats struct {
	TotalRequests       int64 `json:"total_requests"`
	APIRequests         int64 `json:"api_requests"`
	PageRequests        int64 `json:"page_requests"`
	OpsRequests         int64 `json:"ops_requests"`
	OtherRequests       int64 `json:"other_requests"`
	CacheHits           int64 `json:"cache_hits"`
	CacheMisses         int64 `json:"cache_misses"`
	Suspensions         int64 `json:"suspensions"`
	DedupedRequests     int64 `json:"deduped_requests"`
	HandlerInvocations  int64 `json:"handler_invocations"`
	HandlerFailures     int64 `json:"handler_failures"`
	RenderPasses        int64 `json:"render_passes"`
	RenderFailures      int64 `json:"render_failures"`
	ClientFetches       int64 `json:"client_fetches"`
	ClientFetchFailures int64 `json:"client_fetch_failures"`
	RateLimitAllowed    int64 `json:"rate_limit_allowed"`
	RateLimitExceeded   int64 `json:"rate_limit_exceeded"`
	Status2xx           int64 `json:"status_2xx"`
	Status4xx           int64 `json:"status_4xx"`
	Status5xx           int64 `json:"status_5xx"`

	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`
	PageResponseTime  int64 `json:"page_response_time"`
	PageResponseCount int64 `json:"page_response_count"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) the database at dbPath for s
func NewStore(dbPath string, s *Stats) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return &Store{
		db:       db,
		dbPath:   dbPath,
		stats:    s,
		stopChan: make(chan struct{}),
	}, nil
}

// Load applies the persisted counters, if any, to the store's stats
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if !found {
		return nil
	}

	st := s.stats
	st.TotalRequests.Store(persisted.TotalRequests)
	st.APIRequests.Store(persisted.APIRequests)
	st.PageRequests.Store(persisted.PageRequests)
	st.OpsRequests.Store(persisted.OpsRequests)
	st.OtherRequests.Store(persisted.OtherRequests)
	st.CacheHits.Store(persisted.CacheHits)
	st.CacheMisses.Store(persisted.CacheMisses)
	st.Suspensions.Store(persisted.Suspensions)
	st.DedupedRequests.Store(persisted.DedupedRequests)
	st.HandlerInvocations.Store(persisted.HandlerInvocations)
	st.HandlerFailures.Store(persisted.HandlerFailures)
	st.RenderPasses.Store(persisted.RenderPasses)
	st.RenderFailures.Store(persisted.RenderFailures)
	st.ClientFetches.Store(persisted.ClientFetches)
	st.ClientFetchFailures.Store(persisted.ClientFetchFailures)
	st.RateLimitAllowed.Store(persisted.RateLimitAllowed)
	st.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	st.Status2xx.Store(persisted.Status2xx)
	st.Status4xx.Store(persisted.Status4xx)
	st.Status5xx.Store(persisted.Status5xx)
	st.totalResponseTime.Store(persisted.TotalResponseTime)
	st.responseCount.Store(persisted.ResponseCount)
	st.pageResponseTime.Store(persisted.PageResponseTime)
	st.pageResponseCount.Store(persisted.PageResponseCount)

	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < noResponseTime {
		st.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		st.maxResponseTime.Store(persisted.MaxResponseTime)
	}
	if !persisted.FirstStarted.IsZero() {
		st.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))
	return nil
}

// Save writes the current counters to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	persisted := PersistedStats{
		TotalRequests:       st.TotalRequests.Load(),
		APIRequests:         st.APIRequests.Load(),
		PageRequests:        st.PageRequests.Load(),
		OpsRequests:         st.OpsRequests.Load(),
		OtherRequests:       st.OtherRequests.Load(),
		CacheHits:           st.CacheHits.Load(),
		CacheMisses:         st.CacheMisses.Load(),
		Suspensions:         st.Suspensions.Load(),
		DedupedRequests:     st.DedupedRequests.Load(),
		HandlerInvocations:  st.HandlerInvocations.Load(),
		HandlerFailures:     st.HandlerFailures.Load(),
		RenderPasses:        st.RenderPasses.Load(),
		RenderFailures:      st.RenderFailures.Load(),
		ClientFetches:       st.ClientFetches.Load(),
		ClientFetchFailures: st.ClientFetchFailures.Load(),
		RateLimitAllowed:    st.RateLimitAllowed.Load(),
		RateLimitExceeded:   st.RateLimitExceeded.Load(),
		Status2xx:           st.Status2xx.Load(),
		Status4xx:           st.Status4xx.Load(),
		Status5xx:           st.Status5xx.Load(),
		TotalResponseTime:   st.totalResponseTime.Load(),
		ResponseCount:       st.responseCount.Load(),
		MinResponseTime:     st.minResponseTime.Load(),
		MaxResponseTime:     st.maxResponseTime.Load(),
		PageResponseTime:    st.pageResponseTime.Load(),
		PageResponseCount:   st.pageResponseCount.Load(),
		LastSaved:           time.Now(),
		FirstStarted:        st.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave saves every interval until Close
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close stops auto-save, saves a final time and closes the database
func (s *Store) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()

		if saveErr := s.Save(); saveErr != nil {
			log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, saveErr)
		} else {
			log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
		}
		err = s.db.Close()
	})
	return err
}
