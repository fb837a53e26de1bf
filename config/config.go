package config

import (
	"time"

	"github.com/bnolan/preact-kit/logcolors"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port                           string   `envconfig:"PORT" default:"3000"`
		AppTitle                       string   `envconfig:"APP_TITLE" default:"Preact-Kit"`
		RootDir                        string   `envconfig:"APP_ROOT" default:"."`
		APIDir                         string   `envconfig:"API_DIR" default:"api"`
		PagesDir                       string   `envconfig:"PAGES_DIR" default:"pages"`
		PublicDir                      string   `envconfig:"PUBLIC_DIR" default:"public"`
		ClientEntry                    string   `envconfig:"CLIENT_ENTRY" default:"client/index.js"`
		BundleOutFile                  string   `envconfig:"BUNDLE_OUT_FILE" default:"public/index.js"`
		AllowedOrigins                 []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
		RateLimitPerSecond             int      `envconfig:"RATE_LIMIT_PER_SECOND" default:"20"`
		RateLimitBurstLimit            int      `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"40"`
		MaxRenderPasses                int      `envconfig:"MAX_RENDER_PASSES" default:"10"`
		ShutdownTimeoutInSeconds       int      `envconfig:"SHUTDOWN_TIMEOUT_IN_SECONDS" default:"10"`
		StatsDBPath                    string   `envconfig:"STATS_DB_PATH" default:".preact-kit/stats.db"`
		StatsAutoSaveIntervalInSeconds int      `envconfig:"STATS_AUTOSAVE_INTERVAL_IN_SECONDS" default:"60"`
		FetchTimeoutInSeconds          int      `envconfig:"FETCH_TIMEOUT_IN_SECONDS" default:"10"`
		MaxRequestBodyBytes            int64    `envconfig:"MAX_REQUEST_BODY_BYTES" default:"1048576"`
		OpsAPIKey                      string   `envconfig:"OPS_API_KEY" default:""`
		OpsAPIKeyRequired              bool     `envconfig:"OPS_API_KEY_REQUIRED" default:"false"`
	}

	// Cache bounds the server-side response cache used while rendering
	Cache struct {
		MaxEntries int `envconfig:"CACHE_MAX_ENTRIES" default:"32768"`
		MaxAgeMs   int `envconfig:"CACHE_MAX_AGE_MS" default:"1000"`
	}

	FeatureFlags struct {
		Bundle  bool `envconfig:"FF_BUNDLE" default:"true"`
		Stats   bool `envconfig:"FF_STATS" default:"true"`
		Metrics bool `envconfig:"FF_METRICS" default:"true"`
	}
}

// CacheMaxAge returns the cache entry time-to-live as a duration
func (c Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeMs) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown budget
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Configuration.ShutdownTimeoutInSeconds) * time.Second
}

// FetchTimeout returns the client-side request timeout
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Configuration.FetchTimeoutInSeconds) * time.Second
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("%s Unable to load configuration", logcolors.LogConfig)
	}

	return c
}

// Get returns the configuration loaded at startup
func Get() Config {
	return conf
}
