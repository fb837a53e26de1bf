package config

import (
	"os"
	"testing"
	"time"
)

func TestConfigDefaultValues(t *testing.T) {
	// Clear any existing env vars that might interfere
	envVars := []string{
		"PORT",
		"APP_TITLE",
		"API_DIR",
		"PAGES_DIR",
		"PUBLIC_DIR",
		"RATE_LIMIT_PER_SECOND",
		"RATE_LIMIT_BURST_LIMIT",
		"MAX_RENDER_PASSES",
		"MAX_REQUEST_BODY_BYTES",
		"CACHE_MAX_ENTRIES",
		"CACHE_MAX_AGE_MS",
		"FF_BUNDLE",
		"FF_STATS",
		"FF_METRICS",
	}

	originalValues := make(map[string]string)
	for _, key := range envVars {
		originalValues[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		for key, value := range originalValues {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{
			name:     "Port default",
			got:      cfg.Configuration.Port,
			expected: "3000",
		},
		{
			name:     "MaxRequestBodyBytes default",
			got:      cfg.Configuration.MaxRequestBodyBytes,
			expected: int64(1048576),
		},
		{
			name:     "AppTitle default",
			got:      cfg.Configuration.AppTitle,
			expected: "Preact-Kit",
		},
		{
			name:     "APIDir default",
			got:      cfg.Configuration.APIDir,
			expected: "api",
		},
		{
			name:     "PagesDir default",
			got:      cfg.Configuration.PagesDir,
			expected: "pages",
		},
		{
			name:     "PublicDir default",
			got:      cfg.Configuration.PublicDir,
			expected: "public",
		},
		{
			name:     "RateLimitPerSecond default",
			got:      cfg.Configuration.RateLimitPerSecond,
			expected: 20,
		},
		{
			name:     "RateLimitBurstLimit default",
			got:      cfg.Configuration.RateLimitBurstLimit,
			expected: 40,
		},
		{
			name:     "MaxRenderPasses default",
			got:      cfg.Configuration.MaxRenderPasses,
			expected: 10,
		},
		{
			name:     "Cache MaxEntries default",
			got:      cfg.Cache.MaxEntries,
			expected: 32768,
		},
		{
			name:     "Cache MaxAgeMs default",
			got:      cfg.Cache.MaxAgeMs,
			expected: 1000,
		},
		{
			name:     "Bundle default",
			got:      cfg.FeatureFlags.Bundle,
			expected: true,
		},
		{
			name:     "Stats default",
			got:      cfg.FeatureFlags.Stats,
			expected: true,
		},
		{
			name:     "Metrics default",
			got:      cfg.FeatureFlags.Metrics,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "4321")
	t.Setenv("API_DIR", "handlers")
	t.Setenv("CACHE_MAX_ENTRIES", "16")
	t.Setenv("CACHE_MAX_AGE_MS", "250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("FF_BUNDLE", "false")

	cfg, err := load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Configuration.Port != "4321" {
		t.Errorf("Expected Port '4321', got %q", cfg.Configuration.Port)
	}
	if cfg.Configuration.APIDir != "handlers" {
		t.Errorf("Expected APIDir 'handlers', got %q", cfg.Configuration.APIDir)
	}
	if cfg.Cache.MaxEntries != 16 {
		t.Errorf("Expected MaxEntries 16, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.CacheMaxAge() != 250*time.Millisecond {
		t.Errorf("Expected CacheMaxAge 250ms, got %v", cfg.CacheMaxAge())
	}
	if len(cfg.Configuration.AllowedOrigins) != 2 || cfg.Configuration.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Expected two allowed origins, got %v", cfg.Configuration.AllowedOrigins)
	}
	if cfg.FeatureFlags.Bundle {
		t.Error("Expected Bundle to be disabled")
	}
}

func TestConfigInvalidValue(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "not-a-number")

	if _, err := load(); err == nil {
		t.Error("Expected error for non-numeric CACHE_MAX_ENTRIES")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{}
	cfg.Cache.MaxAgeMs = 1500
	cfg.Configuration.ShutdownTimeoutInSeconds = 3
	cfg.Configuration.FetchTimeoutInSeconds = 7

	if cfg.CacheMaxAge() != 1500*time.Millisecond {
		t.Errorf("CacheMaxAge() = %v, want 1.5s", cfg.CacheMaxAge())
	}
	if cfg.ShutdownTimeout() != 3*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 3s", cfg.ShutdownTimeout())
	}
	if cfg.FetchTimeout() != 7*time.Second {
		t.Errorf("FetchTimeout() = %v, want 7s", cfg.FetchTimeout())
	}
}

func TestGet(t *testing.T) {
	cfg := Get()

	// Get returns whatever was loaded at init; defaults make these non-zero
	if cfg.Configuration.Port == "" && cfg.Cache.MaxEntries == 0 {
		t.Error("Expected Get() to return a loaded configuration")
	}
}
