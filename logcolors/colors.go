package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Red    = "\033[31m"
	Yellow = "\033[33m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Cache-related log prefixes
const (
	LogCache      = Blue + "[Cache]" + Reset
	LogCacheEvict = Blue + "[Cache:Evict]" + Reset
	LogInFlight   = Cyan + "[InFlight]" + Reset
)

// Data access log prefixes
const (
	LogBridge  = Purple + "[Bridge]" + Reset
	LogSuspend = BrightMagenta + "[Suspend]" + Reset
	LogFetch   = Cyan + "[Fetch]" + Reset
	LogRender  = Green + "[Render]" + Reset
)

// Routing log prefixes
const (
	LogRoutes    = BrightBlue + "[Routes]" + Reset
	LogAPI       = BrightBlue + "[API]" + Reset
	LogPage      = BrightGreen + "[Page]" + Reset
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Yellow + "[APIKey]" + Reset
	LogHTTP      = Cyan + "[HTTP]" + Reset
)

// Server/Init log prefixes
const (
	LogServer   = Green + "[Server]" + Reset
	LogConfig   = Cyan + "[Config]" + Reset
	LogStats    = Blue + "[Stats]" + Reset
	LogMetrics  = Blue + "[Metrics]" + Reset
	LogBundle   = BrightCyan + "[Bundle]" + Reset
	LogScaffold = BrightGreen + "[Scaffold]" + Reset
)

// routeColors are rotated per route so the same route always logs in the same color
var routeColors = []string{
	Green, Blue, Purple, Cyan,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Route returns a colored route path for log messages
func Route(path string) string {
	hash := 0
	for _, c := range path {
		hash += int(c)
	}
	return routeColors[hash%len(routeColors)] + path + Reset
}
