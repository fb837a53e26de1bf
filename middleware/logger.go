package middleware

import (
	"net/http"
	"time"

	"github.com/bnolan/preact-kit/logcolors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the id assigned to every request
const RequestIDHeader = "X-Request-ID"

// ResponseRecorder captures the status code and body size written through it
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

// NewResponseRecorder wraps w with a 200 default status
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rec *ResponseRecorder) WriteHeader(code int) {
	rec.StatusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.BodySize += n
	return n, err
}

// LoggingMiddleware logs one line per request and tags it with a request id.
// An incoming X-Request-ID is kept.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}
		w.Header().Set(RequestIDHeader, requestID)

		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)

		color := getStatusColor(rec.StatusCode)
		log.WithFields(log.Fields{
			"request_id": requestID,
			"remote":     r.RemoteAddr,
			"bytes":      rec.BodySize,
		}).Infof("%s %s %s %s%d%s %v",
			logcolors.LogHTTP, r.Method, r.URL.RequestURI(),
			color, rec.StatusCode, logcolors.Reset, time.Since(start))
	})
}

func getStatusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return logcolors.Green
	case code >= 300 && code < 400:
		return logcolors.Cyan
	case code >= 400 && code < 500:
		return logcolors.Yellow
	case code >= 500:
		return logcolors.Red
	default:
		return logcolors.Reset
	}
}
