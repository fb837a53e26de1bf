package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/bnolan/preact-kit/logcolors"

	log "github.com/sirupsen/logrus"
)

// APIPrefix is the reserved path prefix of every API route
const APIPrefix = "/api"

// Request is the part of an HTTP request an API handler may rely on
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is what an API handler writes its payload through. Every method
// returns the response so calls can be chained.
type Response interface {
	JSON(payload any) Response
	Send(payload any) Response
	Status(code int) Response
}

// HandlerFunc serves one API route. Returning signals that the payload is final.
type HandlerFunc func(ctx context.Context, req *Request, res Response) error

// Exports maps a route module name (the file stem, e.g. "ping") to its handler
type Exports map[string]HandlerFunc

// NewRequest builds a synthetic request for rawURL
func NewRequest(method, rawURL string) *Request {
	req := &Request{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
	}
	if u, err := url.Parse(rawURL); err == nil {
		req.Query = u.Query()
	} else {
		req.Query = url.Values{}
	}
	return req
}

// FromHTTP converts an incoming HTTP request
func FromHTTP(r *http.Request) (*Request, error) {
	req := &Request{
		Method: r.Method,
		URL:    r.URL.RequestURI(),
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = body
	}
	return req, nil
}

// Invoke runs h against a fresh Recorder. A panicking handler is reported as
// an error rather than taking the process down.
func Invoke(ctx context.Context, h HandlerFunc, req *Request) (rec *Recorder, err error) {
	rec = NewRecorder()
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("%s Handler for %s panicked: %v\n%s", logcolors.LogAPI, req.URL, p, debug.Stack())
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()

	if err := h(ctx, req, rec); err != nil {
		return rec, err
	}
	if err := rec.Err(); err != nil {
		return rec, err
	}
	return rec, nil
}

// IsAPIPath reports whether path lies under the API prefix
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, APIPrefix+"/")
}

// stripQuery returns the path component of a request URL
func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}
