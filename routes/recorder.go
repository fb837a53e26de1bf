package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Recorder is an in-memory Response. It performs no I/O: it keeps the
// status code and the last payload written so that the same bytes can be
// handed to an in-process caller or flushed to a real connection.
type Recorder struct {
	mu          sync.Mutex
	status      int
	body        []byte
	contentType string
	written     bool
	err         error
}

// NewRecorder creates a recorder with a 200 status
func NewRecorder() *Recorder {
	return &Recorder{status: http.StatusOK}
}

// JSON records payload encoded as JSON
func (r *Recorder) JSON(payload any) Response {
	data, err := json.Marshal(payload)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.err = fmt.Errorf("failed to encode JSON payload: %w", err)
		return r
	}
	r.body = data
	r.contentType = "application/json"
	r.written = true
	return r
}

// Send records strings and byte slices verbatim and encodes anything else as JSON
func (r *Recorder) Send(payload any) Response {
	switch p := payload.(type) {
	case string:
		r.set([]byte(p), "text/html; charset=utf-8")
	case []byte:
		r.set(append([]byte(nil), p...), "application/octet-stream")
	case json.RawMessage:
		r.set(append([]byte(nil), p...), "application/json")
	default:
		return r.JSON(payload)
	}
	return r
}

// Status records the status code
func (r *Recorder) Status(code int) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
	return r
}

func (r *Recorder) set(body []byte, contentType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = body
	r.contentType = contentType
	r.written = true
}

// StatusCode returns the recorded status
func (r *Recorder) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Body returns the recorded payload
func (r *Recorder) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// ContentType returns the content type implied by the last write
func (r *Recorder) ContentType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contentType
}

// Written reports whether the handler wrote a payload
func (r *Recorder) Written() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first encoding error hit while recording
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Flush writes the recorded status and payload to w
func (r *Recorder) Flush(w http.ResponseWriter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.written {
		status := r.status
		if status == http.StatusOK {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		return nil
	}

	w.Header().Set("Content-Type", r.contentType)
	w.WriteHeader(r.status)
	_, err := w.Write(r.body)
	return err
}
