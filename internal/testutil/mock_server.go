// Package testutil holds HTTP fakes for the REST-backed clients.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// NewMockServer creates a test HTTP server with the given handlers.
// Handlers use http.ServeMux patterns; unmatched paths return 404.
func NewMockServer(handlers map[string]http.HandlerFunc) *httptest.Server {
	mux := http.NewServeMux()

	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}

	return httptest.NewServer(mux)
}

// WithJSONResponse creates a handler that returns body as JSON.
func WithJSONResponse(statusCode int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

// WithDelayedResponse wraps a handler to add latency.
func WithDelayedResponse(delay time.Duration, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		handler(w, r)
	}
}

// WithStatusSequence answers with the given status codes in order, then
// delegates every later request to final. It is how retry paths are driven.
func WithStatusSequence(codes []int, final http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	next := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := next
		next++
		mu.Unlock()
		if i < len(codes) {
			w.WriteHeader(codes[i])
			return
		}
		final(w, r)
	}
}

// Recorder counts requests per method and path.
type Recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

// Wrap returns handler with request counting.
func (rec *Recorder) Wrap(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		if rec.calls == nil {
			rec.calls = make(map[string]int)
		}
		rec.calls[r.Method+" "+r.URL.Path]++
		rec.mu.Unlock()
		handler(w, r)
	}
}

// Count returns how often method and path were requested.
func (rec *Recorder) Count(method, path string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.calls[method+" "+path]
}
