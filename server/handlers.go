package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnolan/preact-kit/logcolors"
	"github.com/bnolan/preact-kit/render"
	"github.com/bnolan/preact-kit/routes"

	log "github.com/sirupsen/logrus"
)

// apiHandler serves an API route over the network. The handler writes into
// the same Recorder the bridge uses, so both paths produce identical bytes.
func (a *App) apiHandler(h routes.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limit := a.cfg.Configuration.MaxRequestBodyBytes; limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		req, err := routes.FromHTTP(r)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, ErrorResponse{Error: err.Error()})
			return
		}

		rec, err := routes.Invoke(r.Context(), h, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := rec.Flush(w); err != nil {
			log.Debugf("%s Failed to write response for %s: %v", logcolors.LogAPI, r.URL.Path, err)
		}
	}
}

func (a *App) apiNotFound(w http.ResponseWriter, r *http.Request) {
	_, err := a.registry.Resolve(r.URL.Path)
	if err == nil {
		err = fmt.Errorf("%w for %s", routes.ErrRouteNotFound, r.URL.Path)
	}
	writeError(w, r, err)
}

// pageHandler renders page through the bridge and wraps it in the document
func (a *App) pageHandler(page render.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := a.renderer.Render(r.Context(), page)
		if err != nil {
			writeError(w, r, err)
			return
		}

		html, err := render.Document(a.cfg.Configuration.AppTitle, body)
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write([]byte(html))
		}
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"api_routes":    a.registry.Len(),
		"pages":         len(a.pages),
		"cache_entries": a.bridge.Cache().Len(),
		"inflight":      a.bridge.InFlight().Len(),
		"uptime":        a.stats.Uptime().Round(time.Second).String(),
	})
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := a.stats.Snapshot()
	body := map[string]any{
		"stats": snapshot,
		"cache": map[string]any{
			"entries":     a.bridge.Cache().Len(),
			"max_entries": a.bridge.Cache().MaxEntries(),
			"max_age":     a.bridge.Cache().MaxAge().String(),
		},
		"inflight": a.bridge.InFlight().Keys(),
		"routes":   a.registry.Paths(),
		"pages":    a.Pages(),
	}
	if r.URL.Query().Get("keys") == "true" {
		body["cache"].(map[string]any)["keys"] = a.bridge.Cache().Keys()
	}
	writeJSON(w, http.StatusOK, body)
}
