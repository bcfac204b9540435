package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/internal/session"
)

// snapshotEvent is the SSE event name carrying a session.Snapshot.
const snapshotEvent = "snapshot"

// snapshotter is the part of the controller the state routes read.
type snapshotter interface {
	Snapshot() session.Snapshot
}

// newStateRouter serves the live session for a browser view.
func newStateRouter(ctl snapshotter, events http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, ctl.Snapshot())
	})
	r.Get("/events", events.ServeHTTP)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode state")
	}
}
