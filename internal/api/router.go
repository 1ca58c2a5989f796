package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/commands", s.handleCommands)
		r.Get("/events", s.handleEvents)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports liveness and build version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports the current session snapshot: generation, device
// paths, and the command counter.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

// commandEntry is the wire shape of one table entry.
type commandEntry struct {
	Pattern string   `json:"pattern"`
	Lines   []string `json:"lines"`
	DelayMS int64    `json:"delay_ms"`
	HasArg  bool     `json:"has_arg"`
}

// handleCommands returns the compiled response table in configuration order.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	entries := s.table.Entries()
	out := make([]commandEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, commandEntry{
			Pattern: e.Pattern,
			Lines:   e.Response.Lines,
			DelayMS: e.Response.Delay.Milliseconds(),
			HasArg:  e.HasArg(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"commands": out,
	})
}

// handleEvents returns recent transcript entries, newest first.
// Requires the transcript journal to be enabled.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if s.transcript == nil {
		writeUnavailable(w, "transcript journal is not enabled")
		return
	}

	entries, err := s.transcript.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("transcript query failed", "error", err)
		writeInternalError(w, "failed to query transcript")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(entries),
		"events": entries,
	})
}
