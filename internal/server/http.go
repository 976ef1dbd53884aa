package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/geminiassist/geminiassist/internal/logging"
	"github.com/geminiassist/geminiassist/internal/session"
)

// sessionInfo is the JSON view of a session summary.
type sessionInfo struct {
	ID             string    `json:"id"`
	Created        time.Time `json:"created"`
	LastUsed       time.Time `json:"last_used"`
	MessageCount   int       `json:"message_count"`
	FileCount      int       `json:"file_count"`
	HasCodeContext bool      `json:"has_code_context"`
	ProblemSummary string    `json:"problem_summary"`
}

// NewStatusRouter builds the read-only HTTP status surface: a health probe
// and a session listing. It never mutates the store.
func NewStatusRouter(store *session.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"server":   ServerName,
			"version":  ServerVersion,
			"sessions": store.Len(),
		})
	})

	r.Get("/v1/sessions", func(w http.ResponseWriter, req *http.Request) {
		summaries := store.List()
		infos := make([]sessionInfo, 0, len(summaries))
		for _, s := range summaries {
			infos = append(infos, sessionInfo{
				ID:             s.ID,
				Created:        s.Created,
				LastUsed:       s.LastUsed,
				MessageCount:   s.MessageCount,
				FileCount:      s.FileCount,
				HasCodeContext: s.HasCodeContext,
				ProblemSummary: s.ProblemSummary,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := logging.Component("server")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
