package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"evidencer/internal/config"
	"evidencer/internal/pipeline"
	"evidencer/internal/store"
)

const maxContextEntries = 64

// Runner is the research pipeline as the API sees it. *pipeline.Pipeline
// satisfies it; tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, contextRecord map[string]string, opts pipeline.RunOptions) pipeline.SessionPayload
}

type Handler struct {
	cfg      config.Config
	runner   Runner
	sessions store.Store
}

func NewHandler(cfg config.Config, runner Runner, sessions store.Store) Handler {
	return Handler{cfg: cfg, runner: runner, sessions: sessions}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type researchRequest struct {
	Context     map[string]string `json:"context"`
	Location    string            `json:"location"`
	Language    string            `json:"language"`
	Sensitivity string            `json:"sensitivity"`
	SessionID   string            `json:"sessionId"`
}

func (h Handler) RunResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Context) > maxContextEntries {
		writeError(w, http.StatusBadRequest, "invalid_request", "context record has too many entries")
		return
	}

	ctx := r.Context()
	if h.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RunTimeout)
		defer cancel()
	}

	payload := h.runner.Run(ctx, req.Context, pipeline.RunOptions{
		SessionID:   strings.TrimSpace(req.SessionID),
		Location:    strings.TrimSpace(req.Location),
		Language:    strings.TrimSpace(req.Language),
		Sensitivity: strings.TrimSpace(req.Sensitivity),
	})

	if h.sessions.Enabled() {
		if err := h.sessions.SaveSession(r.Context(), payload); err != nil {
			log.Printf("warn: archive session %s: %v", payload.Audit.SessionID, err)
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	summaries, err := h.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to list sessions")
		return
	}
	if summaries == nil {
		summaries = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}

	payload, err := h.sessions.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
