package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mlorentedev/reworder/internal/metrics"
	"github.com/mlorentedev/reworder/internal/prompt"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
)

const maxTextLength = 10000

type loadRequest struct {
	ModelID string `json:"model_id"`
}

type rewordRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type rewordResponse struct {
	Rewritten string       `json:"rewritten"`
	Model     string       `json:"model"`
	Style     prompt.Style `json:"style"`
	ElapsedMs int64        `json:"elapsed_ms"`
}

// Sessions serves the /api/sessions resource.
type Sessions struct {
	store  *session.Store
	svc    *reword.Service
	logger *slog.Logger

	// loadCtx outlives the request that starts a load; cancelling it aborts
	// every background load.
	loadCtx     context.Context
	loadTimeout time.Duration
}

func NewSessions(store *session.Store, svc *reword.Service, loadCtx context.Context, loadTimeout time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{store: store, svc: svc, logger: logger, loadCtx: loadCtx, loadTimeout: loadTimeout}
}

func (h *Sessions) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (h *Sessions) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.store.Create()
		if errors.Is(err, session.ErrFull) {
			writeError(w, http.StatusServiceUnavailable, "too many active sessions")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not create session")
			return
		}
		metrics.ActiveSessions.Set(float64(h.store.Len()))
		writeJSON(w, http.StatusCreated, sess.Snapshot())
	}
}

func (h *Sessions) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := h.lookup(w, r); ok {
			writeJSON(w, http.StatusOK, sess.Snapshot())
		}
	}
}

func (h *Sessions) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.store.Delete(r.PathValue("id")) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		metrics.ActiveSessions.Set(float64(h.store.Len()))
		w.WriteHeader(http.StatusNoContent)
	}
}

// Load validates the model and starts loading it in the background.
// Clients poll GET /api/sessions/{id} for progress.
func (h *Sessions) Load() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.lookup(w, r)
		if !ok {
			return
		}

		var req loadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ModelID == "" {
			writeError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		if _, ok := h.svc.Catalog().Lookup(req.ModelID); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown model: %s", req.ModelID))
			return
		}

		ctx, cancel := context.WithTimeout(h.loadCtx, h.loadTimeout)
		done, err := h.svc.StartLoad(ctx, sess, req.ModelID)
		if err != nil {
			cancel()
			writeError(w, http.StatusConflict, "a model load is already in progress")
			return
		}
		h.logger.Info("model load started", "session", sess.ID(), "model", req.ModelID)
		go func() {
			defer cancel()
			<-done
		}()

		writeJSON(w, http.StatusAccepted, sess.Snapshot())
	}
}

func (h *Sessions) Reword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.lookup(w, r)
		if !ok {
			return
		}

		var req rewordRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.Text) > maxTextLength {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("text too long: %d characters (max %d)", len(req.Text), maxTextLength))
			return
		}
		style := prompt.ParseStyle(req.Style)
		if req.Style != "" && !prompt.Style(strings.ToLower(strings.TrimSpace(req.Style))).Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown style: %s", req.Style))
			return
		}

		out, err := h.svc.Reword(r.Context(), sess, req.Text, style)
		switch {
		case errors.Is(err, reword.ErrNotLoaded):
			writeError(w, http.StatusConflict, reword.StatusNotLoaded)
		case errors.Is(err, reword.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, reword.StatusEmptyInput)
		case errors.Is(err, reword.ErrBusy):
			writeError(w, http.StatusConflict, "a rewording is already in progress")
		case err != nil:
			writeError(w, http.StatusBadGateway, reword.StatusGenerateFailed)
		default:
			writeJSON(w, http.StatusOK, rewordResponse{
				Rewritten: out.Text,
				Model:     out.Model,
				Style:     out.Style,
				ElapsedMs: out.Elapsed.Milliseconds(),
			})
		}
	}
}

func (h *Sessions) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.lookup(w, r)
		if !ok {
			return
		}
		h.svc.Clear(sess)
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}
