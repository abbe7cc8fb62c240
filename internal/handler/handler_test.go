package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/prompt"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
)

func TestHandleHealth(t *testing.T) {
	backends := map[string]adapter.Backend{
		"mock": &adapter.MockAdapter{},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	Health(backends, "test").ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want %q", resp.Status, "ok")
	}
	if resp.Version != "test" {
		t.Errorf("version: got %q, want %q", resp.Version, "test")
	}
	mockStatus, ok := resp.Adapters["mock"]
	if !ok {
		t.Fatal("adapters: missing mock")
	}
	if !mockStatus.Available {
		t.Error("mock adapter: got unavailable, want available")
	}
}

func TestHandleHealthUnavailableReasons(t *testing.T) {
	backends := map[string]adapter.Backend{
		"mock":     &adapter.MockAdapter{},
		"claude":   &adapter.ClaudeAdapter{},
		"gemini":   &adapter.GeminiAdapter{},
		"ollama":   &adapter.OllamaAdapter{BaseURL: "http://localhost:99999", Client: &http.Client{Timeout: time.Second}},
		"llamacpp": &adapter.LlamaCppAdapter{BaseURL: "http://localhost:99999", Client: &http.Client{Timeout: time.Second}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	Health(backends, "test").ServeHTTP(w, req)

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	tests := []struct {
		id     string
		reason string
	}{
		{"claude", "no API key"},
		{"gemini", "no API key"},
		{"ollama", "ollama unreachable"},
		{"llamacpp", "llama-server unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			st := resp.Adapters[tt.id]
			if st.Available {
				t.Errorf("%s: got available, want unavailable", tt.id)
			}
			if st.Reason != tt.reason {
				t.Errorf("%s reason: got %q, want %q", tt.id, st.Reason, tt.reason)
			}
		})
	}
}

func TestHandleModels(t *testing.T) {
	catalog := adapter.NewCatalog()
	catalog.Add(adapter.ModelDescriptor{ID: "mock", Name: "Mock"}, &adapter.MockAdapter{})
	catalog.Add(adapter.ModelDescriptor{ID: "qwen2.5:1.5b", Name: "Qwen 2.5 1.5B", Convention: adapter.ConventionChat}, &adapter.OllamaAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	w := httptest.NewRecorder()

	Models(catalog).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}

	var resp []adapter.ModelDescriptor
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("models count: got %d, want 2", len(resp))
	}
	if resp[0].ID != "mock" {
		t.Errorf("first model id: got %q, want %q", resp[0].ID, "mock")
	}
	if resp[1].Provider != "ollama" {
		t.Errorf("second model provider: got %q, want %q", resp[1].Provider, "ollama")
	}
}

func TestHandleStyles(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/styles", nil)
	w := httptest.NewRecorder()

	Styles().ServeHTTP(w, req)

	var resp []styleInfo
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 4 {
		t.Fatalf("styles count: got %d, want 4", len(resp))
	}
	if resp[0].ID != prompt.Professional || resp[3].ID != prompt.Formal {
		t.Errorf("style order: got %v", resp)
	}
}

type sessionsFixture struct {
	h     *Sessions
	store *session.Store
	cat   *adapter.Catalog
}

func newSessionsFixture(t *testing.T, maxSessions int) *sessionsFixture {
	t.Helper()
	cat := adapter.NewCatalog()
	cat.Add(adapter.ModelDescriptor{ID: "mock", Name: "Mock"}, &adapter.MockAdapter{})
	cat.Add(adapter.ModelDescriptor{ID: "broken"}, &adapter.MockAdapter{LoadErr: errors.New("weights missing")})
	store := session.NewStore(time.Hour, maxSessions)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := reword.NewService(cat, nil, logger)
	return &sessionsFixture{
		h:     NewSessions(store, svc, context.Background(), time.Minute, logger),
		store: store,
		cat:   cat,
	}
}

func (f *sessionsFixture) do(t *testing.T, hf http.HandlerFunc, method, id string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req := httptest.NewRequest(method, "/api/sessions/"+id, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	hf.ServeHTTP(w, req)
	return w
}

// loaded returns a session with the mock model already active.
func (f *sessionsFixture) loaded(t *testing.T) *session.Session {
	t.Helper()
	sess, err := f.store.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc := reword.NewService(f.cat, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := svc.Load(context.Background(), sess, "mock"); err != nil {
		t.Fatalf("load: %v", err)
	}
	return sess
}

func waitPhase(t *testing.T, sess *session.Session, want session.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase: got %q, want %q", sess.Phase(), want)
}

func TestHandleSessionLifecycle(t *testing.T) {
	f := newSessionsFixture(t, 0)

	w := f.do(t, f.h.Create(), http.MethodPost, "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, want %d", w.Code, http.StatusCreated)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Phase != session.PhaseUninitialized {
		t.Errorf("phase: got %q, want %q", snap.Phase, session.PhaseUninitialized)
	}
	if snap.Progress.Text != session.IdleLabel {
		t.Errorf("progress: got %q, want %q", snap.Progress.Text, session.IdleLabel)
	}

	w = f.do(t, f.h.Get(), http.MethodGet, snap.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status: got %d, want %d", w.Code, http.StatusOK)
	}

	w = f.do(t, f.h.Delete(), http.MethodDelete, snap.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status: got %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.do(t, f.h.Get(), http.MethodGet, snap.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleCreateSessionLimit(t *testing.T) {
	f := newSessionsFixture(t, 1)

	if w := f.do(t, f.h.Create(), http.MethodPost, "", nil); w.Code != http.StatusCreated {
		t.Fatalf("first create: got %d", w.Code)
	}
	if w := f.do(t, f.h.Create(), http.MethodPost, "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("second create: got %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleLoad(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess, _ := f.store.Create()

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"missing model_id", loadRequest{}, http.StatusBadRequest, "model_id is required"},
		{"unknown model", loadRequest{ModelID: "nonexistent"}, http.StatusBadRequest, "unknown model: nonexistent"},
		{"invalid json", "{invalid", http.StatusBadRequest, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, f.h.Load(), http.MethodPost, sess.ID(), tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantCode)
			}
			var resp errorResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error != tt.wantErr {
				t.Errorf("error: got %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}

	w := f.do(t, f.h.Load(), http.MethodPost, sess.ID(), loadRequest{ModelID: "mock"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("load status: got %d, want %d", w.Code, http.StatusAccepted)
	}
	waitPhase(t, sess, session.PhaseReady)
	if got := sess.Snapshot().Status; got != "Model loaded: Mock." {
		t.Errorf("status: got %q", got)
	}
}

func TestHandleLoadFailure(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess, _ := f.store.Create()

	w := f.do(t, f.h.Load(), http.MethodPost, sess.ID(), loadRequest{ModelID: "broken"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("load status: got %d, want %d", w.Code, http.StatusAccepted)
	}

	waitPhase(t, sess, session.PhaseUninitialized)
	snap := sess.Snapshot()
	if snap.Status != reword.StatusLoadFailed {
		t.Errorf("status: got %q, want %q", snap.Status, reword.StatusLoadFailed)
	}
	if !snap.Controls.Load {
		t.Error("load control should be re-enabled after failure")
	}
}

func TestHandleLoadBusy(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess, _ := f.store.Create()
	if _, err := sess.BeginLoad(); err != nil {
		t.Fatalf("BeginLoad: %v", err)
	}

	w := f.do(t, f.h.Load(), http.MethodPost, sess.ID(), loadRequest{ModelID: "mock"})
	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandleReword(t *testing.T) {
	f := newSessionsFixture(t, 0)
	ready := f.loaded(t)
	idle, _ := f.store.Create()

	tests := []struct {
		name      string
		sessionID string
		body      any
		wantCode  int
		wantField string
		wantValue string
	}{
		{"success", ready.ID(), rewordRequest{Text: "hello world", Style: "friendly"}, http.StatusOK, "rewritten", "Hello world"},
		{"style echoed", ready.ID(), rewordRequest{Text: "hello", Style: "FORMAL"}, http.StatusOK, "style", "formal"},
		{"default style", ready.ID(), rewordRequest{Text: "hello"}, http.StatusOK, "style", "professional"},
		{"unknown style", ready.ID(), rewordRequest{Text: "hello", Style: "pirate"}, http.StatusBadRequest, "error", "unknown style: pirate"},
		{"empty text", ready.ID(), rewordRequest{Text: "   "}, http.StatusBadRequest, "error", reword.StatusEmptyInput},
		{"not loaded", idle.ID(), rewordRequest{Text: "hello"}, http.StatusConflict, "error", reword.StatusNotLoaded},
		{"unknown session", "nope", rewordRequest{Text: "hello"}, http.StatusNotFound, "error", "session not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, f.h.Reword(), http.MethodPost, tt.sessionID, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantCode)
			}

			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got, ok := resp[tt.wantField]
			if !ok {
				t.Fatalf("response missing field %q: %v", tt.wantField, resp)
			}
			if got != tt.wantValue {
				t.Errorf("%s: got %q, want %q", tt.wantField, got, tt.wantValue)
			}
		})
	}
}

func TestHandleRewordTextTooLong(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess := f.loaded(t)

	t.Run("over limit", func(t *testing.T) {
		w := f.do(t, f.h.Reword(), http.MethodPost, sess.ID(), rewordRequest{Text: strings.Repeat("a", maxTextLength+1)})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
		}
		var resp errorResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if !strings.Contains(resp.Error, "too long") {
			t.Errorf("error: got %q, want to contain 'too long'", resp.Error)
		}
	})

	t.Run("at limit", func(t *testing.T) {
		w := f.do(t, f.h.Reword(), http.MethodPost, sess.ID(), rewordRequest{Text: strings.Repeat("b", maxTextLength)})
		if w.Code != http.StatusOK {
			t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestHandleRewordEngineFailure(t *testing.T) {
	f := newSessionsFixture(t, 0)
	f.cat.Add(adapter.ModelDescriptor{ID: "flaky"}, &adapter.MockAdapter{GenerateErr: errors.New("out of memory")})
	sess, _ := f.store.Create()
	svc := reword.NewService(f.cat, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := svc.Load(context.Background(), sess, "flaky"); err != nil {
		t.Fatalf("load: %v", err)
	}

	w := f.do(t, f.h.Reword(), http.MethodPost, sess.ID(), rewordRequest{Text: "hello"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadGateway)
	}
	var resp errorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != reword.StatusGenerateFailed {
		t.Errorf("error: got %q, want %q", resp.Error, reword.StatusGenerateFailed)
	}
	if strings.Contains(resp.Error, "memory") {
		t.Error("engine detail leaked to client")
	}
}

func TestHandleRewordResponseHasElapsedMs(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess := f.loaded(t)

	w := f.do(t, f.h.Reword(), http.MethodPost, sess.ID(), rewordRequest{Text: "hello"})

	var resp rewordResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "mock" {
		t.Errorf("model: got %q, want %q", resp.Model, "mock")
	}
	if resp.ElapsedMs < 0 {
		t.Errorf("elapsed_ms should be >= 0, got %d", resp.ElapsedMs)
	}
}

func TestHandleClear(t *testing.T) {
	f := newSessionsFixture(t, 0)
	sess := f.loaded(t)
	f.do(t, f.h.Reword(), http.MethodPost, sess.ID(), rewordRequest{Text: "hello"})

	w := f.do(t, f.h.Clear(), http.MethodPost, sess.ID(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	var snap session.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.Input != "" || snap.Output != "" || snap.Status != "" {
		t.Errorf("clear left state behind: %+v", snap)
	}
	if snap.Phase != session.PhaseReady {
		t.Errorf("phase: got %q, want %q", snap.Phase, session.PhaseReady)
	}
}
