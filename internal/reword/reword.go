// Package reword drives model loading and sentence rewording for a session.
package reword

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/logging"
	"github.com/mlorentedev/reworder/internal/metrics"
	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
	"github.com/mlorentedev/reworder/internal/session"
)

// Status lines shown to the user.
const (
	StatusLoadFailed     = "Model initialization failed. Check that the backend is reachable."
	StatusNotLoaded      = "Please load the model first."
	StatusEmptyInput     = "Please type a sentence."
	StatusGenerating     = "Generating…"
	StatusDone           = "Done."
	StatusGenerateFailed = "Generation failed. See server logs for details."
	StatusCopied         = "Copied."
	StatusCopyFailed     = "Copy failed (clipboard permission)."

	LabelReady      = "Ready ✓"
	LabelLoadFailed = "Initialization failed"
)

var (
	ErrBusy       = session.ErrBusy
	ErrNotLoaded  = session.ErrNotLoaded
	ErrEmptyInput = session.ErrEmptyInput
	// ErrUnknownModel is returned by Load for IDs missing from the catalog.
	ErrUnknownModel = errors.New("unknown model")
)

// Clipboard accepts text for the user to paste elsewhere.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Outcome describes a successful rewording.
type Outcome struct {
	Text    string
	Model   string
	Style   prompt.Style
	Elapsed time.Duration
}

type Service struct {
	catalog   *adapter.Catalog
	clipboard Clipboard
	logger    *slog.Logger
}

// NewService wires a service. clip may be nil when no clipboard is available.
func NewService(catalog *adapter.Catalog, clip Clipboard, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: catalog, clipboard: clip, logger: logger}
}

func (s *Service) Catalog() *adapter.Catalog { return s.catalog }

// Load acquires modelID into sess, replacing any active engine. Progress and
// status are written to the session; the returned error carries the detail.
func (s *Service) Load(ctx context.Context, sess *session.Session, modelID string) error {
	prev, err := sess.BeginLoad()
	if err != nil {
		return err
	}
	return s.load(ctx, sess, modelID, prev)
}

// StartLoad claims the session's load control synchronously and finishes the
// load in the background. The channel receives Load's result and is closed.
func (s *Service) StartLoad(ctx context.Context, sess *session.Session, modelID string) (<-chan error, error) {
	prev, err := sess.BeginLoad()
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.load(ctx, sess, modelID, prev)
	}()
	return done, nil
}

func (s *Service) load(ctx context.Context, sess *session.Session, modelID string, prev adapter.Engine) error {
	var eng adapter.Engine
	defer func() {
		if sess.FinishLoad(eng) {
			return
		}
		if rerr := adapter.Release(eng); rerr != nil {
			s.logger.Warn("release orphaned engine", "session", sess.ID(), "error", rerr)
		}
	}()

	if rerr := adapter.Release(prev); rerr != nil {
		s.logger.Warn("release previous engine", "session", sess.ID(), "error", rerr)
	}

	desc, ok := s.catalog.Lookup(modelID)
	backend, _ := s.catalog.Backend(modelID)
	if !ok || backend == nil {
		err := fmt.Errorf("reword: load %q: %w", modelID, ErrUnknownModel)
		s.failLoad(ctx, sess, modelID, "", err)
		return err
	}

	sess.SetProgress("Connecting to "+backend.Name()+"…", 0.1)
	sess.SetProgress("Initializing "+desc.Name+"…", 0.35)

	start := time.Now()
	loaded, err := backend.Load(ctx, desc, progress.Func(sess))
	metrics.ModelLoadDuration.WithLabelValues(backend.Provider()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelLoadsTotal.WithLabelValues(backend.Provider(), "error").Inc()
		err = fmt.Errorf("reword: load %q: %w", modelID, err)
		s.failLoad(ctx, sess, modelID, backend.Provider(), err)
		return err
	}
	metrics.ModelLoadsTotal.WithLabelValues(backend.Provider(), "ok").Inc()

	eng = loaded
	sess.SetProgress(LabelReady, 1)
	sess.SetStatus("Model loaded: " + desc.Name + ".")
	s.logger.Info("model loaded", "session", sess.ID(), "model", desc.ID, "backend", backend.Provider(),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Service) failLoad(ctx context.Context, sess *session.Session, modelID, backend string, err error) {
	logging.CaptureError(ctx, s.logger, "model load failed", err,
		"session", sess.ID(), "model", modelID, "backend", backend)
	sess.SetProgress(LabelLoadFailed, 0)
	sess.SetStatus(StatusLoadFailed)
}

// Reword rewrites text in style with the session's engine. Precondition
// failures set a status line and return a sentinel error without calling the engine.
func (s *Service) Reword(ctx context.Context, sess *session.Session, text string, style prompt.Style) (Outcome, error) {
	eng, err := sess.BeginGenerate(text, style)
	switch {
	case errors.Is(err, ErrNotLoaded):
		sess.SetStatus(StatusNotLoaded)
		return Outcome{}, err
	case errors.Is(err, ErrEmptyInput):
		sess.SetStatus(StatusEmptyInput)
		return Outcome{}, err
	case err != nil:
		return Outcome{}, err
	}
	defer sess.FinishGenerate()

	sess.SetStatus(StatusGenerating)
	model := eng.Model().ID
	metrics.InputChars.Observe(float64(len(text)))

	start := time.Now()
	res, err := eng.Generate(ctx, BuildRequest(eng.Convention(), style, text))
	elapsed := time.Since(start)
	metrics.RewordDuration.WithLabelValues(model, string(style)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.RewordsTotal.WithLabelValues(model, "error").Inc()
		logging.CaptureError(ctx, s.logger, "generation failed", err,
			"session", sess.ID(), "model", model, "style", style)
		sess.SetStatus(StatusGenerateFailed)
		return Outcome{}, fmt.Errorf("reword: generate: %w", err)
	}
	metrics.RewordsTotal.WithLabelValues(model, "ok").Inc()

	out := Resolve(res)
	sess.SetOutput(out)
	sess.SetStatus(StatusDone)
	return Outcome{Text: out, Model: model, Style: style, Elapsed: elapsed}, nil
}

// BuildRequest shapes the sentence for the engine's calling convention.
func BuildRequest(conv adapter.Convention, style prompt.Style, text string) adapter.Request {
	if conv == adapter.ConventionPrompt {
		return adapter.Request{Prompt: prompt.BuildPrompt(style, text), Sampling: adapter.PromptSampling}
	}
	return adapter.Request{Messages: prompt.BuildMessages(style, text), Sampling: adapter.ChatSampling}
}

// Resolve turns an engine result into display text. Raw completions may echo
// the prompt and are cut after the delimiter; chat replies are only trimmed.
func Resolve(res adapter.Result) string {
	switch r := res.(type) {
	case adapter.Completion:
		return prompt.ExtractRewritten(r.Generated)
	case adapter.ChatReply:
		return strings.TrimSpace(r.Content)
	default:
		return ""
	}
}

// Clear blanks the session's input, output and status.
func (s *Service) Clear(sess *session.Session) {
	sess.Clear()
}

// Copy puts the session's output on the clipboard. An empty output is a no-op.
// Failures are reported through the status line only.
func (s *Service) Copy(ctx context.Context, sess *session.Session) {
	text := sess.Output()
	if text == "" {
		return
	}
	if s.clipboard == nil {
		sess.SetStatus(StatusCopyFailed)
		return
	}
	if err := s.clipboard.WriteText(ctx, text); err != nil {
		s.logger.Warn("clipboard write failed", "session", sess.ID(), "error", err)
		sess.SetStatus(StatusCopyFailed)
		return
	}
	sess.SetStatus(StatusCopied)
}
