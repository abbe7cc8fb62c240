// Package session holds the per-user state of a rewording session: the single
// active engine slot, the phase machine, the view fields and the control toggles.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/progress"
	"github.com/mlorentedev/reworder/internal/prompt"
)

// IdleLabel is the progress label of a session that has not loaded a model.
const IdleLabel = "Select a model and load it."

var (
	// ErrBusy is returned when the control for an operation is disabled by an in-flight call.
	ErrBusy = errors.New("operation already in progress")
	// ErrNotLoaded is returned when generation is requested without an active engine.
	ErrNotLoaded = errors.New("no model loaded")
	// ErrEmptyInput is returned when the trimmed input sentence is empty.
	ErrEmptyInput = errors.New("empty input")
)

// Phase is the lifecycle state of a session.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
	PhaseGenerating    Phase = "generating"
)

// Control names a user-triggerable action.
type Control string

const (
	ControlLoad   Control = "load"
	ControlReword Control = "reword"
	ControlClear  Control = "clear"
	ControlCopy   Control = "copy"
)

// Controls is the enabled state of every control.
type Controls struct {
	Load   bool `json:"load"`
	Reword bool `json:"reword"`
	Clear  bool `json:"clear"`
	Copy   bool `json:"copy"`
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	ID        string          `json:"id"`
	Phase     Phase           `json:"phase"`
	Model     string          `json:"model,omitempty"`
	ModelName string          `json:"model_name,omitempty"`
	Style     prompt.Style    `json:"style"`
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Status    string          `json:"status"`
	Progress  progress.Update `json:"progress"`
	Controls  Controls        `json:"controls"`
	CreatedAt time.Time       `json:"created_at"`
	LastSeen  time.Time       `json:"last_seen"`
}

// Session is safe for concurrent use. Every mutation notifies the OnChange hook.
type Session struct {
	mu       sync.Mutex
	id       string
	phase    Phase
	engine   adapter.Engine
	style    prompt.Style
	input    string
	output   string
	status   string
	progress progress.Update
	controls Controls
	created  time.Time
	lastSeen time.Time
	closed   bool
	onChange func(Snapshot)
}

// New returns an idle session: load, clear and copy enabled, reword disabled
// until a model is loaded.
func New(id string) *Session {
	now := time.Now()
	return &Session{
		id:       id,
		phase:    PhaseUninitialized,
		style:    prompt.Professional,
		progress: progress.Update{Text: IdleLabel},
		controls: Controls{Load: true, Clear: true, Copy: true},
		created:  now,
		lastSeen: now,
	}
}

func (s *Session) ID() string { return s.id }

// OnChange registers fn to receive a snapshot after every mutation.
// fn runs outside the session lock.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// update applies fn under the lock and then notifies the change hook.
func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	hook := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
}

// SetProgress implements progress.Reporter.
func (s *Session) SetProgress(text string, ratio float64) {
	s.update(func() {
		s.progress = progress.Update{Text: text, Ratio: progress.Clamp(ratio)}
	})
}

func (s *Session) SetStatus(status string) {
	s.update(func() { s.status = status })
}

func (s *Session) SetInput(text string) {
	s.update(func() { s.input = text })
}

func (s *Session) SetStyle(style prompt.Style) {
	s.update(func() { s.style = style })
}

func (s *Session) SetOutput(text string) {
	s.update(func() { s.output = text })
}

func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Engine returns the active engine, or nil.
func (s *Session) Engine() adapter.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Enabled reports whether c can currently be triggered.
func (s *Session) Enabled(c Control) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.control(c)
}

// Enable turns c back on.
func (s *Session) Enable(c Control) {
	s.update(func() { *s.control(c) = true })
}

// Disable turns c off.
func (s *Session) Disable(c Control) {
	s.update(func() { *s.control(c) = false })
}

func (s *Session) control(c Control) *bool {
	switch c {
	case ControlLoad:
		return &s.controls.Load
	case ControlReword:
		return &s.controls.Reword
	case ControlClear:
		return &s.controls.Clear
	case ControlCopy:
		return &s.controls.Copy
	default:
		panic(fmt.Sprintf("session: unknown control %q", c))
	}
}

// BeginLoad atomically claims the load control. It disables load and reword,
// clears the status, moves to Loading and empties the engine slot, returning
// the previous engine so the caller can release it.
func (s *Session) BeginLoad() (adapter.Engine, error) {
	var (
		prev adapter.Engine
		err  error
	)
	s.update(func() {
		if !s.controls.Load || !validTransition(s.phase, PhaseLoading) {
			err = ErrBusy
			return
		}
		s.controls.Load = false
		s.controls.Reword = false
		s.status = ""
		s.phase = PhaseLoading
		prev, s.engine = s.engine, nil
	})
	return prev, err
}

// FinishLoad ends a load started with BeginLoad. A nil engine means the load
// failed and the session returns to Uninitialized. It reports false when the
// session was closed meanwhile; e is then not stored and the caller owns it.
func (s *Session) FinishLoad(e adapter.Engine) bool {
	live := true
	s.update(func() {
		switch {
		case s.closed:
			live = false
			s.phase = PhaseUninitialized
		case e != nil:
			s.engine = e
			s.phase = PhaseReady
			s.controls.Reword = true
		default:
			s.phase = PhaseUninitialized
		}
		s.controls.Load = true
	})
	return live
}

// BeginGenerate checks the generation preconditions in order (busy, no engine,
// empty input) and on success claims the reword control and moves to Generating.
// It records input and style as the session's current view values.
func (s *Session) BeginGenerate(input string, style prompt.Style) (adapter.Engine, error) {
	var (
		eng adapter.Engine
		err error
	)
	s.update(func() {
		s.input = input
		s.style = style
		switch {
		case s.phase == PhaseGenerating:
			err = ErrBusy
		case s.engine == nil:
			err = ErrNotLoaded
		case strings.TrimSpace(input) == "":
			err = ErrEmptyInput
		case !s.controls.Reword || !validTransition(s.phase, PhaseGenerating):
			err = ErrBusy
		default:
			s.controls.Load = false
			s.controls.Reword = false
			s.output = ""
			s.phase = PhaseGenerating
			eng = s.engine
		}
	})
	return eng, err
}

// FinishGenerate returns the session to Ready and re-enables load and reword.
func (s *Session) FinishGenerate() {
	s.update(func() {
		if s.phase != PhaseGenerating {
			return
		}
		s.phase = PhaseReady
		s.controls.Load = true
		s.controls.Reword = s.engine != nil
	})
}

// Clear blanks input, output and status.
func (s *Session) Clear() {
	s.update(func() {
		s.input = ""
		s.output = ""
		s.status = ""
	})
}

// Release empties the engine slot and returns the engine that occupied it.
func (s *Session) Release() adapter.Engine {
	var prev adapter.Engine
	s.update(func() {
		prev, s.engine = s.engine, nil
		if s.phase == PhaseReady {
			s.phase = PhaseUninitialized
			s.controls.Reword = false
		}
	})
	return prev
}

// Close marks the session dead and releases its engine slot like Release.
// A load still in flight hands its engine back through FinishLoad.
func (s *Session) Close() adapter.Engine {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Release()
}

// Touch records activity for idle eviction.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Phase:     s.phase,
		Style:     s.style,
		Input:     s.input,
		Output:    s.output,
		Status:    s.status,
		Progress:  s.progress,
		Controls:  s.controls,
		CreatedAt: s.created,
		LastSeen:  s.lastSeen,
	}
	if s.engine != nil {
		m := s.engine.Model()
		snap.Model = m.ID
		snap.ModelName = m.Name
	}
	return snap
}

// validTransition enforces Uninitialized -> Loading -> Ready <-> Generating,
// with Loading falling back to Uninitialized and Ready allowing a reload.
func validTransition(from, to Phase) bool {
	switch from {
	case PhaseUninitialized:
		return to == PhaseLoading
	case PhaseLoading:
		return to == PhaseReady || to == PhaseUninitialized
	case PhaseReady:
		return to == PhaseGenerating || to == PhaseLoading
	case PhaseGenerating:
		return to == PhaseReady
	default:
		return false
	}
}
