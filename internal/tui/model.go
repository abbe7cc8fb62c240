// Package tui is the terminal front-end: a sentence field, style and model
// selectors, the four controls, a progress bar and a status line, all bound
// to one session.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlorentedev/reworder/internal/adapter"
	"github.com/mlorentedev/reworder/internal/prompt"
	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
)

type focus int

const (
	focusInput focus = iota
	focusStyle
	focusModel
	focusCount
)

const defaultBarWidth = 40

// refreshMsg reports that the session changed outside the event loop.
type refreshMsg struct{}

// The service records failures in the session status, so done messages
// only trigger a refresh.
type loadDoneMsg struct{ err error }

type rewordDoneMsg struct {
	out reword.Outcome
	err error
}

type copyDoneMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ctx  context.Context
	svc  *reword.Service
	sess *session.Session

	models   []adapter.ModelDescriptor
	modelIdx int
	styles   []prompt.Style
	styleIdx int

	input   textinput.Model
	bar     Bar
	spinner spinner.Model
	focus   focus

	snap     session.Snapshot
	quitting bool
}

func New(ctx context.Context, svc *reword.Service, sess *session.Session) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a sentence to reword"
	ti.CharLimit = 10000
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	m := Model{
		ctx:     ctx,
		svc:     svc,
		sess:    sess,
		models:  svc.Catalog().Models(),
		styles:  prompt.Styles(),
		input:   ti,
		bar:     NewBar(defaultBarWidth),
		spinner: sp,
	}
	m.sync(sess.Snapshot())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *Model) sync(s session.Snapshot) {
	m.snap = s
	m.bar.SetProgress(s.Progress.Text, s.Progress.Ratio)
}

func (m Model) busy() bool {
	return m.snap.Phase == session.PhaseLoading || m.snap.Phase == session.PhaseGenerating
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := msg.Width - 20
		if w < 10 {
			w = 10
		}
		m.bar.SetWidth(w)
		m.input.Width = w
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.sync(m.sess.Snapshot())
		return m, nil

	case loadDoneMsg:
		m.sync(m.sess.Snapshot())
		return m, nil

	case rewordDoneMsg:
		m.sync(m.sess.Snapshot())
		return m, nil

	case copyDoneMsg:
		m.sync(m.sess.Snapshot())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, nil
	case "ctrl+l":
		return m, m.load()
	case "ctrl+r":
		return m, m.reword()
	case "ctrl+k":
		return m.clear(), nil
	case "ctrl+y":
		return m, m.copy()
	case "enter":
		if m.focus == focusModel {
			return m, m.load()
		}
		return m, m.reword()
	case "left", "right":
		if m.focus != focusInput {
			step := 1
			if msg.String() == "left" {
				step = -1
			}
			m.cycle(step)
			return m, nil
		}
	}

	if m.focus != focusInput {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) cycle(step int) {
	switch m.focus {
	case focusStyle:
		m.styleIdx = (m.styleIdx + step + len(m.styles)) % len(m.styles)
		m.sess.SetStyle(m.styles[m.styleIdx])
		m.sync(m.sess.Snapshot())
	case focusModel:
		if len(m.models) > 0 {
			m.modelIdx = (m.modelIdx + step + len(m.models)) % len(m.models)
		}
	}
}

func (m Model) selectedStyle() prompt.Style { return m.styles[m.styleIdx] }

func (m Model) selectedModel() (adapter.ModelDescriptor, bool) {
	if len(m.models) == 0 {
		return adapter.ModelDescriptor{}, false
	}
	return m.models[m.modelIdx], true
}

func (m Model) load() tea.Cmd {
	desc, ok := m.selectedModel()
	if !ok || !m.snap.Controls.Load {
		return nil
	}
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		return loadDoneMsg{err: svc.Load(ctx, sess, desc.ID)}
	}
}

func (m Model) reword() tea.Cmd {
	if m.snap.Phase == session.PhaseGenerating {
		return nil
	}
	ctx, svc, sess := m.ctx, m.svc, m.sess
	text, style := m.input.Value(), m.selectedStyle()
	return func() tea.Msg {
		out, err := svc.Reword(ctx, sess, text, style)
		return rewordDoneMsg{out: out, err: err}
	}
}

func (m Model) clear() Model {
	if !m.snap.Controls.Clear {
		return m
	}
	m.svc.Clear(m.sess)
	m.input.SetValue("")
	m.sync(m.sess.Snapshot())
	return m
}

func (m Model) copy() tea.Cmd {
	if !m.snap.Controls.Copy {
		return nil
	}
	ctx, svc, sess := m.ctx, m.svc, m.sess
	return func() tea.Msg {
		svc.Copy(ctx, sess)
		return copyDoneMsg{}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("reworder") + "\n\n")

	b.WriteString(labelStyle.Render("Sentence") + m.input.View() + "\n")
	b.WriteString(labelStyle.Render("Style") + m.selector(focusStyle, string(m.selectedStyle())) + "\n")
	modelName := "(no models)"
	if desc, ok := m.selectedModel(); ok {
		modelName = desc.Name
	}
	b.WriteString(labelStyle.Render("Model") + m.selector(focusModel, modelName) + "\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		button("Load ^L", m.snap.Controls.Load),
		button("Reword ⏎", m.snap.Controls.Reword),
		button("Clear ^K", m.snap.Controls.Clear),
		button("Copy ^Y", m.snap.Controls.Copy),
	) + "\n\n")

	b.WriteString(m.bar.View() + "\n")
	label := m.bar.Label()
	if m.busy() {
		label = m.spinner.View() + " " + label
	}
	b.WriteString(label + "\n\n")

	out := m.snap.Output
	if out == "" {
		out = helpStyle.Render("Output appears here.")
	}
	b.WriteString(outputStyle.Render(out) + "\n")

	if m.snap.Status != "" {
		b.WriteString(statusStyle.Render(m.snap.Status) + "\n")
	}
	b.WriteString(helpStyle.Render("tab focus • ←/→ change • enter reword (load on model) • esc quit") + "\n")
	return b.String()
}

func (m Model) selector(f focus, value string) string {
	s := "‹ " + value + " ›"
	if m.focus == f {
		return focusedStyle.Render(s)
	}
	return blurredStyle.Render(s)
}

func button(label string, enabled bool) string {
	if enabled {
		return buttonStyle.Render(label)
	}
	return disabledButtonStyle.Render(label)
}
