package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mlorentedev/reworder/internal/reword"
	"github.com/mlorentedev/reworder/internal/session"
)

// Run drives the terminal UI until the user quits or ctx is cancelled.
// Session changes made by background loads and rewords trigger a refresh.
func Run(ctx context.Context, svc *reword.Service, sess *session.Session, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(New(ctx, svc, sess), opts...)

	// Mutations also happen inside Update, where a blocking Send would deadlock.
	sess.OnChange(func(session.Snapshot) { go p.Send(refreshMsg{}) })
	defer sess.OnChange(nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
