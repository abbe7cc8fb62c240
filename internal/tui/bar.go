package tui

import (
	barprogress "github.com/charmbracelet/bubbles/progress"

	"github.com/mlorentedev/reworder/internal/progress"
)

var _ progress.Reporter = (*Bar)(nil)

// Bar is a labelled progress bar.
type Bar struct {
	label string
	ratio float64
	view  barprogress.Model
}

func NewBar(width int) Bar {
	v := barprogress.New(barprogress.WithDefaultGradient())
	v.Width = width
	return Bar{view: v}
}

// SetProgress implements progress.Reporter.
func (b *Bar) SetProgress(text string, ratio float64) {
	b.label = text
	b.ratio = progress.Clamp(ratio)
}

func (b *Bar) SetWidth(w int) { b.view.Width = w }

func (b Bar) Label() string  { return b.label }
func (b Bar) Ratio() float64 { return b.ratio }
func (b Bar) View() string   { return b.view.ViewAs(b.ratio) }
