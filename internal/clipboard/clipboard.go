// Package clipboard writes text to the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available
// (for example a headless Linux host without xclip, xsel or wl-copy).
var ErrUnsupported = errors.New("clipboard: not supported on this system")

// System is the host clipboard.
type System struct{}

func (System) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}

// Memory keeps the last written text. Err, when set, rejects every write.
type Memory struct {
	mu   sync.Mutex
	text string
	Err  error
}

func (m *Memory) WriteText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.text = text
	return nil
}

// Text returns the last successfully written text.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}
