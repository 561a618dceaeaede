package conversation

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// TerminalRenderer prints one line per entry, tagged with its role.
type TerminalRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{out: out}
}

func (t *TerminalRenderer) Render(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.out, "[%s] %s\n", e.Role, e.Text); err != nil {
		slog.Error("Failed to render message", "error", err, "role", e.Role)
	}
}

// Tee fans each entry out to every renderer in order.
type Tee []Renderer

func (t Tee) Render(e Entry) {
	for _, r := range t {
		r.Render(e)
	}
}
