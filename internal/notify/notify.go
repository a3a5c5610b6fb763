// Package notify prints the short human-readable notices a developer watches
// for in the terminal while the loop runs.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Notifier surfaces cycle outcomes to the developer.
type Notifier interface {
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
}

var (
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

// Terminal writes styled, timestamped notices to an io.Writer.
type Terminal struct {
	out   io.Writer
	now   func() time.Time
	plain bool
	mu    sync.Mutex
}

// NewTerminal creates a notifier writing to out. Styling is skipped when
// plain is set, which keeps output stable for logs and tests.
func NewTerminal(out io.Writer, plain bool) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{out: out, now: time.Now, plain: plain}
}

func (t *Terminal) Info(msg string)    { t.write(infoStyle, "•", msg) }
func (t *Terminal) Success(msg string) { t.write(successStyle, "✓", msg) }
func (t *Terminal) Warn(msg string)    { t.write(warnStyle, "!", msg) }
func (t *Terminal) Error(msg string)   { t.write(errorStyle, "✗", msg) }

func (t *Terminal) write(style lipgloss.Style, marker, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamp := t.now().Format("15:04:05")
	line := marker + " " + msg
	if !t.plain {
		stamp = timeStyle.Render(stamp)
		line = style.Render(line)
	}
	fmt.Fprintf(t.out, "%s %s\n", stamp, line)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Info(string)    {}
func (Discard) Success(string) {}
func (Discard) Warn(string)    {}
func (Discard) Error(string)   {}
