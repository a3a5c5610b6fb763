package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTerminalPlain(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)
	term.now = func() time.Time { return time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC) }

	term.Info("Building")
	term.Success("Serving on http://localhost:3000/index.html")
	term.Warn("could not reload")
	term.Error("build failed at bundle (exit 2)")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"13:04:05 • Building",
		"13:04:05 ✓ Serving on http://localhost:3000/index.html",
		"13:04:05 ! could not reload",
		"13:04:05 ✗ build failed at bundle (exit 2)",
	}, lines)
}

func TestTerminalStyledContainsMessage(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, false)

	term.Warn("could not reload")
	assert.Contains(t, buf.String(), "could not reload")
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	assert.NotPanics(t, func() {
		n.Info("x")
		n.Success("x")
		n.Warn("x")
		n.Error("x")
	})
}
