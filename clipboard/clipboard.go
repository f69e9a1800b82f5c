// Package clipboard copies text to the system clipboard through the
// terminal, using the OSC52 escape sequence.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

var ErrClipboard = errors.New("failed to copy to clipboard")

// Copy sends `text` to the clipboard of the terminal attached to `w`.
// It fails with ErrClipboard when `w` is not a terminal.
func Copy(w io.Writer, text string) error {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fmt.Errorf("%w: output is not a terminal", ErrClipboard)
	}
	return write(w, text, os.Getenv("TERM"))
}

func write(w io.Writer, text, terminal string) error {
	seq := osc52.New(text)
	switch {
	case strings.HasPrefix(terminal, "screen"):
		seq = seq.Screen()
	case strings.HasPrefix(terminal, "tmux"):
		seq = seq.Tmux()
	}
	if _, err := seq.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %s", ErrClipboard, err)
	}
	return nil
}
