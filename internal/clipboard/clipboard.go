// Package clipboard copies digests to the system clipboard, falling back to
// the OSC 52 terminal escape sequence when no clipboard tool is available.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/muesli/termenv"
)

// Method reports how text reached the clipboard.
type Method int

const (
	MethodNone Method = iota
	MethodSystem
	MethodOSC52
)

func (m Method) String() string {
	switch m {
	case MethodSystem:
		return "system"
	case MethodOSC52:
		return "osc52"
	default:
		return "none"
	}
}

// Copier writes text to the clipboard. The zero value is not usable; use New.
type Copier struct {
	system  func(string) error
	openTTY func() (io.WriteCloser, error)
	getenv  func(string) string
}

// New returns a Copier using the platform clipboard tools and /dev/tty.
func New() *Copier {
	return &Copier{
		system: systemCopy,
		openTTY: func() (io.WriteCloser, error) {
			return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		},
		getenv: os.Getenv,
	}
}

func systemCopy(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility found")
	}
	return clipboard.WriteAll(text)
}

// Copy places text on the clipboard. The OSC 52 fallback cannot confirm
// that the terminal honoured the request.
func (c *Copier) Copy(text string) (Method, error) {
	sysErr := c.system(text)
	if sysErr == nil {
		return MethodSystem, nil
	}

	tty, err := c.openTTY()
	if err != nil {
		return MethodNone, fmt.Errorf("copy to clipboard: %w", errors.Join(sysErr, err))
	}
	defer tty.Close()

	// tmux only forwards the sequence inside a DCS passthrough
	if c.inTmux() {
		if _, err := osc52.New(text).Tmux().WriteTo(tty); err != nil {
			return MethodNone, fmt.Errorf("copy to clipboard: %w", err)
		}
		return MethodOSC52, nil
	}
	termenv.NewOutput(tty).Copy(text)
	return MethodOSC52, nil
}

func (c *Copier) inTmux() bool {
	term := c.getenv("TERM")
	return c.getenv("TMUX") != "" || strings.HasPrefix(term, "tmux")
}
