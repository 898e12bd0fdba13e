package widget

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// Opener opens a URL in a new top-level context.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// BrowserOpener launches the system browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

// PrintOpener writes the URL for the user to follow.
type PrintOpener struct {
	W io.Writer
}

func (p PrintOpener) Open(url string) error {
	_, err := fmt.Fprintf(p.W, "Continue the conversation here: %s\n", url)
	return err
}
