// ABOUTME: Secondary window abstraction for the authorization page
// ABOUTME: Provides the system browser opener used by the terminal front end

package calendarlink

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Window is an opened authorization page.
type Window interface {
	Close() error
	Closed() bool
}

// WindowOpener opens the authorization URL in a secondary window. An error
// means the window could not be shown (the popup-blocked case).
type WindowOpener interface {
	Open(url string) (Window, error)
}

// OpenerFunc adapts a function to WindowOpener.
type OpenerFunc func(url string) (Window, error)

// Open calls f(url).
func (f OpenerFunc) Open(url string) (Window, error) { return f(url) }

// BrowserOpener opens URLs in the system's default browser.
type BrowserOpener struct{}

// Open launches the platform URL handler.
func (BrowserOpener) Open(url string) (Window, error) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		// "cmd /c start" mangles '&' in query strings
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		cmd = exec.Command("xdg-open", url)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	w := &browserWindow{cmd: cmd, exited: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(w.exited)
	}()
	return w, nil
}

// browserWindow tracks the launcher process. The browser tab itself belongs
// to the user; Close only stops a launcher that is still running.
type browserWindow struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	closed bool
}

func (w *browserWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	select {
	case <-w.exited:
		return nil
	default:
		return w.cmd.Process.Kill()
	}
}

func (w *browserWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
