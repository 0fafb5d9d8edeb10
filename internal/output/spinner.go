package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY reports whether w exposes an Fd() that is a terminal.
// Plain writers such as *bytes.Buffer are never terminals.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Spinner shows an animated indicator while a slow check runs, such as
// the WMI query in doctor.
//
// On a non-terminal writer the message is printed once and no goroutine
// is started.
type Spinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	writer  io.Writer
	running bool
	started time.Time
	elapsed bool
	ticker  *time.Ticker
	done    chan struct{}
}

// NewSpinner creates a stopped spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
		writer:  os.Stdout,
		done:    make(chan struct{}),
	}
}

// ShowElapsed appends the elapsed seconds to the message. Call before Start.
func (s *Spinner) ShowElapsed() *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = true
	return s
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. Calling Start on a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	go s.spin()
}

func (s *Spinner) spin() {
	for i := 0; ; i++ {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			fmt.Fprintf(s.writer, "\r%s  %s", s.frames[i%len(s.frames)], s.text())
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// text must be called with the lock held.
func (s *Spinner) text() string {
	if !s.elapsed {
		return s.message
	}
	return fmt.Sprintf("%s (%ds)", s.message, int(time.Since(s.started).Seconds()))
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.text())+4))
	}
}

// UpdateMessage replaces the message while the spinner runs.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// StopWithMessage stops the spinner and prints message on its own line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
