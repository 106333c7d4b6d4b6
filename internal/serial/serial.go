// Package serial provides the sinks that receive rendered controller lines:
// a real serial port, a console printer and an in-memory recorder.
package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	// ErrUnsupportedPlatform is returned when serial ports cannot be configured on this OS
	ErrUnsupportedPlatform = errors.New("serial ports not supported on this platform")

	// ErrUnsupportedBaud is returned for baud rates without a termios constant
	ErrUnsupportedBaud = errors.New("unsupported baud rate")

	// ErrClosed is returned by writes after Close
	ErrClosed = errors.New("sink closed")
)

// Sink receives one controller line per accepted packet. Implementations
// must tolerate repeated calls and serialize concurrent writers themselves.
type Sink interface {
	Write(line string) error
}

// WriteCloser is a Sink that owns a resource.
type WriteCloser interface {
	Sink
	io.Closer
}

// Open returns a Port for device, or a Console on stdout when device is empty.
func Open(device string, baud int) (WriteCloser, error) {
	if device == "" {
		return NewConsole(os.Stdout), nil
	}
	p, err := OpenPort(device, baud)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return p, nil
}

// Console prints lines prefixed with "Serial Output: ". Used when no serial
// device is configured.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console sink writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Write(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, "Serial Output: "+line)
	return err
}

func (c *Console) Close() error { return nil }

// Recorder keeps every line it is given.
type Recorder struct {
	mu    sync.Mutex
	lines []string
	err   error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent writes return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Recorder) Write(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, line)
	return nil
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *Recorder) Close() error { return nil }
