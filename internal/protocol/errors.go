package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource is returned when the sender is not an IPv4 UDP peer
	ErrInvalidSource = errors.New("invalid source address family")

	// ErrTooShort is returned when a datagram is shorter than its layout requires
	ErrTooShort = errors.New("packet too short")

	// ErrUnknownCommand is returned for command codes without a registered layout
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMalformedLine is returned when a text command line cannot be parsed
	ErrMalformedLine = errors.New("malformed command line")
)

// TooShortError reports which layout did not fit in the datagram.
type TooShortError struct {
	Context string // "header" or the command keyword
	Need    int
	Got     int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("packet too short for %s: need %d bytes, got %d", e.Context, e.Need, e.Got)
}

func (e *TooShortError) Is(target error) bool { return target == ErrTooShort }

// UnknownCommandError carries the unrecognized command code.
type UnknownCommandError struct {
	Code Code
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: 0x%08X", uint32(e.Code))
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }
