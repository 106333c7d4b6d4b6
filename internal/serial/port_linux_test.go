//go:build linux

package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenPortUnsupportedBaud(t *testing.T) {
	_, err := OpenPort("/dev/null", 1234)
	assert.ErrorIs(t, err, ErrUnsupportedBaud)
}

func TestOpenPortNotATerminal(t *testing.T) {
	_, err := OpenPort("/dev/null", 115200)
	assert.ErrorContains(t, err, "configure termios")
}

func TestOpenPortMissingDevice(t *testing.T) {
	_, err := Open("/dev/does-not-exist-kmrelay", 115200)
	assert.ErrorContains(t, err, "open serial port /dev/does-not-exist-kmrelay")
}
