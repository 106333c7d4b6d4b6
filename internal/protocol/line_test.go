package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineRendersBack(t *testing.T) {
	lines := []string{
		"MOUSE_MOVE 100 -50\r\n",
		"AUTO_MOVE -1000 20 250\r\n",
		"MOUSE_LEFT 1\r\n",
		"MOUSE_MIDDLE 0\r\n",
		"MOUSE_RIGHT 1\r\n",
		"MOUSE_WHEEL -3\r\n",
		"BEZIER_MOVE 300 -400 1500\r\n",
		"KEYBOARD_ALL CTRL:0x3 BUTTONS:0x4 0x0 0x0 0x0 0x0 0x0 0x0 0x0 0x0 0x0 \r\n",
		"REBOOT\r\n",
	}

	for _, l := range lines {
		cmd, err := ParseLine(l)
		require.NoError(t, err, l)
		assert.Equal(t, l, cmd.Render())
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Command
	}{
		{
			name:     "lower case keyword",
			input:    "mouse_move 1 2",
			expected: MouseMove{X: 1, Y: 2},
		},
		{
			name:     "bezier with control points",
			input:    "BEZIER_MOVE 10 20 300 1 -2 3 -4",
			expected: BezierMove{TargetX: 10, TargetY: 20, Duration: 300, CtrlX1: 1, CtrlY1: -2, CtrlX2: 3, CtrlY2: -4},
		},
		{
			name:     "keyboard with fewer buttons",
			input:    "KEYBOARD_ALL CTRL:0x2 BUTTONS:0x4 0x5",
			expected: KeyboardAll{Ctrl: 2, Buttons: [KeyboardButtons]uint8{4, 5}},
		},
		{
			name:     "keyboard modifier only",
			input:    "KEYBOARD_ALL CTRL:0x1",
			expected: KeyboardAll{Ctrl: 1},
		},
		{
			name:     "duration above int32",
			input:    "AUTO_MOVE 0 0 4294967295",
			expected: AutoMove{Duration: 4294967295},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseLine(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cmd)
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"JUMP 1 2",
		"MOUSE_MOVE 1",
		"MOUSE_MOVE 1 two",
		"MOUSE_MOVE 1 2 3",
		"MOUSE_MOVE 2147483648 0",
		"AUTO_MOVE 1 2 -5",
		"MOUSE_LEFT 256",
		"MOUSE_LEFT",
		"BEZIER_MOVE 1 2 3 4",
		"KEYBOARD_ALL 0x3",
		"KEYBOARD_ALL CTRL:0x300",
		"KEYBOARD_ALL CTRL:0x1 KEYS:0x4",
		"KEYBOARD_ALL CTRL:0x1 BUTTONS:0x1 0x2 0x3 0x4 0x5 0x6 0x7 0x8 0x9 0x10 0x11",
		"REBOOT now",
	}

	for _, in := range inputs {
		_, err := ParseLine(in)
		assert.ErrorIs(t, err, ErrMalformedLine, "input %q", in)
	}
}
