package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLine parses a controller line, as produced by Command.Render, back
// into a Command. BEZIER_MOVE optionally takes the four control point values
// after the duration. KEYBOARD_ALL accepts fewer than ten buttons; the rest
// are zero. Byte values after "0x" are decimal, matching Render.
func ParseLine(s string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedLine)
	}

	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "MOUSE_MOVE":
		v, err := parseInts(keyword, args, 2, 2)
		if err != nil {
			return nil, err
		}
		return MouseMove{X: int32(v[0]), Y: int32(v[1])}, nil

	case "AUTO_MOVE":
		v, err := parseInts(keyword, args, 3, 3)
		if err != nil {
			return nil, err
		}
		d, err := toUint32(keyword, v[2])
		if err != nil {
			return nil, err
		}
		return AutoMove{X: int32(v[0]), Y: int32(v[1]), Duration: d}, nil

	case "MOUSE_LEFT", "MOUSE_MIDDLE", "MOUSE_RIGHT":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes 1 argument, got %d", ErrMalformedLine, keyword, len(args))
		}
		state, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %s state: %v", ErrMalformedLine, keyword, err)
		}
		return MouseButton{Button: codeByName[keyword], State: uint8(state)}, nil

	case "MOUSE_WHEEL":
		v, err := parseInts(keyword, args, 1, 1)
		if err != nil {
			return nil, err
		}
		return MouseWheel{Value: int32(v[0])}, nil

	case "BEZIER_MOVE":
		if len(args) != 3 && len(args) != 7 {
			return nil, fmt.Errorf("%w: BEZIER_MOVE takes 3 or 7 arguments, got %d", ErrMalformedLine, len(args))
		}
		v, err := parseInts(keyword, args, 3, 7)
		if err != nil {
			return nil, err
		}
		d, err := toUint32(keyword, v[2])
		if err != nil {
			return nil, err
		}
		m := BezierMove{TargetX: int32(v[0]), TargetY: int32(v[1]), Duration: d}
		if len(v) == 7 {
			m.CtrlX1, m.CtrlY1 = int32(v[3]), int32(v[4])
			m.CtrlX2, m.CtrlY2 = int32(v[5]), int32(v[6])
		}
		return m, nil

	case "KEYBOARD_ALL":
		return parseKeyboard(args)

	case "REBOOT":
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: REBOOT takes no arguments", ErrMalformedLine)
		}
		return Reboot{}, nil
	}

	return nil, fmt.Errorf("%w: unknown keyword %q", ErrMalformedLine, fields[0])
}

var codeByName = func() map[string]Code {
	m := make(map[string]Code, len(codeNames))
	for code, name := range codeNames {
		m[name] = code
	}
	return m
}()

func parseInts(keyword string, args []string, lo, hi int) ([]int64, error) {
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformedLine, keyword, lo, len(args))
	}
	out := make([]int64, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrMalformedLine, keyword, i+1, err)
		}
		out[i] = n
	}
	// duration fields are unsigned, everything else must fit an int32
	for i, n := range out {
		if n < -1<<31 || n > 1<<32-1 || (i != 2 && n > 1<<31-1) {
			return nil, fmt.Errorf("%w: %s argument %d out of range", ErrMalformedLine, keyword, i+1)
		}
	}
	return out, nil
}

func toUint32(keyword string, n int64) (uint32, error) {
	if n < 0 || n > 1<<32-1 {
		return 0, fmt.Errorf("%w: %s duration out of range", ErrMalformedLine, keyword)
	}
	return uint32(n), nil
}

func parseKeyboard(args []string) (Command, error) {
	var k KeyboardAll
	if len(args) == 0 || !strings.HasPrefix(strings.ToUpper(args[0]), "CTRL:") {
		return nil, fmt.Errorf("%w: KEYBOARD_ALL needs CTRL:<value>", ErrMalformedLine)
	}
	ctrl, err := parseByte(args[0][len("CTRL:"):])
	if err != nil {
		return nil, err
	}
	k.Ctrl = ctrl

	rest := args[1:]
	if len(rest) == 0 {
		return k, nil
	}
	if !strings.HasPrefix(strings.ToUpper(rest[0]), "BUTTONS:") {
		return nil, fmt.Errorf("%w: KEYBOARD_ALL expected BUTTONS:", ErrMalformedLine)
	}
	rest[0] = rest[0][len("BUTTONS:"):]
	if rest[0] == "" {
		rest = rest[1:]
	}
	if len(rest) > KeyboardButtons {
		return nil, fmt.Errorf("%w: KEYBOARD_ALL takes at most %d buttons", ErrMalformedLine, KeyboardButtons)
	}
	for i, a := range rest {
		b, err := parseByte(a)
		if err != nil {
			return nil, err
		}
		k.Buttons[i] = b
	}
	return k, nil
}

func parseByte(s string) (uint8, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: byte value %q: %v", ErrMalformedLine, s, err)
	}
	return uint8(n), nil
}
