package protocol

import (
	"fmt"
	"net"
)

// Layout describes the payload of one command code. Decode is only called
// with a payload of exactly Size bytes.
type Layout struct {
	Code   Code
	Name   string
	Size   int
	Decode func(payload []byte) Command
}

// Decoder maps command codes to layouts. It holds no per-packet state and
// is safe for concurrent use once built.
type Decoder struct {
	layouts map[Code]Layout
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithCommand registers or replaces the layout for l.Code. It is how an
// integrator wires codes that have no default handler, such as CONNECT.
func WithCommand(l Layout) Option {
	return func(d *Decoder) {
		if l.Name == "" {
			l.Name = l.Code.String()
		}
		d.layouts[l.Code] = l
	}
}

// NewDecoder creates a decoder with the default command table.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{layouts: make(map[Code]Layout)}
	for _, l := range DefaultLayouts() {
		d.layouts[l.Code] = l
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefaultLayouts returns the built-in command table. CONNECT is not part of it.
func DefaultLayouts() []Layout {
	return []Layout{
		{Code: CodeMouseMove, Name: "MOUSE_MOVE", Size: MouseMoveSize, Decode: decodeMouseMove},
		{Code: CodeAutoMove, Name: "AUTO_MOVE", Size: AutoMoveSize, Decode: decodeAutoMove},
		{Code: CodeMouseLeft, Name: "MOUSE_LEFT", Size: MouseButtonSize, Decode: buttonDecoder(CodeMouseLeft)},
		{Code: CodeMouseMiddle, Name: "MOUSE_MIDDLE", Size: MouseButtonSize, Decode: buttonDecoder(CodeMouseMiddle)},
		{Code: CodeMouseRight, Name: "MOUSE_RIGHT", Size: MouseButtonSize, Decode: buttonDecoder(CodeMouseRight)},
		{Code: CodeMouseWheel, Name: "MOUSE_WHEEL", Size: MouseWheelSize, Decode: decodeMouseWheel},
		{Code: CodeBezierMove, Name: "BEZIER_MOVE", Size: BezierMoveSize, Decode: decodeBezierMove},
		{Code: CodeKeyboardAll, Name: "KEYBOARD_ALL", Size: KeyboardAllSize, Decode: decodeKeyboardAll},
		{Code: CodeReboot, Name: "REBOOT", Size: RebootSize, Decode: func([]byte) Command { return Reboot{} }},
	}
}

// Layout returns the layout registered for code.
func (d *Decoder) Layout(code Code) (Layout, bool) {
	l, ok := d.layouts[code]
	return l, ok
}

// Decode validates data against the header and the command layout and
// extracts the command. Nothing is returned on failure.
func (d *Decoder) Decode(data []byte) (*Packet, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	l, ok := d.layouts[header.Command]
	if !ok {
		return nil, &UnknownCommandError{Code: header.Command}
	}

	required := HeaderSize + l.Size
	if len(data) < required {
		return nil, &TooShortError{Context: l.Name, Need: required, Got: len(data)}
	}

	return &Packet{
		Header:  header,
		Command: l.Decode(data[HeaderSize:required]),
	}, nil
}

// Translate decodes data and returns the rendered controller line.
func (d *Decoder) Translate(data []byte) (string, error) {
	pkt, err := d.Decode(data)
	if err != nil {
		return "", err
	}
	return pkt.Command.Render(), nil
}

// ValidateSource accepts only IPv4 UDP senders. IPv4-mapped IPv6 addresses
// from dual-stack sockets count as IPv4.
func ValidateSource(addr net.Addr) error {
	udp, ok := addr.(*net.UDPAddr)
	if !ok || udp == nil || udp.IP.To4() == nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, addr)
	}
	return nil
}

func decodeMouseMove(p []byte) Command {
	return MouseMove{X: beInt32(p, 0), Y: beInt32(p, 4)}
}

func decodeAutoMove(p []byte) Command {
	return AutoMove{X: beInt32(p, 0), Y: beInt32(p, 4), Duration: beUint32(p, 8)}
}

func buttonDecoder(button Code) func([]byte) Command {
	return func(p []byte) Command {
		return MouseButton{Button: button, State: p[0]}
	}
}

func decodeMouseWheel(p []byte) Command {
	return MouseWheel{Value: beInt32(p, 0)}
}

func decodeBezierMove(p []byte) Command {
	return BezierMove{
		TargetX:  beInt32(p, 0),
		TargetY:  beInt32(p, 4),
		Duration: beUint32(p, 8),
		CtrlX1:   beInt32(p, 12),
		CtrlY1:   beInt32(p, 16),
		CtrlX2:   beInt32(p, 20),
		CtrlY2:   beInt32(p, 24),
	}
}

func decodeKeyboardAll(p []byte) Command {
	k := KeyboardAll{Ctrl: p[0]}
	copy(k.Buttons[:], p[1:1+KeyboardButtons])
	return k
}
