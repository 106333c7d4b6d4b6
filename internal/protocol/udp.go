package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Code identifies the command carried by a datagram.
type Code uint32

// Command codes
const (
	CodeConnect     Code = 0x28283CAF
	CodeMouseMove   Code = 0xAEDE7345
	CodeAutoMove    Code = 0xAEDE7346
	CodeMouseLeft   Code = 0x9823AE8D
	CodeMouseMiddle Code = 0x97A3AE8D
	CodeMouseRight  Code = 0x238D8212
	CodeMouseWheel  Code = 0xFFEEAD38
	CodeBezierMove  Code = 0x5A4538A2
	CodeKeyboardAll Code = 0xABCD1234
	CodeReboot      Code = 0xAA8855AA
)

// Header: [mac(4)] [rand(4)] [index(4)] [cmd(4)] = 16 bytes
const HeaderSize = 16

// Payload sizes, header excluded.
//
//	MouseMove   : x(int32) + y(int32)                                  = 8
//	AutoMove    : x(int32) + y(int32) + duration(uint32)               = 12
//	MouseButton : state(uint8)                                         = 1
//	MouseWheel  : value(int32)                                         = 4
//	BezierMove  : tx, ty(int32) + duration(uint32) + 4 ctrl(int32)     = 28
//	KeyboardAll : ctrl(uint8) + buttons(10 x uint8)                    = 11
//	Reboot      : none                                                 = 0
const (
	MouseMoveSize   = 8
	AutoMoveSize    = 12
	MouseButtonSize = 1
	MouseWheelSize  = 4
	BezierMoveSize  = 28
	KeyboardAllSize = 11
	RebootSize      = 0

	KeyboardButtons = 10
)

var codeNames = map[Code]string{
	CodeConnect:     "CONNECT",
	CodeMouseMove:   "MOUSE_MOVE",
	CodeAutoMove:    "AUTO_MOVE",
	CodeMouseLeft:   "MOUSE_LEFT",
	CodeMouseMiddle: "MOUSE_MIDDLE",
	CodeMouseRight:  "MOUSE_RIGHT",
	CodeMouseWheel:  "MOUSE_WHEEL",
	CodeBezierMove:  "BEZIER_MOVE",
	CodeKeyboardAll: "KEYBOARD_ALL",
	CodeReboot:      "REBOOT",
}

// String returns the command keyword, or the hex value for unknown codes.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(c))
}

// Header is the common 16-byte prefix of every datagram.
type Header struct {
	Mac     uint32 // sender address identifier
	Rand    uint32 // nonce, not validated
	Index   uint32 // sender sequence index, not validated
	Command Code
}

// Command is a decoded HID command.
type Command interface {
	// Code returns the wire command code.
	Code() Code
	// Render returns the serial text line, CRLF terminated.
	Render() string
	// AppendPayload appends the network-order payload to b.
	AppendPayload(b []byte) []byte
}

// Packet is a fully decoded datagram.
type Packet struct {
	Header  Header
	Command Command
}

// MouseMove moves the cursor to X, Y.
type MouseMove struct {
	X, Y int32
}

func (MouseMove) Code() Code { return CodeMouseMove }

func (m MouseMove) Render() string {
	return line(CodeMouseMove, itoa(m.X), itoa(m.Y))
}

func (m MouseMove) AppendPayload(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(m.X))
	return binary.BigEndian.AppendUint32(b, uint32(m.Y))
}

// AutoMove moves the cursor to X, Y over Duration milliseconds.
type AutoMove struct {
	X, Y     int32
	Duration uint32
}

func (AutoMove) Code() Code { return CodeAutoMove }

func (m AutoMove) Render() string {
	return line(CodeAutoMove, itoa(m.X), itoa(m.Y), utoa(m.Duration))
}

func (m AutoMove) AppendPayload(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(m.X))
	b = binary.BigEndian.AppendUint32(b, uint32(m.Y))
	return binary.BigEndian.AppendUint32(b, m.Duration)
}

// MouseButton sets the state of the left, middle or right button.
type MouseButton struct {
	Button Code  // CodeMouseLeft, CodeMouseMiddle or CodeMouseRight
	State  uint8 // 0=up, 1=down
}

func (m MouseButton) Code() Code { return m.Button }

func (m MouseButton) Render() string {
	return line(m.Button, strconv.Itoa(int(m.State)))
}

func (m MouseButton) AppendPayload(b []byte) []byte {
	return append(b, m.State)
}

// MouseWheel scrolls by Value.
type MouseWheel struct {
	Value int32
}

func (MouseWheel) Code() Code { return CodeMouseWheel }

func (m MouseWheel) Render() string {
	return line(CodeMouseWheel, itoa(m.Value))
}

func (m MouseWheel) AppendPayload(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(m.Value))
}

// BezierMove is a curved timed move. The control points travel on the wire
// but the controller line only carries target and duration.
type BezierMove struct {
	TargetX, TargetY int32
	Duration         uint32
	CtrlX1, CtrlY1   int32
	CtrlX2, CtrlY2   int32
}

func (BezierMove) Code() Code { return CodeBezierMove }

func (m BezierMove) Render() string {
	return line(CodeBezierMove, itoa(m.TargetX), itoa(m.TargetY), utoa(m.Duration))
}

func (m BezierMove) AppendPayload(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(m.TargetX))
	b = binary.BigEndian.AppendUint32(b, uint32(m.TargetY))
	b = binary.BigEndian.AppendUint32(b, m.Duration)
	b = binary.BigEndian.AppendUint32(b, uint32(m.CtrlX1))
	b = binary.BigEndian.AppendUint32(b, uint32(m.CtrlY1))
	b = binary.BigEndian.AppendUint32(b, uint32(m.CtrlX2))
	return binary.BigEndian.AppendUint32(b, uint32(m.CtrlY2))
}

// KeyboardAll carries the modifier byte and up to ten pressed key codes.
type KeyboardAll struct {
	Ctrl    uint8
	Buttons [KeyboardButtons]uint8
}

func (KeyboardAll) Code() Code { return CodeKeyboardAll }

// Render writes each byte as "0x" followed by its decimal value, with a
// space after every button. The controller firmware parses exactly this.
func (k KeyboardAll) Render() string {
	var sb strings.Builder
	sb.WriteString("KEYBOARD_ALL CTRL:0x")
	sb.WriteString(strconv.Itoa(int(k.Ctrl)))
	sb.WriteString(" BUTTONS:")
	for _, b := range k.Buttons {
		sb.WriteString("0x")
		sb.WriteString(strconv.Itoa(int(b)))
		sb.WriteByte(' ')
	}
	sb.WriteString("\r\n")
	return sb.String()
}

func (k KeyboardAll) AppendPayload(b []byte) []byte {
	b = append(b, k.Ctrl)
	return append(b, k.Buttons[:]...)
}

// Reboot asks the controller to restart.
type Reboot struct{}

func (Reboot) Code() Code { return CodeReboot }

func (Reboot) Render() string { return line(CodeReboot) }

func (Reboot) AppendPayload(b []byte) []byte { return b }

// ParseHeader decodes the 16-byte header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, &TooShortError{Context: "header", Need: HeaderSize, Got: len(data)}
	}
	return Header{
		Mac:     beUint32(data, 0),
		Rand:    beUint32(data, 4),
		Index:   beUint32(data, 8),
		Command: Code(beUint32(data, 12)),
	}, nil
}

// Encode serializes a header and command to wire format. The header's
// Command field is overwritten with cmd.Code().
func Encode(h Header, cmd Command) []byte {
	buf := make([]byte, 0, HeaderSize+BezierMoveSize)
	buf = binary.BigEndian.AppendUint32(buf, h.Mac)
	buf = binary.BigEndian.AppendUint32(buf, h.Rand)
	buf = binary.BigEndian.AppendUint32(buf, h.Index)
	buf = binary.BigEndian.AppendUint32(buf, uint32(cmd.Code()))
	return cmd.AppendPayload(buf)
}

// beUint32 reads a big-endian uint32 at off. Callers check bounds first.
func beUint32(b []byte, off int) uint32 {
	return binary.BigEndian.Uint32(b[off : off+4])
}

func beInt32(b []byte, off int) int32 {
	return int32(beUint32(b, off))
}

func line(code Code, fields ...string) string {
	if len(fields) == 0 {
		return code.String() + "\r\n"
	}
	return code.String() + " " + strings.Join(fields, " ") + "\r\n"
}

func itoa(v int32) string  { return strconv.FormatInt(int64(v), 10) }
func utoa(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
