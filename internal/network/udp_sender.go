package network

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"kmrelay/internal/protocol"
)

// Client sends HID commands to a relay. Each packet carries the client's
// mac id, a random nonce and a monotonically increasing index.
type Client struct {
	conn  *net.UDPConn
	mac   uint32
	index uint32 // atomic
}

// ParseMac parses the hex device id printed on the controller, e.g. "24875054".
func ParseMac(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mac %q: %w", s, err)
	}
	return uint32(v), nil
}

// NewClient dials the relay at addr ("ip:port").
func NewClient(addr string, mac uint32) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, mac: mac}, nil
}

// Send encodes cmd and writes it as one datagram.
func (c *Client) Send(cmd protocol.Command) error {
	h := protocol.Header{
		Mac:   c.mac,
		Rand:  rand.Uint32(),
		Index: atomic.AddUint32(&c.index, 1),
	}
	_, err := c.conn.Write(protocol.Encode(h, cmd))
	return err
}

func (c *Client) Move(x, y int32) error {
	return c.Send(protocol.MouseMove{X: x, Y: y})
}

// AutoMove moves to x, y over ms milliseconds.
func (c *Client) AutoMove(x, y int32, ms uint32) error {
	return c.Send(protocol.AutoMove{X: x, Y: y, Duration: ms})
}

func (c *Client) Left(down bool) error {
	return c.Send(protocol.MouseButton{Button: protocol.CodeMouseLeft, State: state(down)})
}

func (c *Client) Middle(down bool) error {
	return c.Send(protocol.MouseButton{Button: protocol.CodeMouseMiddle, State: state(down)})
}

func (c *Client) Right(down bool) error {
	return c.Send(protocol.MouseButton{Button: protocol.CodeMouseRight, State: state(down)})
}

func (c *Client) Wheel(delta int32) error {
	return c.Send(protocol.MouseWheel{Value: delta})
}

// BezierMove moves to x, y over ms milliseconds along the curve given by
// the two control points.
func (c *Client) BezierMove(x, y int32, ms uint32, x1, y1, x2, y2 int32) error {
	return c.Send(protocol.BezierMove{
		TargetX: x, TargetY: y, Duration: ms,
		CtrlX1: x1, CtrlY1: y1, CtrlX2: x2, CtrlY2: y2,
	})
}

// Keyboard sends the full keyboard state. Keys beyond the tenth are ignored.
func (c *Client) Keyboard(ctrl uint8, keys ...uint8) error {
	k := protocol.KeyboardAll{Ctrl: ctrl}
	copy(k.Buttons[:], keys)
	return c.Send(k)
}

func (c *Client) Reboot() error {
	return c.Send(protocol.Reboot{})
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

func state(down bool) uint8 {
	if down {
		return 1
	}
	return 0
}
