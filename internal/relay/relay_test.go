package relay

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmrelay/internal/metrics"
	"kmrelay/internal/protocol"
	"kmrelay/internal/serial"
)

var sender = &net.UDPAddr{IP: net.IPv4(192, 168, 2, 10), Port: 40000}

func packet(cmd protocol.Command) []byte {
	return protocol.Encode(protocol.Header{Mac: 0x00000001}, cmd)
}

func TestHandleForwardsOnce(t *testing.T) {
	rec := serial.NewRecorder()
	d := New(rec)

	require.NoError(t, d.Handle(packet(protocol.MouseMove{X: 100, Y: -50}), sender))
	assert.Equal(t, []string{"MOUSE_MOVE 100 -50\r\n"}, rec.Lines())
	assert.Equal(t, Stats{Received: 1, Forwarded: 1}, d.Stats())
}

func TestHandleRejections(t *testing.T) {
	unknown := protocol.Encode(protocol.Header{}, protocol.Reboot{})
	unknown[15] ^= 0xFF

	tests := []struct {
		name   string
		data   []byte
		src    net.Addr
		target error
		reason string
	}{
		{
			name:   "ipv6 sender",
			data:   packet(protocol.Reboot{}),
			src:    &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 1},
			target: protocol.ErrInvalidSource,
			reason: metrics.ReasonInvalidSource,
		},
		{
			name:   "incomplete header",
			data:   []byte{0xAE, 0xDE, 0x73},
			src:    sender,
			target: protocol.ErrTooShort,
			reason: metrics.ReasonTooShort,
		},
		{
			name:   "short payload",
			data:   packet(protocol.MouseMove{X: 1, Y: 2})[:protocol.HeaderSize+7],
			src:    sender,
			target: protocol.ErrTooShort,
			reason: metrics.ReasonTooShort,
		},
		{
			name:   "unknown command",
			data:   unknown,
			src:    sender,
			target: protocol.ErrUnknownCommand,
			reason: metrics.ReasonUnknownCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serial.NewRecorder()
			m := metrics.NewMetrics(prometheus.NewRegistry())
			var events []Event
			d := New(rec, WithMetrics(m), WithObserver(func(ev Event) { events = append(events, ev) }))

			err := d.Handle(tt.data, tt.src)
			require.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.reason, Reason(err))

			assert.Empty(t, rec.Lines(), "rejected packets must not reach the sink")
			assert.Equal(t, Stats{Received: 1, Rejected: 1}, d.Stats())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsRejected.WithLabelValues(tt.reason)))

			require.Len(t, events, 1)
			assert.ErrorIs(t, events[0].Err, tt.target)
			assert.Empty(t, events[0].Line)
		})
	}
}

func TestHandleContinuesAfterBadPacket(t *testing.T) {
	rec := serial.NewRecorder()
	d := New(rec)

	assert.Error(t, d.Handle([]byte{1, 2, 3}, sender))
	assert.NoError(t, d.Handle(packet(protocol.Reboot{}), sender))
	assert.Error(t, d.Handle(packet(protocol.MouseWheel{Value: 1})[:protocol.HeaderSize+2], sender))
	assert.NoError(t, d.Handle(packet(protocol.MouseWheel{Value: -1}), sender))

	assert.Equal(t, []string{"REBOOT\r\n", "MOUSE_WHEEL -1\r\n"}, rec.Lines())
	assert.Equal(t, Stats{Received: 4, Forwarded: 2, Rejected: 2}, d.Stats())
}

func TestHandleSinkError(t *testing.T) {
	rec := serial.NewRecorder()
	boom := errors.New("device unplugged")
	rec.FailWith(boom)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	d := New(rec, WithMetrics(m))

	err := d.Handle(packet(protocol.MouseButton{Button: protocol.CodeMouseLeft, State: 1}), sender)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors))
	assert.Equal(t, uint64(1), d.Stats().Rejected)
}

func TestPause(t *testing.T) {
	rec := serial.NewRecorder()
	d := New(rec)

	d.Pause(true)
	assert.True(t, d.Paused())
	assert.ErrorIs(t, d.Handle(packet(protocol.Reboot{}), sender), ErrPaused)
	assert.Empty(t, rec.Lines())

	d.Pause(false)
	assert.NoError(t, d.Handle(packet(protocol.Reboot{}), sender))
	assert.Equal(t, []string{"REBOOT\r\n"}, rec.Lines())
}

func TestObserverSeesDecodedFields(t *testing.T) {
	var got Event
	d := New(serial.NewRecorder(), WithObserver(func(ev Event) { got = ev }))

	bez := protocol.BezierMove{TargetX: 1, TargetY: 2, Duration: 3, CtrlX1: 4, CtrlY1: 5, CtrlX2: 6, CtrlY2: 7}
	require.NoError(t, d.Handle(packet(bez), sender))

	require.NotNil(t, got.Packet)
	assert.Equal(t, bez, got.Packet.Command)
	assert.Equal(t, "BEZIER_MOVE 1 2 3\r\n", got.Line)
	assert.Equal(t, sender.String(), got.Source)
}

func TestUnknownCommandLoggedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	d := New(serial.NewRecorder(), WithLogger(logger))

	data := packet(protocol.Reboot{})
	data[12], data[13], data[14], data[15] = 0x28, 0x28, 0x3C, 0xAF // CONNECT

	require.ErrorIs(t, d.Handle(data, sender), protocol.ErrUnknownCommand)
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "cmd=CONNECT")
}

func TestWithDecoderWiresConnect(t *testing.T) {
	dec := protocol.NewDecoder(protocol.WithCommand(protocol.Layout{
		Code:   protocol.CodeConnect,
		Decode: func([]byte) protocol.Command { return protocol.Reboot{} },
	}))
	rec := serial.NewRecorder()
	d := New(rec, WithDecoder(dec))

	data := packet(protocol.Reboot{})
	data[12], data[13], data[14], data[15] = 0x28, 0x28, 0x3C, 0xAF

	require.NoError(t, d.Handle(data, sender))
	assert.Equal(t, []string{"REBOOT\r\n"}, rec.Lines())
}
