// Package relay sequences source validation, decoding and the sink write
// for each datagram. A rejected packet is logged, counted and dropped; it
// never affects the packets that follow.
package relay

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"kmrelay/internal/metrics"
	"kmrelay/internal/protocol"
	"kmrelay/internal/serial"
)

// ErrPaused is returned for valid packets dropped while forwarding is paused
var ErrPaused = errors.New("forwarding paused")

// Event describes what happened to one datagram.
type Event struct {
	Time   time.Time
	Source string
	Packet *protocol.Packet // nil when the packet was rejected before decoding finished
	Line   string           // set when the line reached the sink
	Err    error
}

// Stats are the dispatcher counters since start.
type Stats struct {
	Received  uint64
	Forwarded uint64
	Rejected  uint64
}

// Dispatcher forwards decoded commands to a sink.
type Dispatcher struct {
	decoder  *protocol.Decoder
	sink     serial.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	observer func(Event)

	paused    atomic.Bool
	received  atomic.Uint64
	forwarded atomic.Uint64
	rejected  atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDecoder replaces the default decoder, e.g. to wire extra commands.
func WithDecoder(dec *protocol.Decoder) Option {
	return func(d *Dispatcher) {
		if dec != nil {
			d.decoder = dec
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithObserver registers fn to be called synchronously after every packet.
// fn must not block.
func WithObserver(fn func(Event)) Option {
	return func(d *Dispatcher) {
		d.observer = fn
	}
}

// New creates a dispatcher writing to sink.
func New(sink serial.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		decoder: protocol.NewDecoder(),
		sink:    sink,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one datagram from src. The returned error is
// informational: callers keep receiving regardless.
func (d *Dispatcher) Handle(data []byte, src net.Addr) error {
	d.received.Add(1)
	if d.metrics != nil {
		d.metrics.PacketsReceived.Inc()
	}

	source := ""
	if src != nil {
		source = src.String()
	}

	if err := protocol.ValidateSource(src); err != nil {
		return d.reject(source, len(data), nil, err)
	}

	start := time.Now()
	pkt, err := d.decoder.Decode(data)
	if d.metrics != nil {
		d.metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return d.reject(source, len(data), nil, err)
	}

	d.logger.Debug("Received command",
		slog.String("cmd", pkt.Header.Command.String()),
		slog.String("mac", fmt.Sprintf("0x%08X", pkt.Header.Mac)),
		slog.Uint64("index", uint64(pkt.Header.Index)),
		slog.String("source", source),
	)

	if d.paused.Load() {
		return d.reject(source, len(data), pkt, ErrPaused)
	}

	line := pkt.Command.Render()
	if err := d.sink.Write(line); err != nil {
		d.rejected.Add(1)
		if d.metrics != nil {
			d.metrics.SinkErrors.Inc()
		}
		d.logger.Error("Sink write failed",
			slog.String("cmd", pkt.Header.Command.String()),
			slog.String("error", err.Error()),
		)
		err = fmt.Errorf("sink write: %w", err)
		d.notify(Event{Time: time.Now(), Source: source, Packet: pkt, Err: err})
		return err
	}

	d.forwarded.Add(1)
	if d.metrics != nil {
		d.metrics.PacketsForwarded.Inc()
		d.metrics.CommandsForwarded.WithLabelValues(pkt.Header.Command.String()).Inc()
	}
	d.notify(Event{Time: time.Now(), Source: source, Packet: pkt, Line: line})
	return nil
}

func (d *Dispatcher) reject(source string, size int, pkt *protocol.Packet, err error) error {
	d.rejected.Add(1)
	reason := Reason(err)
	if d.metrics != nil {
		d.metrics.PacketsRejected.WithLabelValues(reason).Inc()
	}

	attrs := []any{
		slog.String("source", source),
		slog.Int("length", size),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	}

	var unknown *protocol.UnknownCommandError
	switch {
	case errors.As(err, &unknown):
		// newer senders may use codes this build does not know
		d.logger.Info("Dropped unknown command", append(attrs, slog.String("cmd", unknown.Code.String()))...)
	case errors.Is(err, ErrPaused):
		d.logger.Debug("Dropped command while paused", attrs...)
	default:
		d.logger.Warn("Dropped packet", attrs...)
	}

	d.notify(Event{Time: time.Now(), Source: source, Packet: pkt, Err: err})
	return err
}

func (d *Dispatcher) notify(ev Event) {
	if d.observer != nil {
		d.observer(ev)
	}
}

// Reason maps a Handle error to its metrics label.
func Reason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrInvalidSource):
		return metrics.ReasonInvalidSource
	case errors.Is(err, protocol.ErrTooShort):
		return metrics.ReasonTooShort
	case errors.Is(err, protocol.ErrUnknownCommand):
		return metrics.ReasonUnknownCommand
	case errors.Is(err, ErrPaused):
		return metrics.ReasonPaused
	default:
		return metrics.ReasonOther
	}
}

// Pause stops or resumes forwarding. Packets are still decoded and counted.
func (d *Dispatcher) Pause(paused bool) {
	if d.paused.Swap(paused) != paused {
		d.logger.Info("Forwarding state changed", slog.Bool("paused", paused))
	}
}

// Paused reports whether forwarding is paused.
func (d *Dispatcher) Paused() bool {
	return d.paused.Load()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:  d.received.Load(),
		Forwarded: d.forwarded.Load(),
		Rejected:  d.rejected.Load(),
	}
}
