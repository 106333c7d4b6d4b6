package network

import (
	"errors"
	"log/slog"
	"net"
	"sync"
)

// DefaultBufferSize matches the largest datagram the relay expects plenty of
// headroom for; longer datagrams are truncated by the kernel.
const DefaultBufferSize = 1024

// Handler consumes one datagram. Returned errors are diagnostics only.
type Handler interface {
	Handle(data []byte, src net.Addr) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(data []byte, src net.Addr) error

func (f HandlerFunc) Handle(data []byte, src net.Addr) error { return f(data, src) }

// UDPReceiver is the relay-side UDP listener. It reads one datagram at a
// time and calls the handler before reading the next, so the handler never
// runs concurrently with itself.
type UDPReceiver struct {
	addr    string
	bufSize int
	handler Handler
	logger  *slog.Logger

	conn *net.UDPConn
	done chan struct{}
	wg   sync.WaitGroup
}

// NewUDPReceiver creates a receiver for addr ("host:port").
func NewUDPReceiver(addr string, bufSize int, handler Handler, logger *slog.Logger) *UDPReceiver {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UDPReceiver{
		addr:    addr,
		bufSize: bufSize,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start binds the socket and begins receiving in the background.
func (r *UDPReceiver) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	r.conn = conn

	r.logger.Info("UDP receiver listening",
		slog.String("address", conn.LocalAddr().String()),
		slog.Int("buffer_size", r.bufSize),
	)

	r.wg.Add(1)
	go r.readLoop()
	return nil
}

// LocalAddr returns the bound address, or nil before Start.
func (r *UDPReceiver) LocalAddr() net.Addr {
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// readLoop reads and dispatches incoming datagrams.
func (r *UDPReceiver) readLoop() {
	defer r.wg.Done()

	buf := make([]byte, r.bufSize)
	for {
		n, remoteAddr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("UDP read failed", slog.String("error", err.Error()))
			continue
		}

		// A bad packet only affects itself.
		_ = r.handler.Handle(buf[:n], remoteAddr)
	}
}

// Stop closes the socket and waits for the read loop to exit.
func (r *UDPReceiver) Stop() {
	close(r.done)
	if r.conn != nil {
		r.conn.Close()
	}
	r.wg.Wait()
	r.logger.Info("UDP receiver stopped")
}
