package sensor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Listener constants.
const (
	// DefaultBroadcastPort is the UDP port devices announce themselves on.
	DefaultBroadcastPort = 6667

	// maxDatagramSize is large enough for any discovery broadcast.
	maxDatagramSize = 4096

	// readPollInterval bounds how long a read blocks before checking for shutdown.
	readPollInterval = time.Second
)

// Event is one broadcast received from the configured device.
// The payload content is not interpreted; only its arrival matters.
type Event struct {
	ID         string
	Source     net.IP
	Payload    []byte
	ReceivedAt time.Time
}

// Listener receives broadcast datagrams and keeps the ones sent by the
// configured device address.
//
// The socket is bound once by NewListener and reused by every Run call, so
// Run may be restarted after it returns. Close releases the socket.
type Listener struct {
	conn     net.PacketConn
	deviceIP net.IP
	logger   Logger

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewListener binds a UDP socket on addr (for example ":6667").
//
// Returns an error wrapping ErrSocketBind if the port cannot be bound.
func NewListener(addr string, deviceIP net.IP, logger Logger) (*Listener, error) {
	if deviceIP == nil {
		return nil, fmt.Errorf("%w: device address is required", ErrInvalidOptions)
	}

	conn, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSocketBind, addr, err)
	}

	return &Listener{
		conn:     conn,
		deviceIP: deviceIP,
		logger:   orNop(logger),
	}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run receives datagrams until ctx is cancelled or the listener is closed,
// calling handle for each datagram from the device, in arrival order.
// handle runs on the receiving goroutine; datagrams that arrive while it
// runs are queued by the socket.
//
// Returns nil on shutdown and an error only for unexpected socket failures.
func (l *Listener) Run(ctx context.Context, handle func(Event)) error {
	buf := make([]byte, maxDatagramSize)

	for {
		if ctx.Err() != nil || l.closed.Load() {
			return nil
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(readPollInterval)); err != nil {
			if l.isClosed(err) {
				return nil
			}
			return fmt.Errorf("setting read deadline: %w", err)
		}

		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if l.isClosed(err) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("receiving broadcast: %w", err)
		}

		src := sourceIP(addr)
		if !src.Equal(l.deviceIP) {
			l.logger.Debug("ignoring broadcast from other host",
				"source", addr.String(),
				"size", n,
			)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		handle(Event{
			ID:         uuid.NewString(),
			Source:     src,
			Payload:    payload,
			ReceivedAt: time.Now().UTC(),
		})
	}
}

// Close releases the socket. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		err = l.conn.Close()
	})
	return err
}

func (l *Listener) isClosed(err error) bool {
	return l.closed.Load() || errors.Is(err, net.ErrClosed)
}

// sourceIP extracts the sender address of a datagram.
func sourceIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil
		}
		return net.ParseIP(host)
	}
}
