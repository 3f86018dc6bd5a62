package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/udpdriver/limits"
)

const (
	// socketBufferSize is requested for both the kernel receive and send
	// buffers so short dispatch stalls do not drop datagrams.
	socketBufferSize = 1 << 20

	// drainReadTimeout bounds each receive attempt during a drain. A read
	// that finds no pending datagram within this window is treated as
	// "would block" and ends the drain.
	drainReadTimeout = time.Millisecond
)

// UDPTransport owns one UDP socket for the lifetime of a Start/Stop cycle.
// It binds, sends, and drains all pending datagrams per poll, filtering out
// datagrams whose protocol tag does not match the configured tag. It carries
// no peer state; connection bookkeeping belongs to the drivers composing it.
//
// The transport is not safe for concurrent use: it is owned by exactly one
// driver instance and all I/O happens on the goroutine calling Drain.
type UDPTransport struct {
	conn        *net.UDPConn
	engine      ProtocolEngine
	protocolTag uint32
	buf         []byte
}

// NewUDPTransport creates a transport that consults engine for protocol tag
// reading. The socket is not opened until Start.
func NewUDPTransport(engine ProtocolEngine) *UDPTransport {
	return &UDPTransport{engine: engine}
}

// Start creates the UDP socket, applies platform socket options, and binds
// it to port (0 lets the OS choose an ephemeral port). Failures wrap
// ErrSocketInit; the caller must not proceed to Drain or SendTo.
func (t *UDPTransport) Start(protocolTag uint32, port uint16) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return newDriverError("bind", "", fmt.Errorf("%w: %v", ErrSocketInit, err))
	}

	if err := setSocketBuffers(conn, socketBufferSize); err != nil {
		conn.Close()
		return newDriverError("setsockopt", "", fmt.Errorf("%w: %v", ErrSocketInit, err))
	}

	t.conn = conn
	t.protocolTag = protocolTag
	t.buf = make([]byte, limits.MaxDatagramSize)

	logrus.WithFields(logrus.Fields{
		"function":     "Start",
		"local_addr":   conn.LocalAddr().String(),
		"protocol_tag": protocolTag,
	}).Info("UDP transport started")

	return nil
}

// Stop releases the socket. The transport must not be used again after Stop,
// and Stop must not be called twice.
func (t *UDPTransport) Stop() {
	if t.conn == nil {
		return
	}

	if err := t.conn.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stop",
			"error":    err.Error(),
		}).Warn("Failed to close UDP socket")
	}
	t.conn = nil
}

// LocalAddr returns the bound local address, or nil before Start.
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	if t.conn == nil {
		return nil
	}
	addr, _ := t.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Drain receives every pending datagram and hands each one that passes the
// protocol tag check to fn, until a receive would block. Datagrams from
// non-IPv4 sources, datagrams too short to carry a tag, and datagrams whose
// tag does not match the configured tag are silently discarded before fn is
// invoked. A non-nil error from fn aborts the drain and is returned as-is;
// any receive failure other than "would block" is fatal and wraps ErrFatal.
//
// The byte slice passed to fn aliases the transport's receive buffer and is
// only valid for the duration of the call.
func (t *UDPTransport) Drain(fn func(Address, []byte) error) error {
	if t.conn == nil {
		return newDriverError("drain", "", ErrNotStarted)
	}

	for {
		// Bound each receive so an empty queue ends the drain instead of
		// blocking the poll loop.
		_ = t.conn.SetReadDeadline(time.Now().Add(drainReadTimeout))

		n, src, err := t.conn.ReadFromUDP(t.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil // drained: no more pending datagrams
			}
			return newDriverError("drain", "", fmt.Errorf("%w: %v", ErrFatal, err))
		}

		addr, ok := AddressFromUDPAddr(src)
		if !ok {
			continue
		}

		tag, ok := t.engine.ReadProtocolTag(t.buf[:n])
		if !ok || tag != t.protocolTag {
			logrus.WithFields(logrus.Fields{
				"function": "Drain",
				"source":   addr.String(),
				"tag":      tag,
			}).Debug("Discarding datagram with foreign protocol tag")
			continue
		}

		if err := fn(addr, t.buf[:n]); err != nil {
			return err
		}
	}
}

// SendTo performs one send to the given address. There is no retry: a
// failure (including a partial send) wraps ErrSend and retry policy belongs
// to the protocol engine.
func (t *UDPTransport) SendTo(addr Address, data []byte) error {
	if t.conn == nil {
		return newDriverError("send", addr.String(), ErrNotStarted)
	}
	if err := limits.ValidateDatagramSize(data); err != nil {
		return newDriverError("send", addr.String(), fmt.Errorf("%w: %w", ErrSend, err))
	}

	n, err := t.conn.WriteToUDP(data, addr.UDPAddr())
	if err != nil {
		return newDriverError("send", addr.String(), fmt.Errorf("%w: %v", ErrSend, err))
	}
	if n != len(data) {
		return newDriverError("send", addr.String(),
			fmt.Errorf("%w: short write of %d/%d bytes", ErrSend, n, len(data)))
	}

	return nil
}
