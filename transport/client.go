package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Client is the single-peer driver role: one socket bound to an ephemeral
// port, fixed on one server address. Datagrams from any other source are
// discarded, and the first accepted, parseable datagram raises a one-time
// connected transition.
//
// Protocol-tag filtering happens centrally in the transport drain, so a
// foreign-tag datagram is discarded before the source-address check runs.
// Both drops are silent, so the outcome is the same regardless of order.
//
// Single-threaded by contract, like Server.
type Client struct {
	engine    ProtocolEngine
	transport *UDPTransport
	server    *Peer
	connected bool
}

// NewClient creates a client driver feeding the given engine.
func NewClient(engine ProtocolEngine) *Client {
	return &Client{
		engine:    engine,
		transport: NewUDPTransport(engine),
	}
}

// Start resolves the server's dotted-decimal host string, opens the socket
// on an OS-assigned local port, and records the fixed server address.
// Malformed host strings wrap ErrAddressResolution; socket failures wrap
// ErrSocketInit.
func (c *Client) Start(protocolTag uint32, host string, port uint16) error {
	addr, err := ResolveAddress(host, port)
	if err != nil {
		return newDriverError("start", host, err)
	}

	if err := c.transport.Start(protocolTag, 0); err != nil {
		return err
	}

	c.server = &Peer{ID: 0, Addr: addr}
	c.server.Data = c.engine.NewConnection(c.server.ID, c.server)
	c.connected = false

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"server":   addr.String(),
	}).Info("Client driver started")

	return nil
}

// Stop releases the socket.
func (c *Client) Stop() {
	c.transport.Stop()

	logrus.WithField("function", "Stop").Info("Client driver stopped")
}

// ServerPeer returns the fixed server connection record, or nil before Start.
func (c *Client) ServerPeer() *Peer {
	return c.server
}

// Connected reports whether the one-time connected transition has happened.
// It never reverts within a session.
func (c *Client) Connected() bool {
	return c.connected
}

// Poll drains and dispatches every pending datagram, with the same fatal
// error semantics as Server.Poll.
func (c *Client) Poll() error {
	return c.transport.Drain(c.dispatch)
}

// dispatch handles one tag-filtered datagram: drop anything not from the
// configured server, parse, and raise the connected transition ahead of the
// first packet event.
func (c *Client) dispatch(addr Address, data []byte) error {
	if addr != c.server.Addr {
		// Spoofed or misdirected traffic; never an error condition.
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"source":   addr.String(),
		}).Debug("Discarding datagram from unexpected source")
		return nil
	}

	packet, err := c.engine.ParsePacket(c.server, data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"error":    err.Error(),
		}).Debug("Dropping unparseable datagram")
		return nil
	}

	if !c.connected {
		// First accepted datagram from the server proves reachability.
		if err := c.engine.HandleEvent(Event{Kind: EventPeerConnected, Peer: c.server}); err != nil {
			return newDriverError("dispatch", addr.String(), fmt.Errorf("%w: %v", ErrFatal, err))
		}
		c.connected = true

		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"server":   addr.String(),
		}).Info("Connected to server")
	}

	if err := c.engine.HandleEvent(Event{Kind: EventPeerPacketReceived, Peer: c.server, Packet: packet}); err != nil {
		return newDriverError("dispatch", addr.String(), fmt.Errorf("%w: %v", ErrFatal, err))
	}

	return nil
}

// Send forwards one datagram to the fixed server address. Failures wrap
// ErrSend; the driver never retries.
func (c *Client) Send(data []byte) error {
	if c.server == nil {
		return newDriverError("send", "", ErrNotStarted)
	}
	return c.transport.SendTo(c.server.Addr, data)
}
