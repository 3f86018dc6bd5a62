package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Server is the many-peers driver role: one socket shared by every peer,
// with a connection table mapping source addresses to peer records and an
// admission limit protecting against unbounded peer growth.
//
// Single-threaded by contract: Start, Poll, Send, RemovePeer, and Stop must
// all be called from the same goroutine (or under external synchronization).
type Server struct {
	engine    ProtocolEngine
	transport *UDPTransport
	table     *ConnectionTable
	maxPeers  int
	nextID    uint32
}

// NewServer creates a server driver feeding the given engine. maxPeers is
// the admission-control limit: datagrams from unseen addresses are dropped
// once the engine reports that many peers.
func NewServer(engine ProtocolEngine, maxPeers int) *Server {
	return &Server{
		engine:    engine,
		transport: NewUDPTransport(engine),
		maxPeers:  maxPeers,
	}
}

// Start binds the shared socket to port and prepares the connection table.
// Failures wrap ErrSocketInit.
func (s *Server) Start(protocolTag uint32, port uint16) error {
	s.table = NewConnectionTable()

	if err := s.transport.Start(protocolTag, port); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Start",
		"port":      port,
		"max_peers": s.maxPeers,
	}).Info("Server driver started")

	return nil
}

// Stop releases the socket. Peer records still in the table are dropped with
// it; the engine is expected to have torn down its side already.
func (s *Server) Stop() {
	s.transport.Stop()

	logrus.WithField("function", "Stop").Info("Server driver stopped")
}

// LocalAddr returns the bound local address, or nil before Start.
func (s *Server) LocalAddr() Address {
	udpAddr := s.transport.LocalAddr()
	if udpAddr == nil {
		return Address{}
	}
	addr, _ := AddressFromUDPAddr(udpAddr)
	return addr
}

// Poll drains and dispatches every pending datagram. It returns nil when the
// socket has no more pending datagrams, or an error wrapping ErrFatal when
// either the socket failed or the engine's event sink reported a fatal
// error; in both cases the remainder of the drain cycle is abandoned.
func (s *Server) Poll() error {
	return s.transport.Drain(s.dispatch)
}

// dispatch handles one tag-filtered datagram: resolve the source address to
// a peer record (creating one if the admission limit allows), parse, and
// raise events.
func (s *Server) dispatch(addr Address, data []byte) error {
	peer, ok := s.table.Lookup(addr)
	if !ok {
		if s.engine.PeerCount() >= s.maxPeers {
			// Admission control: deliberate backpressure, not an error.
			logrus.WithFields(logrus.Fields{
				"function": "dispatch",
				"source":   addr.String(),
			}).Debug("Dropping datagram from unseen address, peer limit reached")
			return nil
		}

		peer = &Peer{ID: s.nextID, Addr: addr}
		s.nextID++
		peer.Data = s.engine.NewConnection(peer.ID, peer)
		s.table.Insert(peer)

		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"peer_id":  peer.ID,
			"source":   addr.String(),
		}).Debug("New peer connection")

		if err := s.engine.HandleEvent(Event{Kind: EventPeerConnected, Peer: peer}); err != nil {
			return newDriverError("dispatch", addr.String(), fmt.Errorf("%w: %v", ErrFatal, err))
		}
	}

	packet, err := s.engine.ParsePacket(peer, data)
	if err != nil {
		// Not a valid packet for this protocol; drop it silently.
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"peer_id":  peer.ID,
			"error":    err.Error(),
		}).Debug("Dropping unparseable datagram")
		return nil
	}

	if err := s.engine.HandleEvent(Event{Kind: EventPeerPacketReceived, Peer: peer, Packet: packet}); err != nil {
		return newDriverError("dispatch", addr.String(), fmt.Errorf("%w: %v", ErrFatal, err))
	}

	return nil
}

// Send forwards one datagram to the peer's stored address. Failures wrap
// ErrSend and are non-fatal to the driver; retry policy is the caller's.
func (s *Server) Send(peer *Peer, data []byte) error {
	return s.transport.SendTo(peer.Addr, data)
}

// Broadcast sends one datagram to every peer currently in the table. It
// keeps going past per-peer send failures and returns the first one
// encountered, wrapping ErrSend.
func (s *Server) Broadcast(data []byte) error {
	var firstErr error
	s.table.Each(func(peer *Peer) bool {
		if err := s.transport.SendTo(peer.Addr, data); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Broadcast",
				"peer_id":  peer.ID,
				"error":    err.Error(),
			}).Warn("Broadcast send failed for peer")
			if firstErr == nil {
				firstErr = err
			}
		}
		return true
	})
	return firstErr
}

// RemovePeer removes the peer's record from the connection table. It must be
// called exactly once per peer, when the engine signals that peer's
// disconnection. The record is dropped; any engine-side state in Peer.Data
// is the engine's to release.
func (s *Server) RemovePeer(peer *Peer) {
	removed, ok := s.table.Remove(peer.Addr)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "RemovePeer",
			"peer_id":  peer.ID,
			"source":   peer.Addr.String(),
		}).Warn("Remove of unknown peer ignored")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "RemovePeer",
		"peer_id":  removed.ID,
		"source":   removed.Addr.String(),
	}).Debug("Destroyed peer connection")
}

// PeerCount returns the number of peers currently tracked by the table.
func (s *Server) PeerCount() int {
	if s.table == nil {
		return 0
	}
	return s.table.Count()
}
