package transport

import "fmt"

// Peer is the driver-side record for one logical connection. It is created
// when a peer is first seen (server) or at startup (client), owned by the
// driver's connection table while resident, and handed back to the caller on
// removal so engine-side resources can be released exactly once.
type Peer struct {
	// ID is assigned at creation, monotonically increasing, never reused.
	ID uint32

	// Addr is the peer's endpoint. Immutable for the lifetime of the record.
	Addr Address

	// Data is the protocol engine's opaque per-connection object, as
	// returned by ProtocolEngine.NewConnection. The driver never inspects it.
	Data any
}

// EventKind identifies a driver event delivered to the protocol engine.
type EventKind uint8

const (
	// EventPeerConnected is raised once per peer, before any packet event
	// for that peer.
	EventPeerConnected EventKind = iota

	// EventPeerPacketReceived carries a parsed packet from a known peer.
	EventPeerPacketReceived

	// EventPeerDisconnectRequested is reserved for transports that can
	// observe an explicit peer teardown. The UDP driver never emits it;
	// peer liveness is the engine's responsibility.
	EventPeerDisconnectRequested
)

// String returns a human-readable representation of the EventKind.
func (k EventKind) String() string {
	switch k {
	case EventPeerConnected:
		return "PeerConnected"
	case EventPeerPacketReceived:
		return "PeerPacketReceived"
	case EventPeerDisconnectRequested:
		return "PeerDisconnectRequested"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// Event is delivered to the protocol engine's event sink during a poll cycle.
type Event struct {
	Kind EventKind

	// Peer is the resolved connection record the event concerns.
	Peer *Peer

	// Packet is the engine's parsed packet for EventPeerPacketReceived,
	// nil otherwise.
	Packet any
}

// ProtocolEngine is the external reliable-messaging engine the driver feeds.
// The driver owns sockets and peer bookkeeping; the engine owns packet
// framing, reliability, and all policy above raw datagrams.
//
// All methods are invoked synchronously from the goroutine calling Poll.
type ProtocolEngine interface {
	// ReadProtocolTag extracts the protocol tag from the head of a raw
	// datagram, before full parsing. It returns false when the datagram is
	// too short to carry a tag; such datagrams are silently discarded.
	ReadProtocolTag(data []byte) (uint32, bool)

	// NewConnection builds the engine-side connection object for a newly
	// admitted peer. The returned value is stored in Peer.Data.
	NewConnection(id uint32, peer *Peer) any

	// ParsePacket parses one raw datagram in the context of a peer. A
	// non-nil error is not fatal: the datagram is silently dropped.
	ParsePacket(peer *Peer, data []byte) (any, error)

	// PeerCount reports the engine's current peer count, consulted for
	// admission control against the server's maximum.
	PeerCount() int

	// HandleEvent delivers a driver event. A non-nil error is fatal to the
	// current poll cycle: the drain is aborted and the error surfaces from
	// Poll wrapped in ErrFatal.
	HandleEvent(ev Event) error
}
