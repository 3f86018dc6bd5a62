// Package transport implements a poll-driven UDP transport driver: one
// socket per driver instance, raw datagrams mapped to logical peer
// connections, and a connection table tracking every known peer.
//
// # Architecture
//
// The driver sits below a reliable-messaging protocol engine and above the
// OS socket. It owns exactly three concerns: socket lifecycle, peer
// bookkeeping, and protocol-tag filtering of foreign traffic. Everything
// else (framing, reliability, fragmentation, acknowledgment, liveness) is
// the engine's, reached through the ProtocolEngine interface:
//
//	type ProtocolEngine interface {
//	    ReadProtocolTag(data []byte) (uint32, bool)
//	    NewConnection(id uint32, peer *Peer) any
//	    ParsePacket(peer *Peer, data []byte) (any, error)
//	    PeerCount() int
//	    HandleEvent(ev Event) error
//	}
//
// # Driver Roles
//
// Server: many peers on one socket. Unseen source addresses become new peer
// records (subject to the admission limit) and raise EventPeerConnected
// before the first EventPeerPacketReceived:
//
//	srv := transport.NewServer(engine, 32)
//	if err := srv.Start(protocolTag, 7777); err != nil { ... }
//	for running {
//	    if err := srv.Poll(); err != nil { ... } // drains all pending datagrams
//	}
//
// Client: one fixed server address on an ephemeral local port. Traffic from
// any other source is discarded, and the first accepted, parseable datagram
// flips the one-way Disconnected -> Connected transition:
//
//	cli := transport.NewClient(engine)
//	if err := cli.Start(protocolTag, "203.0.113.7", 7777); err != nil { ... }
//
// # Connection Table
//
// Peers are tracked in an open-addressing hash table with quadratic probing
// (hash = host XOR port), growing by doubling whenever the load factor
// reaches 0.75 after an insert. See ConnectionTable for the probing and
// ownership contract.
//
// # Concurrency
//
// Everything is single-threaded and poll-driven. Socket I/O happens
// synchronously on the goroutine calling Poll; each receive is bounded by a
// short deadline so an empty queue ends the drain instead of blocking. No
// driver instance may be shared across goroutines without external
// synchronization.
//
// # Error Handling
//
// Failures surface as explicit error returns wrapped with context via
// fmt.Errorf and logged with structured fields via logrus.WithFields.
// Sentinel errors cover the failure modes callers dispatch on:
//
//	var (
//	    ErrSocketInit        // socket creation/configuration/bind failed
//	    ErrAddressResolution // malformed dotted-decimal host string
//	    ErrSend              // one send attempt failed, no retry
//	    ErrFatal             // event sink failed, poll cycle aborted
//	)
//
// Foreign-tag traffic, spoofed client traffic, unparseable datagrams, and
// admission-control drops are silent: they are filtering policy, not errors.
package transport
