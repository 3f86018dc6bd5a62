package transport

import (
	"errors"
	"fmt"

	"github.com/opd-ai/udpdriver/limits"
)

// mockConn stands in for an engine-side connection object.
type mockConn struct {
	id uint32
}

// mockPacket is what the mock engine "parses" a datagram into: the payload
// after the protocol tag, copied out of the transport's receive buffer.
type mockPacket struct {
	payload []byte
}

// mockEngine implements ProtocolEngine for driver tests. It uses the
// standard header layout (4-byte big-endian tag at offset 0) and records
// every event it is handed.
type mockEngine struct {
	peerCount int
	events    []Event

	// parseErr, when set, makes every ParsePacket fail.
	parseErr error
	// failOn maps event kinds to HandleEvent failures.
	failOn map[EventKind]error
}

func newMockEngine() *mockEngine {
	return &mockEngine{failOn: make(map[EventKind]error)}
}

func (m *mockEngine) ReadProtocolTag(data []byte) (uint32, bool) {
	return limits.ReadTag(data)
}

func (m *mockEngine) NewConnection(id uint32, peer *Peer) any {
	return &mockConn{id: id}
}

func (m *mockEngine) ParsePacket(peer *Peer, data []byte) (any, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	if len(data) < limits.ProtocolTagSize {
		return nil, errors.New("datagram too short")
	}
	payload := make([]byte, len(data)-limits.ProtocolTagSize)
	copy(payload, data[limits.ProtocolTagSize:])
	return &mockPacket{payload: payload}, nil
}

func (m *mockEngine) PeerCount() int {
	return m.peerCount
}

func (m *mockEngine) HandleEvent(ev Event) error {
	if err := m.failOn[ev.Kind]; err != nil {
		return err
	}
	m.events = append(m.events, ev)
	if ev.Kind == EventPeerConnected {
		m.peerCount++
	}
	return nil
}

// eventKinds returns the recorded event kinds in order, for assertions.
func (m *mockEngine) eventKinds() []EventKind {
	kinds := make([]EventKind, len(m.events))
	for i, ev := range m.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// datagram builds a wire datagram with the standard tag header.
func datagram(tag uint32, payload string) []byte {
	buf := make([]byte, limits.ProtocolTagSize+len(payload))
	limits.PutTag(buf, tag)
	copy(buf[limits.ProtocolTagSize:], payload)
	return buf
}

// addr is shorthand for building table keys in tests.
func addr(host uint32, port uint16) Address {
	return Address{Host: host, Port: port}
}

// peerAt builds a peer record for table tests.
func peerAt(id uint32, a Address) *Peer {
	return &Peer{ID: id, Addr: a, Data: fmt.Sprintf("conn-%d", id)}
}
