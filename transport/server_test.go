package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer binds a server driver to an ephemeral loopback port and
// returns it with its engine and dialable port.
func startTestServer(t *testing.T, engine *mockEngine, maxPeers int) (*Server, uint16) {
	t.Helper()

	srv := NewServer(engine, maxPeers)
	require.NoError(t, srv.Start(testTag, 0))
	t.Cleanup(srv.Stop)

	return srv, uint16(srv.transport.LocalAddr().Port)
}

// dialServer opens a plain UDP socket aimed at the server, standing in for
// a remote peer.
func dialServer(t *testing.T, port uint16) *net.UDPConn {
	t.Helper()

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

// pollUntil polls the driver until cond holds or the deadline passes,
// failing the test on a fatal poll error.
func pollUntil(t *testing.T, poll func() error, cond func() bool) {
	t.Helper()

	var pollErr error
	require.Eventually(t, func() bool {
		pollErr = poll()
		return pollErr != nil || cond()
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, pollErr)
}

// TestServerNewPeerEventOrdering verifies that a valid datagram from an
// unseen address creates exactly one peer record and raises PeerConnected
// before PeerPacketReceived for that same datagram.
func TestServerNewPeerEventOrdering(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "hello"))
	require.NoError(t, err)

	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 2 })

	require.Equal(t, []EventKind{EventPeerConnected, EventPeerPacketReceived}, engine.eventKinds())
	assert.Equal(t, 1, srv.PeerCount())

	connected := engine.events[0]
	received := engine.events[1]
	assert.Same(t, connected.Peer, received.Peer, "both events must carry the same record")
	assert.Equal(t, uint32(0), connected.Peer.ID)
	assert.IsType(t, &mockConn{}, connected.Peer.Data)
	assert.Equal(t, "hello", string(received.Packet.(*mockPacket).payload))
}

// TestServerReusesPeerRecord verifies a second datagram from a known address
// dispatches without creating a record or re-raising PeerConnected.
func TestServerReusesPeerRecord(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "one"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 2 })

	_, err = peerSock.Write(datagram(testTag, "two"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 3 })

	assert.Equal(t, []EventKind{EventPeerConnected, EventPeerPacketReceived, EventPeerPacketReceived},
		engine.eventKinds())
	assert.Equal(t, 1, srv.PeerCount())
}

// TestServerAssignsSequentialIDs verifies each new peer gets the next
// monotonically increasing id.
func TestServerAssignsSequentialIDs(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	first := dialServer(t, port)
	second := dialServer(t, port)

	_, err := first.Write(datagram(testTag, "a"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 2 })

	_, err = second.Write(datagram(testTag, "b"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 4 })

	assert.Equal(t, 2, srv.PeerCount())
	assert.Equal(t, uint32(0), engine.events[0].Peer.ID)
	assert.Equal(t, uint32(1), engine.events[2].Peer.ID)
	assert.NotEqual(t, engine.events[0].Peer.Addr, engine.events[2].Peer.Addr)
}

// TestServerAdmissionControl verifies that when the engine already reports
// the maximum peer count, a datagram from an unseen address produces no new
// record and no events.
func TestServerAdmissionControl(t *testing.T) {
	engine := newMockEngine()
	engine.peerCount = 2 // engine already at the limit
	srv, port := startTestServer(t, engine, 2)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "full"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, srv.Poll())

	assert.Empty(t, engine.events)
	assert.Equal(t, 0, srv.PeerCount())
}

// TestServerDropsForeignTag verifies a tag-mismatched datagram never reaches
// parse or event dispatch, and creates no peer record.
func TestServerDropsForeignTag(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag+7, "foreign"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, srv.Poll())

	assert.Empty(t, engine.events)
	assert.Equal(t, 0, srv.PeerCount())
}

// TestServerDropsUnparseableDatagram verifies a parse failure is silent: the
// peer record and PeerConnected event exist (resolution precedes parsing),
// but no packet event is raised and Poll reports no error.
func TestServerDropsUnparseableDatagram(t *testing.T) {
	engine := newMockEngine()
	engine.parseErr = errors.New("bad packet")
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "garbled"))
	require.NoError(t, err)

	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 1 })

	assert.Equal(t, []EventKind{EventPeerConnected}, engine.eventKinds())
	assert.Equal(t, 1, srv.PeerCount())
}

// TestServerFatalEventAbortsPoll verifies a fatal error from the event sink
// aborts the drain cycle and surfaces from Poll wrapped in ErrFatal.
func TestServerFatalEventAbortsPoll(t *testing.T) {
	engine := newMockEngine()
	engine.failOn[EventPeerPacketReceived] = errors.New("engine exploded")
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "boom"))
	require.NoError(t, err)

	var pollErr error
	require.Eventually(t, func() bool {
		pollErr = srv.Poll()
		return pollErr != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, pollErr, ErrFatal)
}

// TestServerRemovePeer verifies removal empties the table and that removing
// the same peer again is ignored.
func TestServerRemovePeer(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "hi"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 2 })

	peer := engine.events[0].Peer
	srv.RemovePeer(peer)
	assert.Equal(t, 0, srv.PeerCount())

	srv.RemovePeer(peer) // second remove is a no-op
	assert.Equal(t, 0, srv.PeerCount())
}

// TestServerSend verifies Send reaches the peer's socket.
func TestServerSend(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	peerSock := dialServer(t, port)
	_, err := peerSock.Write(datagram(testTag, "hi"))
	require.NoError(t, err)
	pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= 2 })

	reply := datagram(testTag, "welcome")
	require.NoError(t, srv.Send(engine.events[0].Peer, reply))

	require.NoError(t, peerSock.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 256)
	n, err := peerSock.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, reply, buf[:n])
}

// TestServerBroadcast verifies Broadcast reaches every tracked peer.
func TestServerBroadcast(t *testing.T) {
	engine := newMockEngine()
	srv, port := startTestServer(t, engine, 4)

	socks := []*net.UDPConn{dialServer(t, port), dialServer(t, port)}
	for i, sock := range socks {
		_, err := sock.Write(datagram(testTag, "join"))
		require.NoError(t, err)
		pollUntil(t, srv.Poll, func() bool { return len(engine.events) >= (i+1)*2 })
	}
	require.Equal(t, 2, srv.PeerCount())

	payload := datagram(testTag, "all")
	require.NoError(t, srv.Broadcast(payload))

	for _, sock := range socks {
		require.NoError(t, sock.SetReadDeadline(time.Now().Add(time.Second)))
		buf := make([]byte, 256)
		n, err := sock.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, payload, buf[:n])
	}
}
