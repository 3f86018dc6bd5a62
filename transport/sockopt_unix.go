//go:build !windows

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// setSocketBuffers sizes the kernel receive and send buffers on the raw
// socket. The net package applies its own defaults; games and other
// poll-driven consumers drain in bursts, so larger kernel buffers absorb the
// time between polls.
func setSocketBuffers(conn *net.UDPConn, size int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw socket access: %w", err)
	}

	var optErr error
	err = raw.Control(func(fd uintptr) {
		if optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size); optErr != nil {
			optErr = fmt.Errorf("SO_RCVBUF: %w", optErr)
			return
		}
		if optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size); optErr != nil {
			optErr = fmt.Errorf("SO_SNDBUF: %w", optErr)
		}
	})
	if err != nil {
		return fmt.Errorf("socket control: %w", err)
	}

	return optErr
}
