//go:build windows

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/windows"
)

// setSocketBuffers sizes the kernel receive and send buffers on the raw
// socket. See sockopt_unix.go for rationale.
func setSocketBuffers(conn *net.UDPConn, size int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw socket access: %w", err)
	}

	var optErr error
	err = raw.Control(func(fd uintptr) {
		if optErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_RCVBUF, size); optErr != nil {
			optErr = fmt.Errorf("SO_RCVBUF: %w", optErr)
			return
		}
		if optErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_SNDBUF, size); optErr != nil {
			optErr = fmt.Errorf("SO_SNDBUF: %w", optErr)
		}
	})
	if err != nil {
		return fmt.Errorf("socket control: %w", err)
	}

	return optErr
}
