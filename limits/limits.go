// Package limits provides centralized wire-format limits for the UDP driver.
// This ensures consistent validation across different components of the system.
package limits

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxDatagramSize is the largest datagram the driver will send or
	// receive (1400 bytes). It stays under typical path MTUs so datagrams
	// are never fragmented at the IP layer.
	MaxDatagramSize = 1400

	// ProtocolTagSize is the width in bytes of the protocol tag field that
	// every datagram carries at offset 0, big-endian. The tag is read
	// before full packet parsing to cheaply reject foreign traffic.
	ProtocolTagSize = 4
)

var (
	// ErrDatagramEmpty indicates an empty datagram was provided
	ErrDatagramEmpty = errors.New("empty datagram")

	// ErrDatagramTooLarge indicates a datagram exceeds MaxDatagramSize
	ErrDatagramTooLarge = errors.New("datagram too large")
)

// ValidateDatagramSize validates an outgoing datagram against
// MaxDatagramSize. Returns an error with context including the actual and
// maximum sizes.
func ValidateDatagramSize(data []byte) error {
	if len(data) == 0 {
		return ErrDatagramEmpty
	}
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(data), MaxDatagramSize)
	}
	return nil
}

// ReadTag reads the protocol tag from the head of a raw datagram. It returns
// false if the datagram is too short to carry a tag. Engines that use the
// standard header layout can delegate their tag reading to this helper.
func ReadTag(data []byte) (uint32, bool) {
	if len(data) < ProtocolTagSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[:ProtocolTagSize]), true
}

// PutTag writes the protocol tag at the head of a datagram buffer. The
// buffer must be at least ProtocolTagSize bytes long.
func PutTag(data []byte, tag uint32) {
	binary.BigEndian.PutUint32(data[:ProtocolTagSize], tag)
}
