package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address identifies an IPv4 peer endpoint as a 32-bit host (network byte
// order interpreted as a big-endian integer) and a 16-bit port. It is an
// immutable value compared by exact field equality: two addresses refer to
// the same peer iff both fields match.
type Address struct {
	Host uint32
	Port uint16
}

// ResolveAddress resolves a dotted-decimal IPv4 host string and a port into
// an Address. The host must be exactly four dot-separated octets, each in
// [0,255], with no leading or trailing garbage. Malformed input returns an
// error wrapping ErrAddressResolution.
func ResolveAddress(host string, port uint16) (Address, error) {
	octets := strings.Split(host, ".")
	if len(octets) != 4 {
		return Address{}, fmt.Errorf("%w: %q is not a dotted-decimal IPv4 address", ErrAddressResolution, host)
	}

	var h uint32
	for _, octet := range octets {
		v, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q has invalid octet %q", ErrAddressResolution, host, octet)
		}
		h = h<<8 | uint32(v)
	}

	return Address{Host: h, Port: port}, nil
}

// AddressFromUDPAddr converts a *net.UDPAddr into an Address. It returns
// false when the source is not an IPv4 endpoint.
func AddressFromUDPAddr(addr *net.UDPAddr) (Address, bool) {
	if addr == nil {
		return Address{}, false
	}
	ip := addr.IP.To4()
	if ip == nil {
		return Address{}, false
	}
	return Address{
		Host: binary.BigEndian.Uint32(ip),
		Port: uint16(addr.Port),
	}, true
}

// UDPAddr converts the Address back into a *net.UDPAddr for socket calls.
func (a Address) UDPAddr() *net.UDPAddr {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, a.Host)
	return &net.UDPAddr{IP: ip, Port: int(a.Port)}
}

// String returns the address in host:port form.
func (a Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d",
		byte(a.Host>>24), byte(a.Host>>16), byte(a.Host>>8), byte(a.Host), a.Port)
}

// hash is the probe hash used by the connection table. The XOR of host and
// port is kept for behavioral compatibility with the wire-facing driver this
// table was modeled on; its collision behavior is adequate for the small,
// diverse IPv4 peer sets the driver tracks.
func (a Address) hash() uint32 {
	return a.Host ^ uint32(a.Port)
}
