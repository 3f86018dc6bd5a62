// Package limits provides centralized wire-format constants and validation
// functions for the UDP driver. This package ensures consistent size and
// header enforcement across the socket transport, the drivers, and protocol
// engines built on top of them.
//
// # Datagram Size
//
//   - MaxDatagramSize (1400 bytes): The largest datagram the driver sends or
//     receives. It is sized to stay under typical path MTUs so UDP datagrams
//     are never fragmented at the IP layer; fragmentation would multiply the
//     effective loss rate of every packet.
//
// Outgoing datagrams are validated with:
//
//	err := limits.ValidateDatagramSize(data)
//	if err != nil {
//	    // Handle ErrDatagramEmpty or ErrDatagramTooLarge
//	}
//
// # Protocol Tag
//
// Every datagram begins with a ProtocolTagSize (4 byte) application tag,
// big-endian at offset 0. The transport reads the tag before full packet
// parsing to cheaply discard traffic from other applications sharing the same
// port space. ReadTag and PutTag implement the standard header layout;
// protocol engines that own a different layout implement their own tag
// reader instead.
package limits
