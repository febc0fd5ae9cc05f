package rtsock

import (
	"encoding/binary"
	"fmt"

	ne "github.com/josharian/native"
)

// The kernel speaks the host's native endianness over the routing socket.
var native binary.ByteOrder = ne.Endian

// rtMsgHdr mirrors FreeBSD's struct rt_msghdr. Only the fields we read or
// write are spelled out; rtm_fmask, rtm_inits and the rt_metrics tail are
// opaque zero padding as far as this backend is concerned.
type rtMsgHdr struct {
	MsgLen  uint16
	Version uint8
	Type    uint8
	Index   uint16
	Flags   int32
	Addrs   int32
	Pid     int32
	Seq     int32
	Errno   int32
}

func (h *rtMsgHdr) serialize() []byte {
	b := make([]byte, sizeofRtMsgHdr)
	native.PutUint16(b[0:2], h.MsgLen)
	b[2] = h.Version
	b[3] = h.Type
	native.PutUint16(b[4:6], h.Index)
	native.PutUint32(b[8:12], uint32(h.Flags))
	native.PutUint32(b[12:16], uint32(h.Addrs))
	native.PutUint32(b[16:20], uint32(h.Pid))
	native.PutUint32(b[20:24], uint32(h.Seq))
	native.PutUint32(b[24:28], uint32(h.Errno))
	return b
}

func (h *rtMsgHdr) deserialize(b []byte) error {
	if len(b) < sizeofRtMsgHdr {
		return fmt.Errorf("buffer's too short a read (%d); want at least %d", len(b), sizeofRtMsgHdr)
	}
	h.MsgLen = native.Uint16(b[0:2])
	h.Version = b[2]
	h.Type = b[3]
	h.Index = native.Uint16(b[4:6])
	h.Flags = int32(native.Uint32(b[8:12]))
	h.Addrs = int32(native.Uint32(b[12:16]))
	h.Pid = int32(native.Uint32(b[16:20]))
	h.Seq = int32(native.Uint32(b[20:24]))
	h.Errno = int32(native.Uint32(b[24:28]))
	return nil
}

// ifaMsgHdr mirrors FreeBSD's struct ifa_msghdr, the header interface
// address notifications and NET_RT_IFLIST dump records carry.
type ifaMsgHdr struct {
	MsgLen  uint16
	Version uint8
	Type    uint8
	Addrs   int32
	Flags   int32
	Index   uint16
	Metric  int32
}

func (h *ifaMsgHdr) serialize() []byte {
	b := make([]byte, sizeofIfaMsgHdr)
	native.PutUint16(b[0:2], h.MsgLen)
	b[2] = h.Version
	b[3] = h.Type
	native.PutUint32(b[4:8], uint32(h.Addrs))
	native.PutUint32(b[8:12], uint32(h.Flags))
	native.PutUint16(b[12:14], h.Index)
	native.PutUint32(b[16:20], uint32(h.Metric))
	return b
}

func (h *ifaMsgHdr) deserialize(b []byte) error {
	if len(b) < sizeofIfaMsgHdr {
		return fmt.Errorf("buffer's too short a read (%d); want at least %d", len(b), sizeofIfaMsgHdr)
	}
	h.MsgLen = native.Uint16(b[0:2])
	h.Version = b[2]
	h.Type = b[3]
	h.Addrs = int32(native.Uint32(b[4:8]))
	h.Flags = int32(native.Uint32(b[8:12]))
	h.Index = native.Uint16(b[12:14])
	h.Metric = int32(native.Uint32(b[16:20]))
	return nil
}

// saRound rounds a sockaddr length up to the routing socket's u_long
// alignment. An empty sockaddr still occupies one alignment slot.
func saRound(n int) int {
	if n == 0 {
		return 8
	}
	return (n + 7) &^ 7
}

// splitSockaddrs files each sockaddr trailing a routing message into its
// RTAX_* slot as announced by the addrs bitmask. Slots the bitmask doesn't
// claim stay nil. A sockaddr whose sa_len overruns the record ends the walk,
// leaving the remaining slots nil; callers treat those as absent.
func splitSockaddrs(addrs int32, b []byte) [RTAX_MAX][]byte {
	var rtas [RTAX_MAX][]byte
	for i := 0; i < RTAX_MAX && len(b) > 0; i++ {
		if addrs&(1<<i) == 0 {
			continue
		}
		l := int(b[0])
		if l > len(b) {
			break
		}
		rtas[i] = b[:l]
		step := saRound(l)
		if step >= len(b) {
			b = nil
		} else {
			b = b[step:]
		}
	}
	return rtas
}

// saAddr6 pulls the 16 address bytes out of a sockaddr_in6, checking the
// family along the way.
func saAddr6(sa []byte) ([16]byte, bool) {
	var addr [16]byte
	if len(sa) < 24 || sa[1] != AF_INET6 {
		return addr, false
	}
	copy(addr[:], sa[8:24])
	return addr, true
}

// saMaskBytes returns the mask bytes of a netmask sockaddr. The kernel trims
// trailing zero bytes and shrinks sa_len to match, so the slice may cover
// less than a full address; the missing tail is all zeros.
func saMaskBytes(sa []byte) []byte {
	if len(sa) <= 8 {
		return nil
	}
	end := len(sa)
	if end > 24 {
		end = 24
	}
	return sa[8:end]
}

func sockaddrIn6(addr [16]byte) []byte {
	sa := make([]byte, sizeofSockaddrIn6)
	sa[0] = sizeofSockaddrIn6
	sa[1] = AF_INET6
	copy(sa[8:24], addr[:])
	return sa
}

func sockaddrDl(index int) []byte {
	sa := make([]byte, sizeofSockaddrDl)
	sa[0] = sizeofSockaddrDl
	sa[1] = AF_LINK
	native.PutUint16(sa[2:4], uint16(index))
	return sa
}

// appendSockaddr appends sa to b along with the padding keeping the next
// sockaddr aligned. The kernel insists on the padding even after the last
// sockaddr of a message.
func appendSockaddr(b, sa []byte) []byte {
	b = append(b, sa...)
	for len(b)%8 != 0 {
		b = append(b, 0)
	}
	return b
}
