package netlink

import (
	"encoding/binary"
	"fmt"

	ne "github.com/josharian/native"
)

// Attribute payloads and fixed headers are encoded in the byte order of the
// machine the kernel runs on, i.e. ours.
var native binary.ByteOrder = ne.Endian

const (
	sizeofRtMsg     = 12
	sizeofIfAddrMsg = 8
	sizeofRtAttr    = 4
)

// rtMsg is struct rtmsg, the fixed header of every route message.
type rtMsg struct {
	Family   uint8
	DstLen   uint8
	SrcLen   uint8
	TOS      uint8
	Table    uint8
	Protocol uint8
	Scope    uint8
	Type     uint8
	Flags    uint32
}

func (m *rtMsg) serialize() []byte {
	b := make([]byte, sizeofRtMsg)
	b[0] = m.Family
	b[1] = m.DstLen
	b[2] = m.SrcLen
	b[3] = m.TOS
	b[4] = m.Table
	b[5] = m.Protocol
	b[6] = m.Scope
	b[7] = m.Type
	native.PutUint32(b[8:12], m.Flags)
	return b
}

func (m *rtMsg) deserialize(b []byte) error {
	if len(b) < sizeofRtMsg {
		return fmt.Errorf("route message short read (%d); want at least %d", len(b), sizeofRtMsg)
	}
	m.Family = b[0]
	m.DstLen = b[1]
	m.SrcLen = b[2]
	m.TOS = b[3]
	m.Table = b[4]
	m.Protocol = b[5]
	m.Scope = b[6]
	m.Type = b[7]
	m.Flags = native.Uint32(b[8:12])
	return nil
}

// ifAddrMsg is struct ifaddrmsg, the fixed header of every address message.
type ifAddrMsg struct {
	Family    uint8
	PrefixLen uint8
	Flags     uint8
	Scope     uint8
	Index     uint32
}

func (m *ifAddrMsg) serialize() []byte {
	b := make([]byte, sizeofIfAddrMsg)
	b[0] = m.Family
	b[1] = m.PrefixLen
	b[2] = m.Flags
	b[3] = m.Scope
	native.PutUint32(b[4:8], m.Index)
	return b
}

func (m *ifAddrMsg) deserialize(b []byte) error {
	if len(b) < sizeofIfAddrMsg {
		return fmt.Errorf("address message short read (%d); want at least %d", len(b), sizeofIfAddrMsg)
	}
	m.Family = b[0]
	m.PrefixLen = b[1]
	m.Flags = b[2]
	m.Scope = b[3]
	m.Index = native.Uint32(b[4:8])
	return nil
}

func attrAlign(n int) int {
	return (n + 3) &^ 3
}

// walkAttrs invokes fn for every attribute in b, a concatenation of struct
// rtattr records. A length field shorter than the attribute header or longer
// than what's left of the buffer stops the walk: nothing past it can be
// trusted. fn returning false also stops the walk.
func walkAttrs(b []byte, fn func(typ uint16, value []byte) bool) {
	for len(b) >= sizeofRtAttr {
		l := int(native.Uint16(b[0:2]))
		typ := native.Uint16(b[2:4])
		if l < sizeofRtAttr || l > len(b) {
			return
		}
		if !fn(typ, b[sizeofRtAttr:l]) {
			return
		}
		if attrAlign(l) >= len(b) {
			return
		}
		b = b[attrAlign(l):]
	}
}

// appendAttr appends one rtattr (header, payload, alignment padding) to b.
func appendAttr(b []byte, typ uint16, value []byte) []byte {
	var hdr [sizeofRtAttr]byte
	native.PutUint16(hdr[0:2], uint16(sizeofRtAttr+len(value)))
	native.PutUint16(hdr[2:4], typ)
	b = append(b, hdr[:]...)
	b = append(b, value...)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
