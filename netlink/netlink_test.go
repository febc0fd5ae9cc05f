package netlink

import (
	"net/netip"
	"testing"

	nl "github.com/mdlayher/netlink"

	"github.com/meta-n4vn33t/ndppd/types"
)

// message assembles a raw rtnetlink message the way the kernel would emit
// it: fixed header bytes followed by already-encoded attributes.
func message(typ uint16, fixed []byte, attrs ...[]byte) nl.Message {
	data := append([]byte{}, fixed...)
	for _, a := range attrs {
		data = append(data, a...)
	}
	return nl.Message{Header: nl.Header{Type: nl.HeaderType(typ)}, Data: data}
}

func attr(typ uint16, value []byte) []byte {
	return appendAttr(nil, typ, value)
}

func u32(v uint32) []byte {
	var b [4]byte
	native.PutUint32(b[:], v)
	return b[:]
}

func addr16(s string) []byte {
	a := netip.MustParseAddr(s).As16()
	return a[:]
}

func TestParseRouteEvents(t *testing.T) {
	dst := netip.MustParsePrefix("2001:db8:1::/48")

	tests := []struct {
		name string
		msg  nl.Message
		want types.Event
		ok   bool
	}{
		{
			name: "new route",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48, Table: RT_TABLE_MAIN}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::")), attr(RTA_OIF, u32(5))),
			want: types.Event{Kind: types.NewRoute, Route: types.Route{Dst: dst, OIF: 5, Table: RT_TABLE_MAIN}},
			ok:   true,
		},
		{
			name: "owned route",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48, Protocol: RTPROT_NDPPD}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::")), attr(RTA_OIF, u32(5))),
			want: types.Event{Kind: types.NewRoute, Route: types.Route{Dst: dst, OIF: 5, Owned: true}},
			ok:   true,
		},
		{
			name: "delete route",
			msg: message(RTM_DELROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::")), attr(RTA_OIF, u32(5))),
			want: types.Event{Kind: types.DelRoute, Route: types.Route{Dst: dst, OIF: 5}},
			ok:   true,
		},
		{
			name: "big table via attribute",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::")), attr(RTA_OIF, u32(5)), attr(RTA_TABLE, u32(1000))),
			want: types.Event{Kind: types.NewRoute, Route: types.Route{Dst: dst, OIF: 5, Table: 1000}},
			ok:   true,
		},
		{
			name: "missing interface",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::"))),
			ok: false,
		},
		{
			name: "missing destination",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: AF_INET6, DstLen: 48}).serialize(),
				attr(RTA_OIF, u32(5))),
			ok: false,
		},
		{
			name: "wrong family",
			msg: message(RTM_NEWROUTE,
				(&rtMsg{Family: 2, DstLen: 24}).serialize(),
				attr(RTA_DST, addr16("2001:db8:1::")), attr(RTA_OIF, u32(5))),
			ok: false,
		},
		{
			name: "header shorter than rtmsg",
			msg:  nl.Message{Header: nl.Header{Type: nl.HeaderType(RTM_NEWROUTE)}, Data: []byte{AF_INET6, 48, 0}},
			ok:   false,
		},
		{
			name: "unknown message type ignored",
			msg:  message(16 /* RTM_NEWLINK */, (&rtMsg{Family: AF_INET6}).serialize()),
			ok:   false,
		},
		{
			name: "dump complete",
			msg:  nl.Message{Header: nl.Header{Type: nl.Done}},
			want: types.Event{Kind: types.DumpComplete},
			ok:   true,
		},
	}

	for _, test := range tests {
		got, ok := ParseEvent(test.msg)
		if ok != test.ok {
			t.Errorf("%s: got ok %v, want %v", test.name, ok, test.ok)
			continue
		}
		if ok && got != test.want {
			t.Errorf("%s: got %s, want %s", test.name, got, test.want)
		}
	}
}

func TestParseAddressEvents(t *testing.T) {
	want := types.Address{IfIndex: 3, Addr: netip.MustParsePrefix("fe80::ec4:7aff:fe80:f104/64")}

	msg := message(RTM_NEWADDR,
		(&ifAddrMsg{Family: AF_INET6, PrefixLen: 64, Index: 3}).serialize(),
		attr(IFA_ADDRESS, addr16("fe80::ec4:7aff:fe80:f104")))

	got, ok := ParseEvent(msg)
	if !ok || got.Kind != types.NewAddress || !got.Address.Equal(want) {
		t.Errorf("got %s (ok %v), want new-address %s", got, ok, want)
	}

	msg.Header.Type = nl.HeaderType(RTM_DELADDR)
	got, ok = ParseEvent(msg)
	if !ok || got.Kind != types.DelAddress {
		t.Errorf("got %s (ok %v), want del-address %s", got, ok, want)
	}

	// No IFA_ADDRESS attribute: nothing to mirror.
	if _, ok := ParseEvent(message(RTM_NEWADDR, (&ifAddrMsg{Family: AF_INET6, PrefixLen: 64, Index: 3}).serialize())); ok {
		t.Errorf("address message without an address must be dropped")
	}
}

func TestParseTruncatedAttributes(t *testing.T) {
	// An attribute claiming 24 bytes with only 8 on the wire: the walk has
	// to stop dead, which leaves the record without a destination.
	bogus := attr(RTA_DST, addr16("2001:db8::"))[:8]
	native.PutUint16(bogus[0:2], 24)

	msg := message(RTM_NEWROUTE,
		(&rtMsg{Family: AF_INET6, DstLen: 64}).serialize(),
		bogus, attr(RTA_OIF, u32(5)))

	if _, ok := ParseEvent(msg); ok {
		t.Errorf("route with a truncated destination attribute must be dropped")
	}

	// Same story with a length shorter than the attribute header itself.
	undersized := make([]byte, sizeofRtAttr)
	native.PutUint16(undersized[0:2], 2)
	native.PutUint16(undersized[2:4], RTA_DST)

	msg = message(RTM_NEWROUTE,
		(&rtMsg{Family: AF_INET6, DstLen: 64}).serialize(),
		undersized)

	if _, ok := ParseEvent(msg); ok {
		t.Errorf("route with an undersized attribute must be dropped")
	}
}

func TestMutateRoutePayload(t *testing.T) {
	dst := netip.MustParsePrefix("2001:db8:1::/48")

	var hdr rtMsg
	b := mutateRoutePayload(dst, 5, RT_TABLE_MAIN)
	if err := hdr.deserialize(b); err != nil {
		t.Fatalf("error deserializing our own payload: %v", err)
	}

	if hdr.Family != AF_INET6 || hdr.DstLen != 48 || hdr.Scope != RT_SCOPE_UNIVERSE {
		t.Errorf("unexpected rtmsg header: %+v", hdr)
	}
	if hdr.Protocol != RTPROT_NDPPD {
		t.Errorf("mutations must be tagged with the reserved protocol, got %d", hdr.Protocol)
	}
	if hdr.Table != RT_TABLE_MAIN {
		t.Errorf("got table %d, want %d", hdr.Table, RT_TABLE_MAIN)
	}

	attrs := map[uint16][]byte{}
	walkAttrs(b[sizeofRtMsg:], func(typ uint16, value []byte) bool {
		attrs[typ] = value
		return true
	})

	if got := native.Uint32(attrs[RTA_OIF]); got != 5 {
		t.Errorf("got oif attribute %d, want 5", got)
	}
	if got, ok := attrs[RTA_DST]; !ok || netip.AddrFrom16([16]byte(got)) != dst.Addr() {
		t.Errorf("got dst attribute %v, want %s", got, dst.Addr())
	}
	if _, ok := attrs[RTA_TABLE]; ok {
		t.Errorf("small table ids must ride in the rtmsg byte, not an attribute")
	}

	// Deletions carry no interface; big tables move to an attribute.
	b = mutateRoutePayload(dst, -1, 1000)
	if err := hdr.deserialize(b); err != nil {
		t.Fatalf("error deserializing our own payload: %v", err)
	}
	if hdr.Table != 0 {
		t.Errorf("big table ids must zero the rtmsg byte, got %d", hdr.Table)
	}

	attrs = map[uint16][]byte{}
	walkAttrs(b[sizeofRtMsg:], func(typ uint16, value []byte) bool {
		attrs[typ] = value
		return true
	})

	if _, ok := attrs[RTA_OIF]; ok {
		t.Errorf("delete payloads must not carry an interface attribute")
	}
	if got := native.Uint32(attrs[RTA_TABLE]); got != 1000 {
		t.Errorf("got table attribute %d, want 1000", got)
	}
}
