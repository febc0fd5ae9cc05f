package netlink

import (
	"log/slog"
	"net/netip"

	nl "github.com/mdlayher/netlink"

	"github.com/meta-n4vn33t/ndppd/types"
)

// ParseEvent turns one rtnetlink message into a mirror event. The boolean is
// false for messages that carry nothing for us: unknown message types,
// non-IPv6 families, and route records missing the destination or interface
// attributes are all silently dropped, per the kernel's "ignore what you
// don't understand" contract.
func ParseEvent(msg nl.Message) (types.Event, bool) {
	if msg.Header.Type == nl.Done {
		return types.Event{Kind: types.DumpComplete}, true
	}

	switch uint16(msg.Header.Type) {
	case RTM_NEWROUTE, RTM_DELROUTE:
		route, ok := parseRoute(msg.Data)
		if !ok {
			return types.Event{}, false
		}
		kind := types.NewRoute
		if uint16(msg.Header.Type) == RTM_DELROUTE {
			kind = types.DelRoute
		}
		return types.Event{Kind: kind, Route: route}, true

	case RTM_NEWADDR, RTM_DELADDR:
		addr, ok := parseAddress(msg.Data)
		if !ok {
			return types.Event{}, false
		}
		kind := types.NewAddress
		if uint16(msg.Header.Type) == RTM_DELADDR {
			kind = types.DelAddress
		}
		return types.Event{Kind: kind, Address: addr}, true
	}

	return types.Event{}, false
}

// parseRoute decodes the rtmsg header and the attributes that follow it.
// Records without both a destination and an output interface (cloned cache
// entries, blackholes, ...) are of no use to the mirror. When an attribute
// repeats, the last one wins, as it does in the kernel's own parsers.
func parseRoute(b []byte) (types.Route, bool) {
	var hdr rtMsg
	if err := hdr.deserialize(b); err != nil {
		slog.Debug("discarding truncated route message", "err", err)
		return types.Route{}, false
	}
	if hdr.Family != AF_INET6 {
		return types.Route{}, false
	}

	var (
		dst     netip.Addr
		oif     int
		table   = uint32(hdr.Table)
		haveDst bool
		haveOIF bool
	)

	walkAttrs(b[sizeofRtMsg:], func(typ uint16, value []byte) bool {
		switch typ {
		case RTA_DST:
			if len(value) != 16 {
				return false
			}
			dst = netip.AddrFrom16([16]byte(value))
			haveDst = true
		case RTA_OIF:
			if len(value) != 4 {
				return false
			}
			oif = int(native.Uint32(value))
			haveOIF = true
		case RTA_TABLE:
			// Tables above 255 don't fit the rtmsg byte and come through
			// here instead.
			if len(value) != 4 {
				return false
			}
			table = native.Uint32(value)
		}
		return true
	})

	if !haveDst || !haveOIF {
		return types.Route{}, false
	}

	return types.Route{
		Dst:   netip.PrefixFrom(dst, int(hdr.DstLen)),
		OIF:   oif,
		Table: table,
		Owned: hdr.Protocol == RTPROT_NDPPD,
	}, true
}

func parseAddress(b []byte) (types.Address, bool) {
	var hdr ifAddrMsg
	if err := hdr.deserialize(b); err != nil {
		slog.Debug("discarding truncated address message", "err", err)
		return types.Address{}, false
	}
	if hdr.Family != AF_INET6 {
		return types.Address{}, false
	}

	var (
		addr netip.Addr
		have bool
	)

	walkAttrs(b[sizeofIfAddrMsg:], func(typ uint16, value []byte) bool {
		if typ == IFA_ADDRESS {
			if len(value) != 16 {
				return false
			}
			addr = netip.AddrFrom16([16]byte(value))
			have = true
		}
		return true
	})

	if !have {
		return types.Address{}, false
	}

	return types.Address{
		IfIndex: int(hdr.Index),
		Addr:    netip.PrefixFrom(addr, int(hdr.PrefixLen)),
	}, true
}
