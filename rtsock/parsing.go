// Package rtsock drives the BSD routing socket: it decodes the kernel's
// route and interface address notifications into mirror events, installs
// and withdraws IPv6 routes, and pulls full state snapshots out of sysctl.
package rtsock

import (
	"log/slog"
	"net/netip"

	"github.com/meta-n4vn33t/ndppd/types"
)

// ParseDatagram walks the length-prefixed records of one routing socket
// buffer, be it a live read or a sysctl dump, and decodes the ones we care
// about. A record whose announced length is shorter than its own prefix or
// longer than what's left of the buffer ends the walk: anything beyond it
// cannot be framed reliably.
func ParseDatagram(b []byte) []types.Event {
	var events []types.Event
	for len(b) >= 4 {
		msgLen := int(native.Uint16(b[0:2]))
		version := b[2]
		msgType := b[3]

		if msgLen < 4 || msgLen > len(b) {
			slog.Debug("dropping the rest of the buffer on a bogus record length",
				"msgLen", msgLen, "left", len(b))
			break
		}
		record := b[:msgLen]
		b = b[msgLen:]

		if version != RTM_VERSION {
			continue
		}

		switch msgType {
		case RTM_ADD, RTM_DELETE, RTM_GET:
			if event, ok := parseRouteRecord(record); ok {
				events = append(events, event)
			}
		case RTM_NEWADDR, RTM_DELADDR:
			if event, ok := parseAddressRecord(record); ok {
				events = append(events, event)
			}
		default:
			slog.Debug("ignoring an unhandled routing message", "type", msgType)
		}
	}
	return events
}

// parseRouteRecord decodes one rt_msghdr record into a route event. Records
// with no IPv6 destination are not for us. A missing netmask means a host
// route, i.e. a full-length prefix.
func parseRouteRecord(b []byte) (types.Event, bool) {
	hdr := rtMsgHdr{}
	if err := hdr.deserialize(b); err != nil {
		slog.Debug("skipping a truncated route record", "err", err)
		return types.Event{}, false
	}

	rtas := splitSockaddrs(hdr.Addrs, b[sizeofRtMsgHdr:])

	dst, ok := saAddr6(rtas[RTAX_DST])
	if !ok {
		return types.Event{}, false
	}

	prefixLen := 128
	if mask := rtas[RTAX_NETMASK]; mask != nil {
		prefixLen = types.PrefixLenFromMask(saMaskBytes(mask))
	}

	kind := types.NewRoute
	if hdr.Type == RTM_DELETE {
		kind = types.DelRoute
	}

	return types.Event{
		Kind: kind,
		Route: types.Route{
			Dst:   netip.PrefixFrom(netip.AddrFrom16(dst), prefixLen),
			OIF:   int(hdr.Index),
			Owned: hdr.Flags&RTF_PROTO3 != 0,
		},
	}, true
}

// parseAddressRecord decodes one ifa_msghdr record into an address event.
func parseAddressRecord(b []byte) (types.Event, bool) {
	hdr := ifaMsgHdr{}
	if err := hdr.deserialize(b); err != nil {
		slog.Debug("skipping a truncated address record", "err", err)
		return types.Event{}, false
	}

	rtas := splitSockaddrs(hdr.Addrs, b[sizeofIfaMsgHdr:])

	addr, ok := saAddr6(rtas[RTAX_IFA])
	if !ok {
		return types.Event{}, false
	}

	prefixLen := 128
	if mask := rtas[RTAX_NETMASK]; mask != nil {
		prefixLen = types.PrefixLenFromMask(saMaskBytes(mask))
	}

	kind := types.NewAddress
	if hdr.Type == RTM_DELADDR {
		kind = types.DelAddress
	}

	return types.Event{
		Kind: kind,
		Address: types.Address{
			IfIndex: int(hdr.Index),
			Addr:    netip.PrefixFrom(netip.AddrFrom16(addr), prefixLen),
		},
	}, true
}

// encodeRouteAdd builds the RTM_ADD message installing dst through interface
// oif. The route carries RTF_PROTO3 so that both the kernel echo and later
// dumps identify it as ours. The routing socket has no notion of multiple
// tables, so there's no table to encode.
func encodeRouteAdd(dst netip.Prefix, oif int, pid int) []byte {
	hdr := rtMsgHdr{
		Version: RTM_VERSION,
		Type:    RTM_ADD,
		Index:   uint16(oif),
		Flags:   RTF_UP | RTF_PROTO3,
		Addrs:   RTA_DST | RTA_GATEWAY | RTA_NETMASK,
		Pid:     int32(pid),
	}

	mask := types.MaskFromPrefixLen(dst.Bits())

	b := hdr.serialize()
	b = appendSockaddr(b, sockaddrIn6(dst.Addr().As16()))
	b = appendSockaddr(b, sockaddrDl(oif))
	b = appendSockaddr(b, sockaddrIn6(mask))

	native.PutUint16(b[0:2], uint16(len(b)))
	return b
}

// encodeRouteDelete builds the RTM_DELETE message withdrawing dst. Deletion
// goes by destination and mask alone; the kernel doesn't ask which interface
// the route pointed at.
func encodeRouteDelete(dst netip.Prefix, pid int) []byte {
	hdr := rtMsgHdr{
		Version: RTM_VERSION,
		Type:    RTM_DELETE,
		Addrs:   RTA_DST | RTA_NETMASK,
		Pid:     int32(pid),
	}

	mask := types.MaskFromPrefixLen(dst.Bits())

	b := hdr.serialize()
	b = appendSockaddr(b, sockaddrIn6(dst.Addr().As16()))
	b = appendSockaddr(b, sockaddrIn6(mask))

	native.PutUint16(b[0:2], uint16(len(b)))
	return b
}
