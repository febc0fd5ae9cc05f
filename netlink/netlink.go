package netlink

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	nl "github.com/mdlayher/netlink"

	"github.com/meta-n4vn33t/ndppd/types"
)

// Conn is the Linux kernel channel: a single rtnetlink socket subscribed to
// the IPv6 route and address notification groups. Dump replies travel the
// same socket as change notifications, so everything funnels through
// Receive.
type Conn struct {
	c *nl.Conn
}

// Open dials the routing netlink family and joins the IPv6 notification
// groups at bind time.
func Open() (*Conn, error) {
	c, err := nl.Dial(NETLINK_ROUTE, &nl.Config{
		Groups: RTMGRP_IPV6_IFADDR | RTMGRP_IPV6_ROUTE,
	})
	if err != nil {
		return nil, fmt.Errorf("error dialing the rtnetlink socket: %w", err)
	}

	// Get richer error strings out of kernels that support them. Not being
	// able to is no reason to bail.
	if err := c.SetOption(nl.ExtendedAcknowledge, true); err != nil {
		slog.Warn("couldn't enable extended acknowledgements", "err", err)
	}

	return &Conn{c: c}, nil
}

func (c *Conn) Close() error {
	return c.c.Close()
}

// SetReadDeadline bounds the next Receive. The monitor points it at the past
// to yank a blocked drain loop during shutdown.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.c.SetReadDeadline(t)
}

// Receive blocks until the next batch of messages arrives and decodes it.
// Multi-part dump replies are drained up to and including the NLMSG_DONE
// marker, which comes back as a DumpComplete event. Kernel-reported request
// failures (NLMSG_ERROR with a non-zero code) surface as errors here; the
// caller logs them and keeps going.
func (c *Conn) Receive() ([]types.Event, error) {
	msgs, err := c.c.Receive()
	if err != nil {
		return nil, err
	}

	events := make([]types.Event, 0, len(msgs))
	for _, msg := range msgs {
		if ev, ok := ParseEvent(msg); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// RequestRouteDump asks for every IPv6 route the kernel has. Replies and the
// completion marker arrive through Receive; nothing is returned here.
func (c *Conn) RequestRouteDump() ([]types.Event, bool, error) {
	hdr := rtMsg{
		Family:   AF_INET6,
		Table:    RT_TABLE_UNSPEC,
		Protocol: RTPROT_UNSPEC,
	}

	req := nl.Message{
		Header: nl.Header{
			Type:  nl.HeaderType(RTM_GETROUTE),
			Flags: nl.Request | nl.Dump,
		},
		Data: hdr.serialize(),
	}

	if _, err := c.c.Send(req); err != nil {
		return nil, false, fmt.Errorf("error sending the route dump request: %w", err)
	}
	return nil, false, nil
}

// RequestAddressDump is RequestRouteDump for interface addresses.
func (c *Conn) RequestAddressDump() ([]types.Event, bool, error) {
	hdr := ifAddrMsg{Family: AF_INET6}

	req := nl.Message{
		Header: nl.Header{
			Type:  nl.HeaderType(RTM_GETADDR),
			Flags: nl.Request | nl.Dump,
		},
		Data: hdr.serialize(),
	}

	if _, err := c.c.Send(req); err != nil {
		return nil, false, fmt.Errorf("error sending the address dump request: %w", err)
	}
	return nil, false, nil
}

// AddRoute installs dst through interface oif, tagged with RTPROT_NDPPD so
// the route comes back to us marked as owned. Fire and forget: the kernel
// only answers if the request fails, and that answer lands in Receive.
func (c *Conn) AddRoute(dst netip.Prefix, oif int, table uint32) error {
	req := nl.Message{
		Header: nl.Header{
			Type:  nl.HeaderType(RTM_NEWROUTE),
			Flags: nl.Request | nl.Create,
		},
		Data: mutateRoutePayload(dst, oif, table),
	}

	if _, err := c.c.Send(req); err != nil {
		return fmt.Errorf("error sending the route add request: %w", err)
	}
	return nil
}

// RemoveRoute withdraws dst from table. Same fire-and-forget contract as
// AddRoute; the delete request carries no interface, only the destination.
func (c *Conn) RemoveRoute(dst netip.Prefix, table uint32) error {
	req := nl.Message{
		Header: nl.Header{
			Type:  nl.HeaderType(RTM_DELROUTE),
			Flags: nl.Request,
		},
		Data: mutateRoutePayload(dst, -1, table),
	}

	if _, err := c.c.Send(req); err != nil {
		return fmt.Errorf("error sending the route delete request: %w", err)
	}
	return nil
}

// mutateRoutePayload builds the rtmsg + attribute payload shared by route
// add and delete requests. A negative oif leaves the interface attribute
// out. Tables that don't fit the rtmsg byte travel as an RTA_TABLE
// attribute instead.
func mutateRoutePayload(dst netip.Prefix, oif int, table uint32) []byte {
	hdr := rtMsg{
		Family:   AF_INET6,
		DstLen:   uint8(dst.Bits()),
		Protocol: RTPROT_NDPPD,
		Scope:    RT_SCOPE_UNIVERSE,
	}
	if table < 256 {
		hdr.Table = uint8(table)
	}

	b := hdr.serialize()

	if oif >= 0 {
		var v [4]byte
		native.PutUint32(v[:], uint32(oif))
		b = appendAttr(b, RTA_OIF, v[:])
	}

	addr := dst.Addr().As16()
	b = appendAttr(b, RTA_DST, addr[:])

	if table >= 256 {
		var v [4]byte
		native.PutUint32(v[:], table)
		b = appendAttr(b, RTA_TABLE, v[:])
	}

	return b
}
