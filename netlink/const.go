package netlink

// All of these constants' names make the linter complain, but we inherited
// them from external C code, so we will keep them. Values are those of
// <linux/rtnetlink.h>: they are part of the wire format, not of whatever
// platform this package happens to be compiled on, which is also why we
// don't pull them from x/sys/unix here.
const (
	NETLINK_ROUTE = 0

	RTM_NEWADDR  = 20
	RTM_DELADDR  = 21
	RTM_GETADDR  = 22
	RTM_NEWROUTE = 24
	RTM_DELROUTE = 25
	RTM_GETROUTE = 26

	RTA_DST   = 1
	RTA_OIF   = 4
	RTA_TABLE = 15

	IFA_ADDRESS = 1

	RT_TABLE_UNSPEC = 0
	RT_TABLE_MAIN   = 254

	RT_SCOPE_UNIVERSE = 0

	RTPROT_UNSPEC = 0

	// RTPROT_NDPPD tags routes installed by this process so they can be
	// recognised in notifications and withdrawn on shutdown. 72 sits in the
	// range reserved for userspace routing daemons; the same value has been
	// used by ndppd since its C days.
	RTPROT_NDPPD = 72

	AF_INET6 = 10

	// Legacy bind-time group bitmask values, i.e. 1 << (RTNLGRP_* - 1).
	RTMGRP_IPV6_IFADDR = 0x100
	RTMGRP_IPV6_ROUTE  = 0x400
)
