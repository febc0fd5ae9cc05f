package rtsock

// All of these constants' names make the linter complain, but we inherited
// them from external C code, so we will keep them. Values and struct sizes
// are FreeBSD's: this backend speaks FreeBSD's routing socket dialect, which
// is also the one the sysctl dumps use.
const (
	RTM_VERSION = 5

	RTM_ADD     = 0x1
	RTM_DELETE  = 0x2
	RTM_GET     = 0x4
	RTM_NEWADDR = 0xc
	RTM_DELADDR = 0xd
	RTM_IFINFO  = 0xe

	RTF_UP = 0x1

	// RTF_PROTO3 is the protocol-reserved flag marking routes this process
	// installed itself; the BSD counterpart of the Linux backend's
	// RTPROT_NDPPD tag.
	RTF_PROTO3 = 0x40000

	RTA_DST     = 0x1
	RTA_GATEWAY = 0x2
	RTA_NETMASK = 0x4

	RTAX_DST     = 0
	RTAX_GATEWAY = 1
	RTAX_NETMASK = 2
	RTAX_IFA     = 5
	RTAX_MAX     = 8

	AF_LINK  = 18
	AF_INET6 = 28

	sizeofRtMsgHdr    = 152
	sizeofIfaMsgHdr   = 20
	sizeofSockaddrIn6 = 28
	sizeofSockaddrDl  = 54
)
