package types

import (
	"fmt"
	"net/netip"
)

// Route mirrors one entry of the kernel's IPv6 routing table: a destination
// prefix reachable through an interface, scoped to a kernel routing table.
type Route struct {
	Dst   netip.Prefix `json:"dst"`
	OIF   int          `json:"oif"`
	Table uint32       `json:"table"`

	// Owned marks routes this process installed itself; they are the ones
	// withdrawn in bulk on shutdown.
	Owned bool `json:"owned"`
}

func (r Route) String() string {
	return fmt.Sprintf("%s dev %d table %d owned %v", r.Dst, r.OIF, r.Table, r.Owned)
}

// SameDestination reports whether o names the same (destination, prefix
// length, table) triple. The kernel coalesces route additions without looking
// at the interface, so neither do we: only deletions match on OIF too.
func (r Route) SameDestination(o Route) bool {
	return r.Dst == o.Dst && r.Table == o.Table
}

// Matches is the deletion key: SameDestination plus an exact interface match.
func (r Route) Matches(o Route) bool {
	return r.SameDestination(o) && r.OIF == o.OIF
}

// Address mirrors one IPv6 address assigned to a local interface. The prefix
// carries the full (unmasked) address together with its prefix length.
type Address struct {
	IfIndex int          `json:"ifIndex"`
	Addr    netip.Prefix `json:"addr"`
}

func (a Address) String() string {
	return fmt.Sprintf("%s dev %d", a.Addr, a.IfIndex)
}

// Equal is the address identity key: owning interface, address bytes and
// prefix length.
func (a Address) Equal(o Address) bool {
	return a.IfIndex == o.IfIndex && a.Addr == o.Addr
}

// EventKind tags the decode outcome of a single kernel notification.
type EventKind int

const (
	NewRoute EventKind = iota
	DelRoute
	NewAddress
	DelAddress

	// DumpComplete is the kernel's end-of-dump marker. It carries no payload
	// and simply clears the pending-dump deadline.
	DumpComplete
)

var kindMap = map[EventKind]string{
	NewRoute:     "new-route",
	DelRoute:     "del-route",
	NewAddress:   "new-address",
	DelAddress:   "del-address",
	DumpComplete: "dump-complete",
}

func (k EventKind) String() string {
	n, ok := kindMap[k]
	if !ok {
		return fmt.Sprintf("unknown (%d)", int(k))
	}
	return n
}

// Event is one decoded kernel notification. Only the field selected by Kind
// is meaningful; the other is left as its zero value.
type Event struct {
	Kind    EventKind
	Route   Route
	Address Address
}

func (e Event) String() string {
	switch e.Kind {
	case NewRoute, DelRoute:
		return fmt.Sprintf("%s %s", e.Kind, e.Route)
	case NewAddress, DelAddress:
		return fmt.Sprintf("%s %s", e.Kind, e.Address)
	}
	return e.Kind.String()
}
