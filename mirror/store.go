package mirror

import (
	"net/netip"

	"github.com/meta-n4vn33t/ndppd/types"
)

// Store is the in-process copy of the kernel's IPv6 routing and address
// tables. Entries live in arenas; the live slices hold arena indices and the
// free stacks recycle the slots of removed entries, so an arena never grows
// past the high-water mark of simultaneously live entries no matter how much
// churn the kernel throws at us.
//
// The route slice is kept ordered: most specific prefix first, newest first
// among equals. Lookups simply take the first hit.
//
// Store does no locking of its own; the Monitor serializes access to it.
type Store struct {
	routes    []types.Route
	routeLive []int
	routeFree []int

	addrs    []types.Address
	addrLive []int
	addrFree []int
}

func (s *Store) allocRoute(r types.Route) int {
	if n := len(s.routeFree); n > 0 {
		i := s.routeFree[n-1]
		s.routeFree = s.routeFree[:n-1]
		s.routes[i] = r
		return i
	}
	s.routes = append(s.routes, r)
	return len(s.routes) - 1
}

func (s *Store) allocAddress(a types.Address) int {
	if n := len(s.addrFree); n > 0 {
		i := s.addrFree[n-1]
		s.addrFree = s.addrFree[:n-1]
		s.addrs[i] = a
		return i
	}
	s.addrs = append(s.addrs, a)
	return len(s.addrs) - 1
}

// UpsertRoute folds a new-route notification into the mirror and reports
// whether it changed anything. The kernel resends routes liberally, so a
// notification for a (destination, prefix length, table) triple we already
// hold is dropped whole: the first sighting wins, interface included.
func (s *Store) UpsertRoute(r types.Route) bool {
	at := -1
	for i, idx := range s.routeLive {
		cur := s.routes[idx]
		if cur.SameDestination(r) {
			return false
		}
		// Duplicates of r sort no earlier than this spot, so the scan must
		// go on even once the insertion point is known.
		if at < 0 && cur.Dst.Bits() <= r.Dst.Bits() {
			at = i
		}
	}

	idx := s.allocRoute(r)
	if at < 0 {
		s.routeLive = append(s.routeLive, idx)
		return true
	}
	s.routeLive = append(s.routeLive, 0)
	copy(s.routeLive[at+1:], s.routeLive[at:])
	s.routeLive[at] = idx
	return true
}

// RemoveRoute folds a del-route notification into the mirror. Removals,
// unlike additions, go by the full key: a deletion naming the right
// destination through the wrong interface removes nothing.
func (s *Store) RemoveRoute(r types.Route) bool {
	for i, idx := range s.routeLive {
		if s.routes[idx].Matches(r) {
			s.routeLive = append(s.routeLive[:i], s.routeLive[i+1:]...)
			s.routeFree = append(s.routeFree, idx)
			return true
		}
	}
	return false
}

// UpsertAddress folds a new-address notification into the mirror. Addresses
// have no lookup order; they are only deduplicated.
func (s *Store) UpsertAddress(a types.Address) bool {
	for _, idx := range s.addrLive {
		if s.addrs[idx].Equal(a) {
			return false
		}
	}
	s.addrLive = append(s.addrLive, s.allocAddress(a))
	return true
}

// RemoveAddress folds a del-address notification into the mirror.
func (s *Store) RemoveAddress(a types.Address) bool {
	for i, idx := range s.addrLive {
		if s.addrs[idx].Equal(a) {
			s.addrLive = append(s.addrLive[:i], s.addrLive[i+1:]...)
			s.addrFree = append(s.addrFree, idx)
			return true
		}
	}
	return false
}

// Apply folds one decoded notification into the mirror and reports whether
// it changed anything. DumpComplete markers are not the store's business.
func (s *Store) Apply(event types.Event) bool {
	switch event.Kind {
	case types.NewRoute:
		return s.UpsertRoute(event.Route)
	case types.DelRoute:
		return s.RemoveRoute(event.Route)
	case types.NewAddress:
		return s.UpsertAddress(event.Address)
	case types.DelAddress:
		return s.RemoveAddress(event.Address)
	}
	return false
}

// FindRoute returns the most specific live route containing addr in the
// given table. The live slice is ordered most specific first, so the first
// containing route is the answer.
func (s *Store) FindRoute(addr netip.Addr, table uint32) (types.Route, bool) {
	for _, idx := range s.routeLive {
		r := s.routes[idx]
		if r.Table == table && r.Dst.Contains(addr) {
			return r, true
		}
	}
	return types.Route{}, false
}

// Routes returns a copy of the live routes in mirror order.
func (s *Store) Routes() []types.Route {
	routes := make([]types.Route, 0, len(s.routeLive))
	for _, idx := range s.routeLive {
		routes = append(routes, s.routes[idx])
	}
	return routes
}

// Addrs returns a copy of the live interface addresses.
func (s *Store) Addrs() []types.Address {
	addrs := make([]types.Address, 0, len(s.addrLive))
	for _, idx := range s.addrLive {
		addrs = append(addrs, s.addrs[idx])
	}
	return addrs
}

// Stats describes the mirror's occupancy. The slot counts cover every arena
// slot ever allocated; recycling keeps them at the high-water mark of live
// entries rather than at the all-time event volume.
type Stats struct {
	LiveRoutes     int `json:"liveRoutes"`
	FreeRouteSlots int `json:"freeRouteSlots"`
	RouteSlots     int `json:"routeSlots"`

	LiveAddresses    int `json:"liveAddresses"`
	FreeAddressSlots int `json:"freeAddressSlots"`
	AddressSlots     int `json:"addressSlots"`
}

func (s *Store) Stats() Stats {
	return Stats{
		LiveRoutes:     len(s.routeLive),
		FreeRouteSlots: len(s.routeFree),
		RouteSlots:     len(s.routes),

		LiveAddresses:    len(s.addrLive),
		FreeAddressSlots: len(s.addrFree),
		AddressSlots:     len(s.addrs),
	}
}
