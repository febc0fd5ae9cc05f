package mirror

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/meta-n4vn33t/ndppd/types"
)

// netip types carry unexported fields but compare fine with ==; tell cmp so.
var prefixCmp = cmpopts.EquateComparable(netip.Prefix{})

func route(dst string, oif int, table uint32) types.Route {
	return types.Route{Dst: netip.MustParsePrefix(dst), OIF: oif, Table: table}
}

func address(addr string, ifIndex int) types.Address {
	return types.Address{IfIndex: ifIndex, Addr: netip.MustParsePrefix(addr)}
}

func TestUpsertRouteDeduplicates(t *testing.T) {
	s := Store{}

	if !s.UpsertRoute(route("2001:db8::/64", 3, 254)) {
		t.Fatal("the first upsert didn't insert")
	}

	// The same destination through another interface is a resend as far as
	// the mirror cares: nothing changes, the first sighting stays.
	if s.UpsertRoute(route("2001:db8::/64", 9, 254)) {
		t.Error("a duplicate destination was inserted")
	}

	got := s.Routes()
	want := []types.Route{route("2001:db8::/64", 3, 254)}
	if diff := cmp.Diff(want, got, prefixCmp); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}

	// A different prefix length or table is a different destination.
	if !s.UpsertRoute(route("2001:db8::/48", 3, 254)) {
		t.Error("a shorter prefix of the same destination was dropped")
	}
	if !s.UpsertRoute(route("2001:db8::/64", 3, 1000)) {
		t.Error("the same destination in another table was dropped")
	}
}

func TestUpsertRouteDeduplicatesPastInsertionPoint(t *testing.T) {
	s := Store{}

	s.UpsertRoute(route("2001:db8:a::/64", 1, 254))
	s.UpsertRoute(route("2001:db8:b::/64", 2, 254))

	// The duplicate's destination now sits behind another /64, i.e. behind
	// the would-be insertion point.
	if s.UpsertRoute(route("2001:db8:a::/64", 7, 254)) {
		t.Error("a duplicate hiding behind the insertion point was inserted")
	}
	if got := len(s.Routes()); got != 2 {
		t.Errorf("got %d routes, want 2", got)
	}
}

func TestRouteOrdering(t *testing.T) {
	s := Store{}

	for _, dst := range []string{
		"2001:db8::/64",
		"2001:db8::1/128",
		"::/0",
		"2001:db8::/96",
	} {
		s.UpsertRoute(route(dst, 1, 254))
	}

	var got []int
	for _, r := range s.Routes() {
		got = append(got, r.Dst.Bits())
	}
	want := []int{128, 96, 64, 0}
	if diff := cmp.Diff(want, got, prefixCmp); diff != "" {
		t.Errorf("prefix length order mismatch (-want +got):\n%s", diff)
	}
}

func TestRouteOrderingNewestFirstAmongEquals(t *testing.T) {
	s := Store{}

	s.UpsertRoute(route("2001:db8:a::/64", 1, 254))
	s.UpsertRoute(route("2001:db8:b::/64", 2, 254))
	s.UpsertRoute(route("2001:db8:c::/64", 3, 254))

	got := s.Routes()
	want := []types.Route{
		route("2001:db8:c::/64", 3, 254),
		route("2001:db8:b::/64", 2, 254),
		route("2001:db8:a::/64", 1, 254),
	}
	if diff := cmp.Diff(want, got, prefixCmp); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestFindRoute(t *testing.T) {
	s := Store{}
	s.UpsertRoute(route("2001:db8::/32", 1, 254))
	s.UpsertRoute(route("2001:db8:1::/48", 2, 254))

	tests := []struct {
		name    string
		addr    string
		table   uint32
		wantOIF int
		wantOK  bool
	}{
		{"inside both, the more specific wins", "2001:db8:1::42", 254, 2, true},
		{"inside the /32 only", "2001:db8:2::1", 254, 1, true},
		{"outside both", "2001:db9::1", 254, 0, false},
		{"right address, wrong table", "2001:db8:1::42", 1000, 0, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := s.FindRoute(netip.MustParseAddr(test.addr), test.table)
			if ok != test.wantOK {
				t.Fatalf("got ok %v, want %v", ok, test.wantOK)
			}
			if ok && got.OIF != test.wantOIF {
				t.Errorf("got %v, want the route through interface %d", got, test.wantOIF)
			}
		})
	}
}

func TestRemoveRouteMatchesOnInterface(t *testing.T) {
	s := Store{}
	s.UpsertRoute(route("2001:db8::/64", 7, 254))

	// Same destination, wrong interface: the removal must not take.
	if s.RemoveRoute(route("2001:db8::/64", 5, 254)) {
		t.Error("a removal through the wrong interface took a route down")
	}
	if got := len(s.Routes()); got != 1 {
		t.Fatalf("got %d routes, want the original to survive", got)
	}

	if !s.RemoveRoute(route("2001:db8::/64", 7, 254)) {
		t.Error("the exact removal didn't take")
	}
	if got := len(s.Routes()); got != 0 {
		t.Errorf("got %d routes, want none", got)
	}
}

func TestSlotRecycling(t *testing.T) {
	s := Store{}

	dsts := []string{"2001:db8:1::/64", "2001:db8:2::/64", "2001:db8:3::/64", "2001:db8:4::/64"}
	for i, dst := range dsts {
		s.UpsertRoute(route(dst, i+1, 254))
	}
	if got := s.Stats().RouteSlots; got != 4 {
		t.Fatalf("got %d slots after 4 inserts, want 4", got)
	}

	s.RemoveRoute(route("2001:db8:2::/64", 2, 254))
	s.RemoveRoute(route("2001:db8:3::/64", 3, 254))

	// Fresh inserts must reuse the two freed slots instead of growing the
	// arena past its high-water mark.
	s.UpsertRoute(route("2001:db8:5::/64", 5, 254))
	s.UpsertRoute(route("2001:db8:6::/64", 6, 254))

	stats := s.Stats()
	if stats.RouteSlots != 4 {
		t.Errorf("got %d slots after churn, want 4", stats.RouteSlots)
	}
	if stats.LiveRoutes != 4 || stats.FreeRouteSlots != 0 {
		t.Errorf("got %d live and %d free, want 4 and 0", stats.LiveRoutes, stats.FreeRouteSlots)
	}

	want := []types.Route{
		route("2001:db8:6::/64", 6, 254),
		route("2001:db8:5::/64", 5, 254),
		route("2001:db8:4::/64", 4, 254),
		route("2001:db8:1::/64", 1, 254),
	}
	if diff := cmp.Diff(want, s.Routes(), prefixCmp); diff != "" {
		t.Errorf("routes after churn mismatch (-want +got):\n%s", diff)
	}
}

func TestAddressStore(t *testing.T) {
	s := Store{}

	if !s.UpsertAddress(address("fe80::1/64", 2)) {
		t.Fatal("the first upsert didn't insert")
	}
	if s.UpsertAddress(address("fe80::1/64", 2)) {
		t.Error("a duplicate address was inserted")
	}

	// The same address on another interface is a distinct entry.
	if !s.UpsertAddress(address("fe80::1/64", 3)) {
		t.Error("the same address on another interface was dropped")
	}

	if s.RemoveAddress(address("fe80::2/64", 2)) {
		t.Error("removing an unknown address reported a change")
	}
	if !s.RemoveAddress(address("fe80::1/64", 2)) {
		t.Error("removing a live address didn't take")
	}

	got := s.Addrs()
	want := []types.Address{address("fe80::1/64", 3)}
	if diff := cmp.Diff(want, got, prefixCmp); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}

	// Address slots recycle like route slots do.
	s.UpsertAddress(address("fe80::9/64", 9))
	if got := s.Stats().AddressSlots; got != 2 {
		t.Errorf("got %d slots after churn, want 2", got)
	}
}
