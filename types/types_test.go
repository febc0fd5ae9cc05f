package types

import (
	"net/netip"
	"testing"
)

func TestRouteKeys(t *testing.T) {
	base := Route{Dst: netip.MustParsePrefix("2001:db8::/64"), OIF: 5, Table: 0}

	otherIf := base
	otherIf.OIF = 7
	if !base.SameDestination(otherIf) {
		t.Errorf("insertion key must ignore the interface: %s vs %s", base, otherIf)
	}
	if base.Matches(otherIf) {
		t.Errorf("deletion key must require an interface match: %s vs %s", base, otherIf)
	}

	otherTable := base
	otherTable.Table = 254
	if base.SameDestination(otherTable) {
		t.Errorf("routes in different tables must not share a key: %s vs %s", base, otherTable)
	}

	otherLen := base
	otherLen.Dst = netip.MustParsePrefix("2001:db8::/80")
	if base.SameDestination(otherLen) {
		t.Errorf("differing prefix lengths must not share a key: %s vs %s", base, otherLen)
	}
}

func TestEventString(t *testing.T) {
	e := Event{Kind: NewRoute, Route: Route{Dst: netip.MustParsePrefix("2001:db8::/32"), OIF: 2}}
	if got := e.String(); got != "new-route 2001:db8::/32 dev 2 table 0 owned false" {
		t.Errorf("unexpected event rendering: %q", got)
	}

	if got := (Event{Kind: DumpComplete}).String(); got != "dump-complete" {
		t.Errorf("unexpected dump-complete rendering: %q", got)
	}
}
