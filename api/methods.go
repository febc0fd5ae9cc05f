package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/meta-n4vn33t/ndppd/mirror"
)

func handleRoot(c echo.Context) error {
	cc := c.(*extendedContext)
	return c.JSONPretty(http.StatusOK, &rootResponse{
		ApiRoutes: cc.apiRoutes,
	}, JSON_PRETTY_INDENT)
}

// handleRoutes serves the mirrored routing table, most specific prefix
// first. An optional table parameter narrows it to one kernel table.
func handleRoutes(c echo.Context) error {
	cc := c.(*extendedContext)

	routes := cc.mirror.Routes()
	if raw := c.QueryParam("table"); raw != "" {
		table, err := parseTable(raw)
		if err != nil {
			return c.JSONPretty(http.StatusBadRequest, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
		}

		// Filter in place, the snapshot is ours.
		n := 0
		for _, route := range routes {
			if route.Table == table {
				routes[n] = route
				n++
			}
		}
		routes = routes[:n]
	}

	return c.JSONPretty(http.StatusOK, routes, JSON_PRETTY_INDENT)
}

func handleAddresses(c echo.Context) error {
	cc := c.(*extendedContext)
	return c.JSONPretty(http.StatusOK, cc.mirror.Addrs(), JSON_PRETTY_INDENT)
}

// handleLookup answers the longest-prefix match for a single address.
func handleLookup(c echo.Context) error {
	cc := c.(*extendedContext)

	addr, err := netip.ParseAddr(c.QueryParam("addr"))
	if err != nil {
		return c.JSONPretty(http.StatusBadRequest,
			&errorResponse{fmt.Sprintf("bad addr parameter: %v", err)}, JSON_PRETTY_INDENT)
	}
	if addr.Is4() || addr.Is4In6() {
		return c.JSONPretty(http.StatusBadRequest,
			&errorResponse{"only IPv6 addresses are mirrored"}, JSON_PRETTY_INDENT)
	}

	table := mirror.DefaultTable
	if raw := c.QueryParam("table"); raw != "" {
		if table, err = parseTable(raw); err != nil {
			return c.JSONPretty(http.StatusBadRequest, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
		}
	}

	route, ok := cc.mirror.FindRoute(addr, table)
	if !ok {
		return c.JSONPretty(http.StatusNotFound,
			&errorResponse{"no route contains the address"}, JSON_PRETTY_INDENT)
	}
	return c.JSONPretty(http.StatusOK, &lookupResponse{Addr: addr, Table: table, Route: route}, JSON_PRETTY_INDENT)
}

func handleStatus(c echo.Context) error {
	cc := c.(*extendedContext)
	return c.JSONPretty(http.StatusOK, &statusResponse{
		Stats:       cc.mirror.Stats(),
		EventCounts: cc.mirror.EventCounts(),
		DumpPending: cc.mirror.DumpPending(),
	}, JSON_PRETTY_INDENT)
}

// handleInterfaces lists /proc/net/dev counters, handy when eyeballing
// whether the interfaces behind the mirrored routes move traffic at all.
func handleInterfaces(c echo.Context) error {
	cc := c.(*extendedContext)

	if cc.pFS == nil {
		return c.JSONPretty(http.StatusServiceUnavailable,
			&errorResponse{"procfs isn't available on this host"}, JSON_PRETTY_INDENT)
	}

	netDev, err := cc.pFS.NetDev()
	if err != nil {
		return c.JSONPretty(http.StatusInternalServerError, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
	}

	counters := make([]interfaceCounters, 0, len(netDev))
	for _, line := range netDev {
		counters = append(counters, interfaceCounters{
			Name:      line.Name,
			RxBytes:   line.RxBytes,
			TxBytes:   line.TxBytes,
			RxPackets: line.RxPackets,
			TxPackets: line.TxPackets,
		})
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].Name < counters[j].Name })

	return c.JSONPretty(http.StatusOK, counters, JSON_PRETTY_INDENT)
}

func handleRouteDump(c echo.Context) error {
	cc := c.(*extendedContext)
	return dumpResponse(c, cc.mirror.QueryRoutes())
}

func handleAddressDump(c echo.Context) error {
	cc := c.(*extendedContext)
	return dumpResponse(c, cc.mirror.QueryAddresses())
}

// dumpResponse maps the monitor's dump errors onto status codes: a pending
// dump is a conflict, a missing kernel channel means we aren't serving yet.
func dumpResponse(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.JSONPretty(http.StatusAccepted, &statusMessage{"dump requested"}, JSON_PRETTY_INDENT)
	case errors.Is(err, mirror.ErrDumpPending):
		return c.JSONPretty(http.StatusConflict, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
	case errors.Is(err, mirror.ErrNotOpen):
		return c.JSONPretty(http.StatusServiceUnavailable, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
	default:
		return c.JSONPretty(http.StatusInternalServerError, &errorResponse{err.Error()}, JSON_PRETTY_INDENT)
	}
}

func parseTable(raw string) (uint32, error) {
	table, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad table parameter %q: %w", raw, err)
	}
	return uint32(table), nil
}
