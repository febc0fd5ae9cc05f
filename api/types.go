package api

import (
	"net/netip"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/procfs"

	"github.com/meta-n4vn33t/ndppd/mirror"
	"github.com/meta-n4vn33t/ndppd/types"
)

const (
	JSON_PRETTY_INDENT string = "    "
)

// Mirror is the slice of the monitor the API serves. *mirror.Monitor
// implements it; tests stand in fakes.
type Mirror interface {
	Routes() []types.Route
	Addrs() []types.Address
	FindRoute(addr netip.Addr, table uint32) (types.Route, bool)
	Stats() mirror.Stats
	EventCounts() map[string]uint64
	DumpPending() bool
	QueryRoutes() error
	QueryAddresses() error
}

type rootResponse struct {
	ApiRoutes []*echo.Route `json:"apiRoutes"`
}

type statusResponse struct {
	Stats       mirror.Stats      `json:"stats"`
	EventCounts map[string]uint64 `json:"eventCounts"`
	DumpPending bool              `json:"dumpPending"`
}

type lookupResponse struct {
	Addr  netip.Addr  `json:"addr"`
	Table uint32      `json:"table"`
	Route types.Route `json:"route"`
}

type interfaceCounters struct {
	Name      string `json:"name"`
	RxBytes   uint64 `json:"rxBytes"`
	TxBytes   uint64 `json:"txBytes"`
	RxPackets uint64 `json:"rxPackets"`
	TxPackets uint64 `json:"txPackets"`
}

type statusMessage struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type extendedContext struct {
	echo.Context
	apiRoutes []*echo.Route
	mirror    Mirror
	pFS       *procfs.FS
}
