//go:build freebsd

package rtsock

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/meta-n4vn33t/ndppd/types"
)

// Conn is an open routing socket restricted to the IPv6 protocol. Snapshots
// don't travel over the socket at all; see the dump methods.
type Conn struct {
	f *os.File
}

// Open acquires the routing socket. The socket is switched to non-blocking
// mode up front so reads honour deadlines through the runtime poller.
func Open() (*Conn, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_INET6)
	if err != nil {
		return nil, fmt.Errorf("error opening the routing socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error making the routing socket non-blocking: %w", err)
	}
	slog.Debug("opened the routing socket", "fd", fd)
	return &Conn{f: os.NewFile(uintptr(fd), "route")}, nil
}

func (c *Conn) Close() error {
	return c.f.Close()
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.f.SetReadDeadline(t)
}

// Receive reads one batch of kernel notifications. The kernel echoes our own
// mutations back at us as well, which is how owned routes find their way
// into the mirror.
func (c *Conn) Receive() ([]types.Event, error) {
	b := make([]byte, 4096)
	n, err := c.f.Read(b)
	if err != nil {
		return nil, err
	}
	return ParseDatagram(b[:n]), nil
}

// RequestRouteDump grabs a snapshot of the kernel's routing table. On BSD
// this is a synchronous sysctl exchange rather than a request over the
// socket, so the events are already complete when this returns.
func (c *Conn) RequestRouteDump() ([]types.Event, bool, error) {
	events, err := sysctlDump(unix.NET_RT_DUMP)
	return events, true, err
}

// RequestAddressDump grabs a snapshot of the configured interface addresses.
// Synchronous, same as RequestRouteDump.
func (c *Conn) RequestAddressDump() ([]types.Event, bool, error) {
	events, err := sysctlDump(unix.NET_RT_IFLIST)
	return events, true, err
}

func sysctlDump(kind int) ([]types.Event, error) {
	// The mib spells net.route.0.0.<kind>.0; SysctlRaw sizes the buffer
	// with a first probing call before fetching the payload.
	b, err := unix.SysctlRaw("net.route", 0, 0, kind, 0)
	if err != nil {
		return nil, fmt.Errorf("error dumping kernel state through sysctl: %w", err)
	}
	return ParseDatagram(b), nil
}

// AddRoute installs dst through interface oif. The routing socket knows
// nothing of multiple routing tables, so table is accepted for interface
// symmetry and ignored.
func (c *Conn) AddRoute(dst netip.Prefix, oif int, table uint32) error {
	if _, err := c.f.Write(encodeRouteAdd(dst, oif, os.Getpid())); err != nil {
		return fmt.Errorf("error writing the route addition: %w", err)
	}
	return nil
}

// RemoveRoute withdraws dst. As with AddRoute, table is ignored.
func (c *Conn) RemoveRoute(dst netip.Prefix, table uint32) error {
	if _, err := c.f.Write(encodeRouteDelete(dst, os.Getpid())); err != nil {
		return fmt.Errorf("error writing the route removal: %w", err)
	}
	return nil
}
