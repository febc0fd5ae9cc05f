// Package mirror maintains a live, in-process copy of the kernel's IPv6
// routing and address tables. A Monitor owns a kernel channel (rtnetlink on
// Linux, the routing socket on FreeBSD), drains its notifications into a
// Store, answers longest-prefix lookups against the mirrored state and
// pushes route mutations back at the kernel.
package mirror

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/meta-n4vn33t/ndppd/types"
)

// ErrDumpPending is returned by the query methods while an earlier dump
// request hasn't delivered its completion marker yet.
var ErrDumpPending = errors.New("a kernel dump is already pending")

// ErrNotOpen is returned by operations needing the kernel channel before
// Open has succeeded.
var ErrNotOpen = errors.New("the kernel channel isn't open")

// aLongTimeAgo is a deadline certain to have expired already; pointing the
// channel's read deadline at it yanks a blocked drain loop.
var aLongTimeAgo = time.Unix(1, 0)

// Channel is the kernel-facing half of the monitor. Implementations wrap
// one platform's socket flavour; they are chosen at build time and never
// mixed.
type Channel interface {
	Close() error

	// SetReadDeadline bounds blocked Receive calls, shutdown's only way of
	// interrupting the drain loop.
	SetReadDeadline(t time.Time) error

	// Receive blocks for the next batch of kernel notifications.
	Receive() ([]types.Event, error)

	// RequestRouteDump asks the kernel for its full routing table. An
	// asynchronous implementation only files the request and returns done ==
	// false: the entries arrive through Receive, closed off by a
	// DumpComplete marker. A synchronous one hands back the whole decoded
	// snapshot with done == true.
	RequestRouteDump() (events []types.Event, done bool, err error)

	// RequestAddressDump is RequestRouteDump for the interface address table.
	RequestAddressDump() (events []types.Event, done bool, err error)

	// AddRoute and RemoveRoute file route mutations. Fire and forget: a nil
	// error means the request left this process, nothing more.
	AddRoute(dst netip.Prefix, oif int, table uint32) error
	RemoveRoute(dst netip.Prefix, table uint32) error
}

// Monitor ties a kernel channel to a Store. All of its state sits behind one
// mutex: the drain loop applies notifications while queries, mutations and
// the HTTP handlers poke at the mirror from their own goroutines.
type Monitor struct {
	conf Config

	// now is time.Now outside of tests.
	now func() time.Time

	// dial builds the platform channel; swapped out in tests.
	dial func() (Channel, error)

	mu           sync.Mutex
	channel      Channel
	store        Store
	dumpDeadline time.Time
	eventCounts  map[types.EventKind]uint64
}

func New(conf Config) *Monitor {
	if conf.DumpGraceMilliseconds <= 0 {
		conf.DumpGraceMilliseconds = DefaultConfig.DumpGraceMilliseconds
	}
	return &Monitor{
		conf:        conf,
		now:         time.Now,
		dial:        openChannel,
		eventCounts: map[types.EventKind]uint64{},
	}
}

func (m *Monitor) dumpGrace() time.Duration {
	return time.Duration(m.conf.DumpGraceMilliseconds) * time.Millisecond
}

// Open acquires the kernel channel. Opening an already open monitor is a
// no-op, so racing startup paths can all call it. On failure the monitor
// stays unopened and Open may simply be tried again.
func (m *Monitor) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel != nil {
		return nil
	}

	channel, err := m.dial()
	if err != nil {
		return fmt.Errorf("couldn't open the kernel channel: %w", err)
	}
	m.channel = channel

	slog.Debug("opened the kernel channel")
	return nil
}

// Cleanup releases the kernel channel. Safe on a monitor that was never
// opened; afterwards the monitor can be opened anew.
func (m *Monitor) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return nil
	}

	err := m.channel.Close()
	m.channel = nil
	if err != nil {
		return fmt.Errorf("couldn't close the kernel channel: %w", err)
	}
	return nil
}

// Run drains the kernel channel until done closes, folding every decoded
// notification into the mirror. It is the only reader of the channel. A
// blocked Receive is unblocked on shutdown by moving the read deadline into
// the past.
func (m *Monitor) Run(done <-chan struct{}) {
	m.mu.Lock()
	channel := m.channel
	m.mu.Unlock()
	if channel == nil {
		slog.Error("running an unopened monitor; no notifications will arrive")
		return
	}

	slog.Debug("draining kernel notifications")

	go func() {
		<-done
		if err := channel.SetReadDeadline(aLongTimeAgo); err != nil {
			slog.Warn("couldn't unblock the drain loop", "err", err)
		}
	}()

	for {
		events, err := channel.Receive()
		if err != nil {
			select {
			case <-done:
				slog.Debug("drained the last kernel notification")
				return
			default:
			}
			if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, os.ErrClosed) {
				slog.Debug("the kernel channel is gone", "err", err)
				return
			}
			// Kernel-reported errors (e.g. an addition the kernel refused)
			// surface here too; they void single requests, not the session.
			slog.Warn("error receiving kernel notifications", "err", err)
			continue
		}
		m.Apply(events)
	}
}

// Apply folds a batch of decoded notifications into the mirror.
func (m *Monitor) Apply(events []types.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(events)
}

func (m *Monitor) applyLocked(events []types.Event) {
	for _, event := range events {
		m.eventCounts[event.Kind]++

		if event.Kind == types.DumpComplete {
			slog.Debug("kernel dump complete")
			m.dumpDeadline = time.Time{}
			continue
		}
		if m.store.Apply(event) {
			slog.Debug("applied a kernel notification", "event", event)
		}
	}
}

// QueryRoutes asks the kernel for a full routing table dump. While an
// earlier dump hasn't completed and its grace period hasn't elapsed, the
// request is refused with ErrDumpPending: dumps are expensive, and a lost
// completion marker must not turn restarts into a request storm.
func (m *Monitor) QueryRoutes() error {
	return m.query("route", Channel.RequestRouteDump)
}

// QueryAddresses is QueryRoutes for the interface address table.
func (m *Monitor) QueryAddresses() error {
	return m.query("address", Channel.RequestAddressDump)
}

func (m *Monitor) query(table string, request func(Channel) ([]types.Event, bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return ErrNotOpen
	}

	now := m.now()
	if !m.dumpDeadline.IsZero() && now.Before(m.dumpDeadline) {
		return ErrDumpPending
	}

	// The deadline goes up before the request leaves, and a failed request
	// keeps it: the kernel may have seen the request even when the send
	// errored, so retrying is only allowed once the grace period passes.
	m.dumpDeadline = now.Add(m.dumpGrace())
	slog.Debug("requesting a kernel dump", "table", table)

	events, done, err := request(m.channel)
	if done {
		// A synchronous dump is over by the time the call returns, success
		// or not; no completion marker will ever travel the socket.
		m.dumpDeadline = time.Time{}
	}
	if err != nil {
		return fmt.Errorf("couldn't dump the kernel %s table: %w", table, err)
	}

	m.applyLocked(events)
	return nil
}

// DumpPending reports whether a dump request is still within its grace
// period, waiting on a completion marker.
func (m *Monitor) DumpPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dumpDeadline.IsZero() && m.now().Before(m.dumpDeadline)
}

// AddRoute asks the kernel to install a route for dst through interface oif.
// Fire and forget: a nil return means the request left the socket, not that
// the kernel accepted it. The mirror picks the route up when the kernel's
// own notification echoes back, tagged as ours.
func (m *Monitor) AddRoute(dst netip.Prefix, oif int, table uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return ErrNotOpen
	}

	slog.Debug("requesting a route addition", "dst", dst, "oif", oif, "table", table)
	if err := m.channel.AddRoute(dst, oif, table); err != nil {
		return fmt.Errorf("couldn't request the route addition: %w", err)
	}
	return nil
}

// RemoveRoute asks the kernel to withdraw the route for dst. Fire and
// forget, like AddRoute; the mirror entry goes away with the kernel's
// deletion notification.
func (m *Monitor) RemoveRoute(dst netip.Prefix, table uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return ErrNotOpen
	}

	slog.Debug("requesting a route removal", "dst", dst, "table", table)
	if err := m.channel.RemoveRoute(dst, table); err != nil {
		return fmt.Errorf("couldn't request the route removal: %w", err)
	}
	return nil
}

// RemoveOwnedRoutes files a removal for every live route this process
// installed, one each, and returns how many requests went out. The mirror
// entries themselves only drop once the kernel confirms the removals.
func (m *Monitor) RemoveOwnedRoutes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channel == nil {
		return 0
	}

	issued := 0
	for _, route := range m.store.Routes() {
		if !route.Owned {
			continue
		}
		if err := m.channel.RemoveRoute(route.Dst, route.Table); err != nil {
			slog.Warn("couldn't request an owned route's removal", "route", route, "err", err)
			continue
		}
		issued++
	}

	if issued > 0 {
		slog.Info("requested the removal of owned routes", "n", issued)
	}
	return issued
}

// FindRoute returns the most specific mirrored route containing addr in the
// given table.
func (m *Monitor) FindRoute(addr netip.Addr, table uint32) (types.Route, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.FindRoute(addr, table)
}

// Routes returns a copy of the mirrored routes, most specific first.
func (m *Monitor) Routes() []types.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Routes()
}

// Addrs returns a copy of the mirrored interface addresses.
func (m *Monitor) Addrs() []types.Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Addrs()
}

// Stats returns the mirror's occupancy counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Stats()
}

// EventCounts returns how many notifications of each kind the monitor has
// seen, keyed by the kind's name.
func (m *Monitor) EventCounts() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]uint64, len(m.eventCounts))
	for kind, n := range m.eventCounts {
		counts[kind.String()] = n
	}
	return counts
}
