//go:build linux

package mirror

import (
	"github.com/meta-n4vn33t/ndppd/netlink"
)

// DefaultTable is the kernel table queries fall back to: RT_TABLE_MAIN.
const DefaultTable uint32 = 254

// openChannel builds the platform's kernel channel: an rtnetlink socket
// subscribed to the IPv6 route and address notification groups.
func openChannel() (Channel, error) {
	return netlink.Open()
}
