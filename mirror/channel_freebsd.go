//go:build freebsd

package mirror

import (
	"github.com/meta-n4vn33t/ndppd/rtsock"
)

// DefaultTable is the kernel table queries fall back to. The routing socket
// has a single table, reported as 0.
const DefaultTable uint32 = 0

// openChannel builds the platform's kernel channel: a raw routing socket
// restricted to the IPv6 protocol.
func openChannel() (Channel, error) {
	return rtsock.Open()
}
