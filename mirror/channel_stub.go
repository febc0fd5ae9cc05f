//go:build !linux && !freebsd

package mirror

import "errors"

// DefaultTable is the kernel table queries fall back to.
const DefaultTable uint32 = 254

// openChannel has no kernel to talk to on this platform; everything but the
// Open call (i.e. the store, the codecs and their tests) still works.
func openChannel() (Channel, error) {
	return nil, errors.New("no kernel channel on this platform")
}
