package types

import (
	"math/bits"
)

/*
 * Goodies for dealing with the netmask representation the routing socket
 * hands us. Prefix matching itself is netip.Prefix's job.
 */

// PrefixLenFromMask counts the leading one bits of a netmask. The count stops
// at the first byte that isn't all ones, which is what the kernel does with
// the non-contiguous masks nobody should be using anyway.
func PrefixLenFromMask(mask []byte) int {
	pflen := 0
	for _, b := range mask {
		if b == 0xff {
			pflen += 8
			continue
		}
		pflen += bits.LeadingZeros8(^b)
		break
	}
	return pflen
}

// MaskFromPrefixLen is the inverse: a 16-byte netmask with pflen leading one
// bits. Prefix lengths outside [0, 128] are clamped.
func MaskFromPrefixLen(pflen int) [16]byte {
	var mask [16]byte
	if pflen > 128 {
		pflen = 128
	}
	for i := 0; i < 16 && pflen > 0; i++ {
		if pflen >= 8 {
			mask[i] = 0xff
			pflen -= 8
			continue
		}
		mask[i] = byte(0xff << (8 - pflen))
		pflen = 0
	}
	return mask
}
