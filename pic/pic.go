// Package pic defines the link-time to run-time address translation.
// The real translator is architecture-specific and supplied by the
// platform; this package only fixes its shape and provides the
// translators used on hosts and in tests.
package pic

import (
	"github.com/mit-pdos/go-picboot/common"
)

// Translator maps a link-time absolute address to the run-time
// absolute address for the current image placement. It must be pure
// and total over valid link addresses; addresses outside the image are
// returned unchanged.
type Translator func(common.LinkAddr) common.RunAddr

// Identity is the translator for an image installed exactly at its
// link address.
func Identity(a common.LinkAddr) common.RunAddr {
	return a
}

// FixedOffset shifts every address by delta.
func FixedOffset(delta int64) Translator {
	return func(a common.LinkAddr) common.RunAddr {
		return common.RunAddr(uint64(int64(a) + delta))
	}
}

// RegionOffset shifts addresses inside [start, end) by delta and
// leaves everything else where it was linked. This is the shape of a
// real placement: only the image's own range moves.
func RegionOffset(start, end common.LinkAddr, delta int64) Translator {
	return func(a common.LinkAddr) common.RunAddr {
		if a >= start && a < end {
			return common.RunAddr(uint64(int64(a) + delta))
		}
		return common.RunAddr(a)
	}
}
