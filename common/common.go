package common

import (
	"github.com/xyproto/env/v2"
)

// A LinkAddr is the absolute address a word was assigned when the
// image was statically linked; a RunAddr is the address the same byte
// occupies once the image is installed on this device instance.
type LinkAddr = uint64
type RunAddr = uint64

// Word is one pointer-sized value in the image.
type Word = uint64

const (
	WordSize uint64 = 8

	DefaultPageSize uint64 = 512

	// MaxWrite is the programming granularity of the persistent
	// store; no single write may exceed it.
	MaxWrite uint64 = 4096
)

// PageSize returns the relocation page size in bytes.
//
// The page size is bounded by the transient memory available on the
// device variant, not by the on-flash format, so it is a tunable
// (PICBOOT_PAGE_SIZE) rather than a protocol constant. Values that are
// not a power of two, smaller than a word, or larger than MaxWrite
// fall back to the default.
func PageSize() uint64 {
	sz := uint64(env.Int("PICBOOT_PAGE_SIZE", int(DefaultPageSize)))
	if sz < WordSize || sz > MaxWrite || sz&(sz-1) != 0 {
		return DefaultPageSize
	}
	return sz
}
