// Package page manages the transient working copy of one page of a
// section while relocations are applied to it.
package page

import (
	"fmt"

	"github.com/tchajed/goose/machine"

	"github.com/mit-pdos/go-picboot/common"
)

// A Page is a buffered chunk of a section. LinkAddr is the link-time
// address of the first byte, which is what relocation records are
// expressed against.
type Page struct {
	LinkAddr common.LinkAddr
	Data     []byte
	dirty    bool // has any word in this page changed?
}

func MkPage(linkAddr common.LinkAddr, data []byte) *Page {
	return &Page{
		LinkAddr: linkAddr,
		Data:     data,
		dirty:    false,
	}
}

func (p *Page) checkOff(off uint64) {
	if off%common.WordSize != 0 {
		panic(fmt.Errorf("page: unaligned word offset %d", off))
	}
	if off+common.WordSize > uint64(len(p.Data)) {
		panic(fmt.Errorf("page: word offset %d out of range", off))
	}
}

// WordGet reads the pointer-sized word at a byte offset into the page.
// The offset must be word-aligned and in range; callers validate
// offsets against the page bounds before use.
func (p *Page) WordGet(off uint64) common.Word {
	p.checkOff(off)
	return machine.UInt64Get(p.Data[off : off+common.WordSize])
}

// WordPut stores w at a byte offset, marking the page dirty only if
// the stored value actually changes. Dirtiness is what decides whether
// the page costs a flash write.
func (p *Page) WordPut(off uint64, w common.Word) {
	p.checkOff(off)
	if machine.UInt64Get(p.Data[off:off+common.WordSize]) == w {
		return
	}
	machine.UInt64Put(p.Data[off:off+common.WordSize], w)
	p.dirty = true
}

func (p *Page) IsDirty() bool {
	return p.dirty
}
