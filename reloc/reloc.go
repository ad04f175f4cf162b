// Package reloc holds the link step's output as seen at run time: the
// relocation table, the section descriptors, and the image layout
// resolved from the platform's section symbols. Everything here is
// read-only once the linker produced it.
package reloc

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-picboot/common"
)

// Record names one pointer-sized word, by its link-time address, that
// must be rewritten before the image runs.
type Record struct {
	LinkAddr common.LinkAddr
}

// Table is the full relocation table. Ascending link-address order is
// typical but nothing relies on it; the patcher rescans the table for
// every page.
type Table []Record

// EncodeTable packs a table the way the link step emits it: a count
// followed by the link addresses.
func EncodeTable(t Table) []byte {
	enc := marshal.NewEnc(8 + 8*uint64(len(t)))
	enc.PutInt(uint64(len(t)))
	addrs := make([]uint64, 0, len(t))
	for _, r := range t {
		addrs = append(addrs, uint64(r.LinkAddr))
	}
	enc.PutInts(addrs)
	return enc.Finish()
}

// DecodeTable reads a packed table back.
func DecodeTable(b []byte) Table {
	dec := marshal.NewDec(b)
	n := dec.GetInt()
	addrs := dec.GetInts(n)
	t := make(Table, 0, n)
	for _, a := range addrs {
		t = append(t, Record{LinkAddr: common.LinkAddr(a)})
	}
	return t
}

// Section is one contiguous run of pointer-bearing bytes.
//
// Src and Dst are link-time addresses. For the persisted section the
// destination stays in flash and is patched in place; for a volatile
// section the destination is rebuilt in RAM on every boot, so there is
// nothing durable to protect.
type Section struct {
	Src      common.LinkAddr
	Dst      common.LinkAddr
	Length   uint64
	Volatile bool
}

// Layout carries the link-resolved symbols the loader needs: the three
// sections, the flash offset of the boot-record page, the persistent
// region bounds for this boot, and the RAM destinations of the
// volatile sections. The platform resolves these; the loader treats
// them as constants.
type Layout struct {
	ROData Section
	Data   Section

	BssDst common.LinkAddr
	BssLen uint64

	// MarkerOff is the flash offset of the reserved boot-record page.
	MarkerOff uint64

	// NvramBase/NvramEnd bound the persistent region at run time,
	// this boot.
	NvramBase common.RunAddr
	NvramEnd  common.RunAddr

	// DataRun and BssRun are where the volatile sections land in RAM.
	DataRun common.RunAddr
	BssRun  common.RunAddr
}

// Sections returns the fixed processing order: persisted read-only
// data first, then initialized data, then the zero-fill section.
func (l *Layout) Sections() []Section {
	return []Section{
		l.ROData,
		l.Data,
		{Dst: l.BssDst, Length: l.BssLen, Volatile: true},
	}
}
