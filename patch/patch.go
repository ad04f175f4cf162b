// Package patch implements the relocation page patcher. It walks a
// section in page-sized chunks, buffers each chunk, applies every
// relocation that lands in it, and commits only chunks that changed;
// flash writes are the scarce resource everything else is traded for.
package patch

import (
	"fmt"

	"github.com/mit-pdos/go-picboot/common"
	"github.com/mit-pdos/go-picboot/flash"
	"github.com/mit-pdos/go-picboot/nvram"
	"github.com/mit-pdos/go-picboot/page"
	"github.com/mit-pdos/go-picboot/pic"
	"github.com/mit-pdos/go-picboot/reloc"
	"github.com/mit-pdos/go-picboot/util"
)

// FlashRegion is a flash device mapped into the run-time address
// space at Base.
type FlashRegion struct {
	D    flash.Device
	Base common.RunAddr
}

func (f FlashRegion) off(addr common.RunAddr) uint64 {
	if addr < f.Base || addr-f.Base >= f.D.Size() {
		panic(fmt.Errorf("patch: run address 0x%x outside flash region", addr))
	}
	return addr - f.Base
}

// ReadAt fills buf from the flash bytes at run-time address addr.
func (f FlashRegion) ReadAt(addr common.RunAddr, buf []byte) error {
	return f.D.ReadAt(f.off(addr), buf)
}

// Memory is the device RAM mapped at Base. Volatile destinations are
// rebuilt here every boot.
type Memory struct {
	Base common.RunAddr
	Data []byte
}

func MkMemory(base common.RunAddr, size uint64) *Memory {
	return &Memory{Base: base, Data: make([]byte, size)}
}

func (m *Memory) off(addr common.RunAddr, n uint64) uint64 {
	if addr < m.Base || addr-m.Base+n > uint64(len(m.Data)) {
		panic(fmt.Errorf("patch: run address 0x%x+%d outside memory", addr, n))
	}
	return addr - m.Base
}

// WriteAt copies data into RAM at run-time address addr.
func (m *Memory) WriteAt(addr common.RunAddr, data []byte) {
	off := m.off(addr, uint64(len(data)))
	copy(m.Data[off:off+uint64(len(data))], data)
}

// ReadAt fills buf from RAM at run-time address addr.
func (m *Memory) ReadAt(addr common.RunAddr, buf []byte) {
	off := m.off(addr, uint64(len(buf)))
	copy(buf, m.Data[off:off+uint64(len(buf))])
}

// Zero clears n bytes at run-time address addr.
func (m *Memory) Zero(addr common.RunAddr, n uint64) {
	off := m.off(addr, n)
	for i := off; i < off+n; i++ {
		m.Data[i] = 0
	}
}

// Patcher applies one relocation table to sections, one page at a
// time.
type Patcher struct {
	Table    reloc.Table
	Xlate    pic.Translator
	Move     nvram.MoveTracker
	PageSize uint64
}

func MkPatcher(table reloc.Table, xlate pic.Translator, move nvram.MoveTracker) *Patcher {
	return &Patcher{
		Table:    table,
		Xlate:    xlate,
		Move:     move,
		PageSize: common.PageSize(),
	}
}

// fixupPage applies every relocation whose target falls inside the
// page. The table is rescanned in full: records belonging to other
// pages compute an offset outside [0, n) (unsigned wraparound puts
// records before the page start out of range too) and are skipped
// here, to be picked up by their own page.
func (p *Patcher) fixupPage(pg *page.Page, n uint64) {
	for _, r := range p.Table {
		off := r.LinkAddr - pg.LinkAddr
		if off >= n || off+common.WordSize > n {
			continue
		}
		if off%common.WordSize != 0 {
			// relocation targets are word-aligned by construction;
			// a misaligned record cannot be applied to this page
			util.DPrintf(1, "patch: skipping misaligned reloc 0x%x\n", r.LinkAddr)
			continue
		}
		old := pg.WordGet(off)
		new := p.Move.Compensate(old, p.Xlate(old))
		pg.WordPut(off, new)
	}
}

// PatchFlash relocates a section whose destination persists. Pages
// are processed in increasing offset order; only changed pages are
// written, and every write is read back and verified. Returns the
// number of pages committed.
func (p *Patcher) PatchFlash(sec reloc.Section, fl FlashRegion) (uint64, error) {
	var written uint64
	srcRun := p.Xlate(sec.Src)
	for i := uint64(0); i < sec.Length; i += p.PageSize {
		n := util.Min(p.PageSize, sec.Length-i)
		buf := make([]byte, n)
		if err := fl.ReadAt(srcRun+i, buf); err != nil {
			return written, err
		}
		pg := page.MkPage(sec.Dst+i, buf)
		p.fixupPage(pg, n)
		if !pg.IsDirty() {
			util.DPrintf(5, "patch: page 0x%x unchanged\n", sec.Dst+i)
			continue
		}
		dstRun := p.Xlate(sec.Dst + i)
		if err := flash.WriteVerified(fl.D, fl.off(dstRun), pg.Data); err != nil {
			return written, err
		}
		written++
		util.DPrintf(2, "patch: page 0x%x committed to flash\n", sec.Dst+i)
	}
	return written, nil
}

// PatchMemory relocates a section into RAM at dstRun. Every page is
// written back whether it changed or not; RAM writes cost nothing and
// the destination is rebuilt from the flash source each boot anyway.
func (p *Patcher) PatchMemory(sec reloc.Section, fl FlashRegion, mem *Memory, dstRun common.RunAddr) error {
	srcRun := p.Xlate(sec.Src)
	for i := uint64(0); i < sec.Length; i += p.PageSize {
		n := util.Min(p.PageSize, sec.Length-i)
		buf := make([]byte, n)
		if err := fl.ReadAt(srcRun+i, buf); err != nil {
			return err
		}
		pg := page.MkPage(sec.Dst+i, buf)
		p.fixupPage(pg, n)
		mem.WriteAt(dstRun+i, pg.Data)
	}
	return nil
}
