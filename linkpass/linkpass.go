// Package linkpass runs the whole boot-time relocation: a crash-safe
// pass over the persisted read-only section, a rebuild of the
// initialized-data section in RAM, and a zero fill of the
// uninitialized section, in that order.
package linkpass

import (
	"github.com/mit-pdos/go-picboot/common"
	"github.com/mit-pdos/go-picboot/nvram"
	"github.com/mit-pdos/go-picboot/patch"
	"github.com/mit-pdos/go-picboot/pic"
	"github.com/mit-pdos/go-picboot/reloc"
	"github.com/mit-pdos/go-picboot/util"
)

// Pass relocates one image against one placement.
type Pass struct {
	Flash    patch.FlashRegion
	Mem      *patch.Memory
	Layout   reloc.Layout
	Table    reloc.Table
	Xlate    pic.Translator
	PageSize uint64
}

func MkPass(fl patch.FlashRegion, mem *patch.Memory, layout reloc.Layout,
	table reloc.Table, xlate pic.Translator) *Pass {
	return &Pass{
		Flash:    fl,
		Mem:      mem,
		Layout:   layout,
		Table:    table,
		Xlate:    xlate,
		PageSize: common.PageSize(),
	}
}

// Run performs the full relocation. Any error is fatal to the boot:
// either a previous pass was interrupted (nvram.ErrInterrupted) or a
// flash write failed verification (flash.ErrVerify). There is no
// partial continuation.
func (p *Pass) Run() error {
	// The persisted section runs inside the commit bracket. Begin
	// halts before any section byte is touched if the previous pass
	// never finished.
	c, prev, err := nvram.Begin(p.Flash.D, p.Layout.MarkerOff,
		p.Layout.NvramBase, p.Layout.NvramEnd)
	if err != nil {
		return err
	}
	move := nvram.MkMoveTracker(prev, p.Layout.NvramBase)
	ro := &patch.Patcher{
		Table:    p.Table,
		Xlate:    p.Xlate,
		Move:     move,
		PageSize: p.PageSize,
	}
	written, err := ro.PatchFlash(p.Layout.ROData, p.Flash)
	if err != nil {
		return err
	}
	if err := c.Complete(); err != nil {
		return err
	}
	util.DPrintf(1, "linkpass: rodata done, %d pages written\n", written)

	// The initialized-data section is rebuilt in RAM every boot, so
	// there is nothing durable to protect and no move compensation to
	// apply; the persisted boot record already matches this placement.
	data := &patch.Patcher{
		Table:    p.Table,
		Xlate:    p.Xlate,
		PageSize: p.PageSize,
	}
	if err := data.PatchMemory(p.Layout.Data, p.Flash, p.Mem, p.Layout.DataRun); err != nil {
		return err
	}

	p.Mem.Zero(p.Layout.BssRun, p.Layout.BssLen)
	util.DPrintf(1, "linkpass: complete\n")
	return nil
}
