// Package nvram owns the loader's durable state: the boot record that
// marks a relocation pass in progress and remembers where the
// persistent region sat on the previous boot. No other component
// writes this state.
package nvram

import (
	"errors"
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-picboot/common"
	"github.com/mit-pdos/go-picboot/flash"
	"github.com/mit-pdos/go-picboot/util"
)

// ErrInterrupted reports that a previous boot's relocation pass never
// completed. The image may hold a mix of patched and unpatched pages,
// so the boot must halt; the remediation is reinstalling the
// application.
var ErrInterrupted = errors.New("nvram: previous relocation pass was interrupted, reinstall required")

type State uint64

const (
	// StateNeverRun: no boot has completed a pass on this install.
	StateNeverRun State = iota
	// StateInProgress: a pass started and has not completed.
	StateInProgress
	// StateCompleted: the last pass finished; Base/EnvBase record the
	// persistent region bounds it ran under.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNeverRun:
		return "never-run"
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// recordMagic distinguishes an initialized boot record from
// factory-erased flash, so no real address can ever alias a state.
const recordMagic uint64 = 0x70696362_30303031 // "picb0001"

// RecordSize is the encoded size of a BootRecord: magic, state, base,
// env base.
const RecordSize uint64 = 4 * common.WordSize

// BootRecord is the durable three-state marker. Base and EnvBase are
// meaningful only in StateCompleted.
type BootRecord struct {
	State   State
	Base    common.RunAddr
	EnvBase common.RunAddr
}

func (r BootRecord) Encode() []byte {
	enc := marshal.NewEnc(RecordSize)
	enc.PutInt(recordMagic)
	enc.PutInt(uint64(r.State))
	enc.PutInt(uint64(r.Base))
	enc.PutInt(uint64(r.EnvBase))
	return enc.Finish()
}

// DecodeRecord interprets a boot-record slot. Anything that does not
// carry the magic and a known state reads as never-run; erased flash
// and garbage both land there.
func DecodeRecord(b []byte) BootRecord {
	dec := marshal.NewDec(b)
	if dec.GetInt() != recordMagic {
		return BootRecord{State: StateNeverRun}
	}
	st := State(dec.GetInt())
	if st != StateInProgress && st != StateCompleted {
		return BootRecord{State: StateNeverRun}
	}
	return BootRecord{
		State:   st,
		Base:    common.RunAddr(dec.GetInt()),
		EnvBase: common.RunAddr(dec.GetInt()),
	}
}

// ReadRecord loads the boot record from its reserved slot.
func ReadRecord(d flash.Device, off uint64) (BootRecord, error) {
	buf := make([]byte, RecordSize)
	if err := d.ReadAt(off, buf); err != nil {
		return BootRecord{}, fmt.Errorf("nvram: read boot record: %w", err)
	}
	return DecodeRecord(buf), nil
}

// MoveTracker compensates pointers that were already patched under a
// previous placement of the persistent region. When the image is
// reinstalled at a different base, such pointers look stable to the
// translator (translate(old) == old) and would otherwise be missed.
type MoveTracker struct {
	Delta    int64
	PrevBase common.RunAddr
	PrevEnd  common.RunAddr
}

// MkMoveTracker derives the tracker for this boot. The delta is
// nonzero only if the previous boot completed a pass and the
// persistent base has moved since.
func MkMoveTracker(prev BootRecord, current common.RunAddr) MoveTracker {
	if prev.State != StateCompleted || prev.Base == current {
		return MoveTracker{}
	}
	m := MoveTracker{
		Delta:    int64(current) - int64(prev.Base),
		PrevBase: prev.Base,
		PrevEnd:  prev.EnvBase,
	}
	util.DPrintf(1, "nvram: base moved 0x%x -> 0x%x (delta %d)\n",
		prev.Base, current, m.Delta)
	return m
}

// Compensate decides the final value of one relocated word, given the
// value found in the image and what the translator made of it. A word
// the translator reports as stable is shifted by the move delta iff it
// points into the previous run's persistent range; pointers into other
// regions are governed by the translator alone.
func (m MoveTracker) Compensate(old, new common.Word) common.Word {
	if old != new || m.Delta == 0 {
		return new
	}
	if old >= m.PrevBase && old < m.PrevEnd {
		return common.Word(uint64(int64(old) + m.Delta))
	}
	return new
}

// Commit brackets one full pass over the persisted section. While a
// Commit is open the boot record reads in-progress; a crash anywhere
// inside the bracket is detected on the next boot.
type Commit struct {
	d       flash.Device
	off     uint64
	current common.RunAddr
	envEnd  common.RunAddr
}

// Begin refuses to proceed if a previous pass never completed, then
// durably marks this one in progress. It returns the record the
// previous boot left behind, which Begin's caller feeds to the move
// tracker. Begin runs before any section byte is read or written.
func Begin(d flash.Device, off uint64, current, envEnd common.RunAddr) (*Commit, BootRecord, error) {
	prev, err := ReadRecord(d, off)
	if err != nil {
		return nil, BootRecord{}, err
	}
	if prev.State == StateInProgress {
		return nil, BootRecord{}, ErrInterrupted
	}
	mark := BootRecord{State: StateInProgress}
	if err := flash.WriteVerified(d, off, mark.Encode()); err != nil {
		return nil, BootRecord{}, fmt.Errorf("nvram: mark in-progress: %w", err)
	}
	util.DPrintf(2, "nvram: pass started, prev %v\n", prev.State)
	return &Commit{d: d, off: off, current: current, envEnd: envEnd}, prev, nil
}

// Complete replaces the in-progress mark with this boot's bounds. This
// both closes the crash-detection window and records the base the next
// boot compares against for move detection.
func (c *Commit) Complete() error {
	rec := BootRecord{
		State:   StateCompleted,
		Base:    c.current,
		EnvBase: c.envEnd,
	}
	if err := flash.WriteVerified(c.d, c.off, rec.Encode()); err != nil {
		return fmt.Errorf("nvram: record completion: %w", err)
	}
	util.DPrintf(2, "nvram: pass completed, base 0x%x\n", c.current)
	return nil
}
