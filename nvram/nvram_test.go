package nvram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/go-picboot/flash"
)

func TestDecodeErasedSlot(t *testing.T) {
	assert := assert.New(t)

	erased := make([]byte, RecordSize)
	assert.Equal(StateNeverRun, DecodeRecord(erased).State)

	// 0xff-erased flash is equally meaningless
	for i := range erased {
		erased[i] = 0xff
	}
	assert.Equal(StateNeverRun, DecodeRecord(erased).State)
}

func TestRecordCodec(t *testing.T) {
	assert := assert.New(t)
	rec := BootRecord{State: StateCompleted, Base: 0x1000, EnvBase: 0x1800}
	assert.Equal(rec, DecodeRecord(rec.Encode()))

	mark := BootRecord{State: StateInProgress}
	assert.Equal(StateInProgress, DecodeRecord(mark.Encode()).State)
}

func TestMkMoveTracker(t *testing.T) {
	assert := assert.New(t)

	m := MkMoveTracker(BootRecord{State: StateNeverRun}, 0x1400)
	assert.Equal(int64(0), m.Delta, "first run never compensates")

	m = MkMoveTracker(BootRecord{State: StateCompleted, Base: 0x1400, EnvBase: 0x1800}, 0x1400)
	assert.Equal(int64(0), m.Delta, "same base, nothing moved")

	m = MkMoveTracker(BootRecord{State: StateCompleted, Base: 0x1000, EnvBase: 0x1800}, 0x1400)
	assert.Equal(int64(0x400), m.Delta)
	assert.Equal(uint64(0x1000), m.PrevBase)
	assert.Equal(uint64(0x1800), m.PrevEnd)
}

func TestCompensate(t *testing.T) {
	assert := assert.New(t)
	m := MoveTracker{Delta: 0x400, PrevBase: 0x1000, PrevEnd: 0x1800}

	// stable under translation and inside the previous range: the
	// word was live-patched under the old mapping
	assert.Equal(uint64(0x1400), m.Compensate(0x1000, 0x1000))
	assert.Equal(uint64(0x1bf8), m.Compensate(0x17f8, 0x17f8))

	// stable but outside the previous range: translator's verdict stands
	assert.Equal(uint64(0x1800), m.Compensate(0x1800, 0x1800))
	assert.Equal(uint64(0x900), m.Compensate(0x900, 0x900))

	// the translator already moved it: no double compensation
	assert.Equal(uint64(0x5000), m.Compensate(0x1000, 0x5000))

	none := MoveTracker{}
	assert.Equal(uint64(0x1000), none.Compensate(0x1000, 0x1000))
}

func TestCommitBracket(t *testing.T) {
	assert := assert.New(t)
	d := flash.NewMemDevice(4096)
	const off = 512

	c, prev, err := Begin(d, off, 0x1000, 0x1800)
	assert.NoError(err)
	assert.Equal(StateNeverRun, prev.State)

	rec, err := ReadRecord(d, off)
	assert.NoError(err)
	assert.Equal(StateInProgress, rec.State, "slot is marked while the pass runs")

	// a second Begin models the next boot after a crash
	_, _, err = Begin(d, off, 0x1000, 0x1800)
	assert.ErrorIs(err, ErrInterrupted)

	assert.NoError(c.Complete())

	rec, err = ReadRecord(d, off)
	assert.NoError(err)
	assert.Equal(BootRecord{State: StateCompleted, Base: 0x1000, EnvBase: 0x1800}, rec)

	// the next boot sees the completed record and may proceed
	_, prev, err = Begin(d, off, 0x1400, 0x1c00)
	assert.NoError(err)
	assert.Equal(uint64(0x1000), prev.Base, "previous base survives for move detection")
}
