package flash

import (
	"fmt"
	"sync"

	"github.com/mit-pdos/go-picboot/common"
)

var _ Device = (*MemDevice)(nil)

// MemDevice is an in-memory Device, used by tests and by host-side
// tooling that operates on an image dump.
type MemDevice struct {
	l    *sync.RWMutex
	data []byte
}

func NewMemDevice(size uint64) *MemDevice {
	return &MemDevice{l: new(sync.RWMutex), data: make([]byte, size)}
}

func (d *MemDevice) ReadAt(off uint64, buf []byte) error {
	d.l.RLock()
	defer d.l.RUnlock()
	if off+uint64(len(buf)) > uint64(len(d.data)) {
		panic(fmt.Errorf("out-of-bounds read at %v", off))
	}
	copy(buf, d.data[off:off+uint64(len(buf))])
	return nil
}

func (d *MemDevice) WriteAt(off uint64, data []byte) error {
	if uint64(len(data)) > common.MaxWrite {
		panic(fmt.Errorf("write of %d bytes exceeds programming granularity", len(data)))
	}
	d.l.Lock()
	defer d.l.Unlock()
	if off+uint64(len(data)) > uint64(len(d.data)) {
		panic(fmt.Errorf("out-of-bounds write at %v", off))
	}
	copy(d.data[off:off+uint64(len(data))], data)
	return nil
}

func (d *MemDevice) Size() uint64 {
	// this never changes so we assume it's safe to run lock-free
	return uint64(len(d.data))
}

func (d *MemDevice) Barrier() error { return nil }

func (d *MemDevice) Close() error { return nil }
