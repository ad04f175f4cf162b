// Package flash models the device's byte-addressed non-volatile
// memory. Writes are synchronous and blocking, must not exceed the
// programming granularity, and a written region may be read back
// immediately.
package flash

import (
	"bytes"
	"errors"

	"github.com/mit-pdos/go-picboot/util"
)

// ErrVerify reports that a committed region read back different from
// what was written. Callers treat this as fatal: retrying a write the
// hardware silently dropped risks worse corruption.
var ErrVerify = errors.New("flash: readback does not match written data")

// Device provides access to a non-volatile byte region.
type Device interface {
	// ReadAt fills buf from the bytes at off.
	//
	// Expects off+len(buf) <= Size().
	ReadAt(off uint64, buf []byte) error

	// WriteAt programs data at off.
	//
	// Expects off+len(data) <= Size() and len(data) <= common.MaxWrite;
	// callers never pass more than one page.
	WriteAt(off uint64, data []byte) error

	// Size reports how big the device is, in bytes.
	Size() uint64

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are durably on the
	// device.
	Barrier() error

	// Close releases any resources used by the device and makes it
	// unusable.
	Close() error
}

// WriteVerified programs data at off and reads it back, returning
// ErrVerify on any mismatch. Every durable write in the relocation
// pass goes through here; a mismatch halts the boot.
func WriteVerified(d Device, off uint64, data []byte) error {
	if err := d.WriteAt(off, data); err != nil {
		return err
	}
	if err := d.Barrier(); err != nil {
		return err
	}
	chk := make([]byte, len(data))
	if err := d.ReadAt(off, chk); err != nil {
		return err
	}
	if !bytes.Equal(chk, data) {
		util.DPrintf(1, "flash: verify failed at 0x%x (%d bytes)\n",
			off, len(data))
		return ErrVerify
	}
	return nil
}
