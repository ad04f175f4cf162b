package flash

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-picboot/common"
)

var _ Device = (*FileDevice)(nil)

// FileDevice backs a Device with a host file, for testing relocation
// passes against a persisted image.
type FileDevice struct {
	fd   int
	size uint64
}

func NewFileDevice(path string, size uint64) (*FileDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if (stat.Mode&unix.S_IFREG) != 0 && uint64(stat.Size) != size {
		err = unix.Ftruncate(fd, int64(size))
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &FileDevice{fd: fd, size: size}, nil
}

func (d *FileDevice) ReadAt(off uint64, buf []byte) error {
	if off+uint64(len(buf)) > d.size {
		panic(fmt.Errorf("out-of-bounds read at %v", off))
	}
	_, err := unix.Pread(d.fd, buf, int64(off))
	if err != nil {
		return fmt.Errorf("flash: read at 0x%x: %w", off, err)
	}
	return nil
}

func (d *FileDevice) WriteAt(off uint64, data []byte) error {
	if uint64(len(data)) > common.MaxWrite {
		panic(fmt.Errorf("write of %d bytes exceeds programming granularity", len(data)))
	}
	if off+uint64(len(data)) > d.size {
		panic(fmt.Errorf("out-of-bounds write at %v", off))
	}
	_, err := unix.Pwrite(d.fd, data, int64(off))
	if err != nil {
		return fmt.Errorf("flash: write at 0x%x: %w", off, err)
	}
	return nil
}

func (d *FileDevice) Size() uint64 {
	return d.size
}

func (d *FileDevice) Barrier() error {
	err := unix.Fsync(d.fd)
	if err != nil {
		return fmt.Errorf("flash: sync: %w", err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	return unix.Close(d.fd)
}
