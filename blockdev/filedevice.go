package blockdev

import (
	"fmt"
	"os"
)

// FileDevice is a Device backed by a regular file (a slot image on disk) or,
// on Linux, an actual block device node. Geometry is supplied by the caller
// because a file has none of its own.
type FileDevice struct {
	path        string
	size        int64
	programSize int64
	readSize    int64

	f *os.File
}

// NewFileDevice describes a file-backed device; no I/O happens until Init.
// For regular files, the file is created and grown to size on Init. For
// block device nodes, size is taken from the kernel and the size argument
// is ignored.
func NewFileDevice(path string, size, programSize, readSize int64) (*FileDevice, error) {
	if programSize <= 0 || readSize <= 0 {
		return nil, fmt.Errorf("blockdev: invalid geometry: program=%d read=%d", programSize, readSize)
	}
	if readSize%programSize != 0 {
		return nil, fmt.Errorf("blockdev: read size %d not a multiple of program size %d", readSize, programSize)
	}
	return &FileDevice{
		path:        path,
		size:        size,
		programSize: programSize,
		readSize:    readSize,
	}, nil
}

func (d *FileDevice) Init() error {
	if d.f != nil {
		return nil
	}
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if devSize, ok := blockDeviceSize(f, st); ok {
		d.size = devSize
	} else {
		if d.size <= 0 {
			f.Close()
			return fmt.Errorf("blockdev: %s: no size configured for regular file", d.path)
		}
		if st.Size() < d.size {
			if err := f.Truncate(d.size); err != nil {
				f.Close()
				return err
			}
		}
	}
	if d.size%d.readSize != 0 {
		f.Close()
		return fmt.Errorf("blockdev: %s: size %d not a multiple of read size %d", d.path, d.size, d.readSize)
	}
	d.f = f
	return nil
}

func (d *FileDevice) Deinit() error {
	if d.f == nil {
		return nil
	}
	if err := d.f.Sync(); err != nil {
		d.f.Close()
		d.f = nil
		return err
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *FileDevice) Read(p []byte, off int64) error {
	if err := d.checkRange(off, int64(len(p)), d.readSize, "read"); err != nil {
		return err
	}
	_, err := d.f.ReadAt(p, off)
	return err
}

func (d *FileDevice) Program(p []byte, off int64) error {
	if err := d.checkRange(off, int64(len(p)), d.programSize, "program"); err != nil {
		return err
	}
	_, err := d.f.WriteAt(p, off)
	return err
}

func (d *FileDevice) Erase(off, length int64) error {
	if err := d.checkRange(off, length, d.programSize, "erase"); err != nil {
		return err
	}
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for i := range buf {
		buf[i] = EraseByte
	}
	for length > 0 {
		n := int64(chunk)
		if n > length {
			n = length
		}
		if _, err := d.f.WriteAt(buf[:n], off); err != nil {
			return err
		}
		off += n
		length -= n
	}
	return nil
}

func (d *FileDevice) ProgramSize() int64 { return d.programSize }
func (d *FileDevice) ReadSize() int64    { return d.readSize }
func (d *FileDevice) Size() int64        { return d.size }

func (d *FileDevice) checkRange(off, length, unit int64, op string) error {
	if d.f == nil {
		return fmt.Errorf("blockdev: %s: device not initialized", d.path)
	}
	if !aligned(off, unit) || !aligned(length, unit) {
		return fmt.Errorf("blockdev: unaligned %s: off=%d len=%d unit=%d", op, off, length, unit)
	}
	if off < 0 || off+length > d.size {
		return fmt.Errorf("blockdev: %s out of range: off=%d len=%d size=%d", op, off, length, d.size)
	}
	return nil
}
