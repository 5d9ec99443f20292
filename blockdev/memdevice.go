package blockdev

import "fmt"

// MemDevice is an in-memory Device with configurable geometry. It enforces
// the alignment contract strictly so tests catch callers that program or
// read unaligned ranges.
//
// Init and Deinit are idempotent; the backing buffer survives both, like
// flash contents survive a driver re-init.
type MemDevice struct {
	buf         []byte
	programSize int64
	readSize    int64
}

// NewMemDevice returns a device of the given size. size must be a multiple
// of readSize, and readSize a multiple of programSize, mirroring real flash
// geometry. The device starts fully erased.
func NewMemDevice(size, programSize, readSize int64) (*MemDevice, error) {
	if programSize <= 0 || readSize <= 0 || size <= 0 {
		return nil, fmt.Errorf("blockdev: invalid geometry: size=%d program=%d read=%d", size, programSize, readSize)
	}
	if readSize%programSize != 0 {
		return nil, fmt.Errorf("blockdev: read size %d not a multiple of program size %d", readSize, programSize)
	}
	if size%readSize != 0 {
		return nil, fmt.Errorf("blockdev: size %d not a multiple of read size %d", size, readSize)
	}
	d := &MemDevice{
		buf:         make([]byte, size),
		programSize: programSize,
		readSize:    readSize,
	}
	for i := range d.buf {
		d.buf[i] = EraseByte
	}
	return d, nil
}

func (d *MemDevice) Init() error   { return nil }
func (d *MemDevice) Deinit() error { return nil }

func (d *MemDevice) Read(p []byte, off int64) error {
	if err := d.checkRange(off, int64(len(p)), d.readSize, "read"); err != nil {
		return err
	}
	copy(p, d.buf[off:off+int64(len(p))])
	return nil
}

func (d *MemDevice) Program(p []byte, off int64) error {
	if err := d.checkRange(off, int64(len(p)), d.programSize, "program"); err != nil {
		return err
	}
	copy(d.buf[off:], p)
	return nil
}

func (d *MemDevice) Erase(off, length int64) error {
	if err := d.checkRange(off, length, d.programSize, "erase"); err != nil {
		return err
	}
	for i := off; i < off+length; i++ {
		d.buf[i] = EraseByte
	}
	return nil
}

func (d *MemDevice) ProgramSize() int64 { return d.programSize }
func (d *MemDevice) ReadSize() int64    { return d.readSize }
func (d *MemDevice) Size() int64        { return int64(len(d.buf)) }

// Bytes returns a copy of the current device contents.
func (d *MemDevice) Bytes() []byte {
	b := make([]byte, len(d.buf))
	copy(b, d.buf)
	return b
}

func (d *MemDevice) checkRange(off, length, unit int64, op string) error {
	if !aligned(off, unit) || !aligned(length, unit) {
		return fmt.Errorf("blockdev: unaligned %s: off=%d len=%d unit=%d", op, off, length, unit)
	}
	if off < 0 || off+length > int64(len(d.buf)) {
		return fmt.Errorf("blockdev: %s out of range: off=%d len=%d size=%d", op, off, length, len(d.buf))
	}
	return nil
}
