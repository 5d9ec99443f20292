package stage

import (
	"fmt"

	"github.com/mcustage/fwstage/blockdev"
)

// writeChunk programs one stream chunk at the context's current offset. The
// chunk is split against the program unit size P into an unaligned head, an
// aligned middle and an unaligned tail. Head and tail are committed through
// read-modify-write of their containing program unit; the middle is
// programmed directly. Nothing is buffered across calls, so a stream may end
// on any byte without leaving data unflushed.
//
// Partial writes are not rolled back on error; the integrity check after
// the stream completes is the detector for short or corrupt images.
func (c *stagingContext) writeChunk(p []byte) error {
	progSize := int64(len(c.progUnit))
	data := p
	off := c.offset

	// Unaligned head: bytes up to the next program unit boundary.
	headEnd := blockdev.AlignUp(off, progSize)
	todo := headEnd - off
	if todo > int64(len(data)) {
		todo = int64(len(data))
	}
	if todo > 0 {
		unitOff := blockdev.AlignDown(off, progSize)
		if err := c.readProgramUnit(unitOff); err != nil {
			return err
		}
		copy(c.progUnit[off-unitOff:], data[:todo])
		if err := c.dev.Program(c.progUnit, unitOff); err != nil {
			return fmt.Errorf("stage: programming unit at %d: %w", unitOff, err)
		}
		data = data[todo:]
		off += todo
	}

	// Aligned middle: whole program units, no read-modify-write.
	todo = blockdev.AlignDown(int64(len(data)), progSize)
	if todo > 0 {
		if err := c.dev.Program(data[:todo], off); err != nil {
			return fmt.Errorf("stage: programming %d bytes at %d: %w", todo, off, err)
		}
		data = data[todo:]
		off += todo
	}

	// Unaligned tail: splice into the containing unit and commit it now.
	if len(data) > 0 {
		if err := c.readProgramUnit(off); err != nil {
			return err
		}
		copy(c.progUnit, data)
		if err := c.dev.Program(c.progUnit, off); err != nil {
			return fmt.Errorf("stage: programming unit at %d: %w", off, err)
		}
	}

	return nil
}

// readProgramUnit fills c.progUnit with the program unit containing off,
// reading through the device's read granularity: a read-block-aligned read
// large enough to cover the unit, then extraction of the aligned sub-range.
func (c *stagingContext) readProgramUnit(off int64) error {
	progSize := int64(len(c.progUnit))
	readSize := c.dev.ReadSize()

	blockOff := blockdev.AlignDown(off, readSize)
	unitOff := blockdev.AlignDown(off, progSize)
	need := blockdev.AlignUp(unitOff+progSize, readSize) - blockOff
	if need > int64(len(c.readBlock)) {
		return &ConfigError{Reason: fmt.Sprintf("read block of %d bytes cannot cover program unit at %d", len(c.readBlock), unitOff)}
	}
	if err := c.dev.Read(c.readBlock[:need], blockOff); err != nil {
		return fmt.Errorf("stage: reading block at %d: %w", blockOff, err)
	}
	copy(c.progUnit, c.readBlock[unitOff-blockOff:])
	return nil
}
