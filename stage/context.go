package stage

import (
	"fmt"
	"log"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/mcuimg"
)

// readBlockDefSize is the default buffer size for re-reading the staged
// image; grown to the device's read granularity when that is larger.
const readBlockDefSize = 1024

// stagingContext is the per-attempt working state: the exclusively owned
// secondary device handle, the scratch buffers sized to the device geometry,
// the incrementally assembled stage header and the download progress. At
// most one context exists per engine; a new Stage tears down the previous
// one first.
type stagingContext struct {
	dev    blockdev.Device
	inited bool

	progUnit  []byte // one program unit, for unaligned head/tail splicing
	readBlock []byte // read-granularity buffer, multiple of the read size

	hdrAcc       mcuimg.Accumulator
	stageHeader  mcuimg.Header
	haveHeader   bool
	activeHeader mcuimg.Header

	offset        int64 // bytes accepted so far, strictly monotonic
	expectedTotal int64
	actualTotal   int64

	hash HashSpec
}

// newStagingContext acquires the device, validates its geometry, allocates
// the scratch buffers and erases the full region.
func newStagingContext(dev blockdev.Device, expectedTotal int64, hs HashSpec) (*stagingContext, error) {
	c := &stagingContext{
		dev:           dev,
		expectedTotal: expectedTotal,
		hash:          hs,
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("stage: secondary device init: %w", err)
	}
	c.inited = true

	progSize := dev.ProgramSize()
	readSize := dev.ReadSize()
	if progSize <= 0 || readSize <= 0 {
		c.teardown()
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid device geometry: program=%d read=%d", progSize, readSize)}
	}
	if readSize < progSize || readSize%progSize != 0 {
		c.teardown()
		return nil, &ConfigError{Reason: fmt.Sprintf("read size %d not a multiple of program size %d", readSize, progSize)}
	}
	c.progUnit = make([]byte, progSize)
	c.readBlock = make([]byte, blockdev.AlignUp(readBlockDefSize, readSize))
	return c, nil
}

// eraseAll erases the full secondary region before staging begins.
func (c *stagingContext) eraseAll() error {
	size := c.dev.Size()
	log.Printf("secondary device size: %d bytes", size)
	if err := c.dev.Erase(0, size); err != nil {
		return fmt.Errorf("stage: erasing secondary device: %w", err)
	}
	return nil
}

// teardown releases the device and drops the buffers. Safe to call more
// than once. Staged bytes are not erased here; the next Stage re-erases.
func (c *stagingContext) teardown() {
	if c.inited {
		if err := c.dev.Deinit(); err != nil {
			log.Printf("secondary device deinit: %v", err)
		}
		c.inited = false
	}
	c.progUnit = nil
	c.readBlock = nil
}
