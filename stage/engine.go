// Package stage implements the firmware staging engine: streaming an image
// into the secondary slot through aligned block I/O, verifying its
// integrity, and driving the non-volatile upgrade state machine across the
// activate/reboot/confirm cycle.
package stage

import (
	"fmt"
	"log"
	"sync"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/boot"
	"github.com/mcustage/fwstage/mcuimg"
	"github.com/mcustage/fwstage/upgstate"
)

// Engine owns one staging lifecycle at a time. All operations serialize on
// one mutex: the design assumes a single active upgrade workflow, and the
// lock makes that assumption explicit instead of implicit.
type Engine struct {
	mu sync.Mutex

	openSecondary func() (blockdev.Device, error)
	loader        boot.Loader
	state         *upgstate.Store
	restart       func()

	ctx       *stagingContext
	cancelled bool
	verified  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRestart supplies the forced hardware reset used by the recovery
// routine's revert path. Without it, the revert path only clears state and
// logs.
func WithRestart(restart func()) Option {
	return func(e *Engine) {
		e.restart = restart
	}
}

// New creates an Engine. openSecondary acquires the secondary slot device
// for one staging attempt; the engine owns the returned handle until the
// attempt ends.
func New(openSecondary func() (blockdev.Device, error), loader boot.Loader, state *upgstate.Store, opts ...Option) *Engine {
	e := &Engine{
		openSecondary: openSecondary,
		loader:        loader,
		state:         state,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stage begins a new staging attempt: any previous context is torn down, the
// upgrade state is reset (preserving settled fields), the secondary device
// is acquired and fully erased, and the running image's header is captured
// for post-reboot version matching.
func (e *Engine) Stage(expectedTotal int64, hs HashSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardown()
	e.cancelled = false
	e.verified = false

	if expectedTotal < mcuimg.HeaderSize {
		return fmt.Errorf("stage: expected total %d smaller than image header", expectedTotal)
	}
	if _, err := hs.newHash(); err != nil {
		return err
	}

	if err := e.state.Reset(false); err != nil {
		return fmt.Errorf("stage: resetting upgrade state: %w", err)
	}

	active, err := e.loader.ActiveHeader()
	if err != nil {
		return fmt.Errorf("stage: reading active image header: %w", err)
	}
	log.Printf("active image version: %s", active.Version)

	dev, err := e.openSecondary()
	if err != nil {
		return fmt.Errorf("stage: acquiring secondary device: %w", err)
	}
	ctx, err := newStagingContext(dev, expectedTotal, hs)
	if err != nil {
		return err
	}
	if err := ctx.eraseAll(); err != nil {
		ctx.teardown()
		return err
	}
	ctx.activeHeader = active
	e.ctx = ctx
	return nil
}

// VerifyStaged re-verifies an already staged image against the manifest
// digest without erasing or rewriting it, establishing the verified state a
// later Activate requires. This is how a fresh process (e.g. the CLI)
// activates an image staged earlier.
func (e *Engine) VerifyStaged(expectedTotal int64, hs HashSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardown()
	e.verified = false

	if _, err := hs.newHash(); err != nil {
		return err
	}
	dev, err := e.openSecondary()
	if err != nil {
		return fmt.Errorf("stage: acquiring secondary device: %w", err)
	}
	c, err := newStagingContext(dev, expectedTotal, hs)
	if err != nil {
		return err
	}
	defer c.teardown()

	c.actualTotal = expectedTotal
	if err := c.verify(); err != nil {
		return err
	}
	e.verified = true
	return nil
}

// Chunk accepts the next sequential piece of the image stream. The first
// chunks feed the header extractor; once the header range is complete its
// magic gates any further writing and the stage version is recorded before
// bytes beyond the header are accepted. Cancellation is observed between
// chunks, never mid-unit.
func (e *Engine) Chunk(p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.ctx
	if c == nil {
		return ErrNotStaging
	}
	if e.cancelled {
		return ErrCancelled
	}
	if len(p) == 0 {
		return nil
	}

	if completed := c.hdrAcc.Absorb(c.offset, p); completed {
		hdr, err := c.hdrAcc.Header()
		if err != nil {
			return err
		}
		c.stageHeader = hdr
		c.haveHeader = true
		log.Printf("image header: padded size=%d, image size=%d, protected TLV size=%d",
			hdr.PaddedSize, hdr.ImageSize, hdr.ProtectTLVSize)
		log.Printf("stage image version: %s", hdr.Version)
		if err := e.state.SetStageVersion(hdr.Version); err != nil {
			return fmt.Errorf("stage: recording stage version: %w", err)
		}
	}

	if err := c.writeChunk(p); err != nil {
		return err
	}
	c.offset += int64(len(p))
	return nil
}

// Finish ends the stream: the delivered byte count must match the expected
// total, then the staged image is re-read and its digest verified. The
// context is torn down either way; on verification failure the staged bytes
// stay on the device until the next Stage erases them.
func (e *Engine) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.ctx
	if c == nil {
		return ErrNotStaging
	}
	defer e.teardown()

	if e.cancelled {
		return ErrCancelled
	}

	c.actualTotal = c.offset
	if c.actualTotal != c.expectedTotal {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrShortStream, c.expectedTotal, c.actualTotal)
	}
	log.Printf("stream complete: %d/%d bytes", c.actualTotal, c.expectedTotal)

	if err := c.verify(); err != nil {
		return err
	}
	e.verified = true
	return nil
}

// Cancel requests cooperative cancellation. The flag is observed between
// chunk deliveries; an in-flight program operation always completes, since
// interrupting it mid-unit could corrupt the program unit. Already-written
// bytes are not rolled back.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelled = true
}

// Activate persists the caller's installed criteria, asks the bootloader to
// mark the secondary image pending (revertibly), and clears the rebooted
// flag. On success the caller must reboot the device; the swap and the
// subsequent confirm-or-revert decision happen at the next boot.
func (e *Engine) Activate(criteria string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if criteria == "" {
		return Failure, ErrNoCriteria
	}
	if !e.verified {
		return Failure, ErrNotStaged
	}

	if err := e.state.SetStageCriteria(criteria); err != nil {
		return Failure, err
	}
	if err := e.loader.MarkPending(false); err != nil {
		return Failure, fmt.Errorf("stage: marking secondary image pending: %w", err)
	}
	if err := e.state.SetInstallRebooted(false); err != nil {
		return Failure, fmt.Errorf("stage: clearing rebooted flag: %w", err)
	}
	log.Printf("secondary image pending, reboot required")
	return RequiredReboot, nil
}

// QueryInstalled reports whether the update identified by criteria has been
// applied and settled: it compares against the persistent installed
// criteria, which only exists once a swap was confirmed after reboot.
func (e *Engine) QueryInstalled(criteria string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if criteria == "" {
		return false, ErrNoCriteria
	}
	persistent, ok := e.state.PersistentCriteria()
	if !ok {
		// Nothing settled yet; first update on this device.
		return false, nil
	}
	return persistent == criteria, nil
}

// Close tears down any staging context, releasing the secondary device.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardown()
}

// teardown is called with e.mu held.
func (e *Engine) teardown() {
	if e.ctx != nil {
		e.ctx.teardown()
		e.ctx = nil
	}
}

// installed implements the two-source installed check: the persistent
// record must say a staged image rebooted with a version matching the
// running image, and the bootloader's own confirmation flag decides
// confirmed. ok=false means the question cannot be answered (no attempt
// recorded, or the sources are unreadable).
func (e *Engine) installed() (confirmed, ok bool) {
	rebooted, valid := e.state.InstallRebooted()
	if !valid || !rebooted {
		return false, false
	}
	stageVer, valid := e.state.StageVersion()
	if !valid {
		return false, false
	}
	active, err := e.loader.ActiveHeader()
	if err != nil {
		log.Printf("reading active image header: %v", err)
		return false, false
	}
	if stageVer != active.Version {
		return false, false
	}
	conf, err := e.loader.Confirmed(boot.Primary)
	if err != nil {
		log.Printf("reading primary confirmation flag: %v", err)
		return false, false
	}
	return conf, true
}

// IsCancelled reports whether Cancel has been requested for the current
// attempt.
func (e *Engine) IsCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}
