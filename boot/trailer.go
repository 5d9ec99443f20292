package boot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/mcuimg"
)

// TrailerLoader implements Loader with MCUboot-style trailer flags kept at
// the end of each slot. From the end of the slot backwards: a 16-byte boot
// magic, then one program-unit-sized slot each for the image-ok and
// copy-done flags. A flag byte is 0x01 when set and reads back as the erase
// value when unset, matching flash that is programmed at most once between
// erases.
//
// The devices must be initialized by the caller and stay owned by it; the
// loader only reads and programs trailer and header ranges.
type TrailerLoader struct {
	primary   blockdev.Device
	secondary blockdev.Device
}

const (
	flagSet  = 0x01
	magicLen = 16
)

// bootMagic is the MCUboot trailer magic (little-endian words).
var bootMagic = func() []byte {
	b := make([]byte, magicLen)
	for i, w := range []uint32{0xf395c277, 0x7fefd260, 0x0f505235, 0x8079b62c} {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}()

func NewTrailerLoader(primary, secondary blockdev.Device) *TrailerLoader {
	return &TrailerLoader{primary: primary, secondary: secondary}
}

func (t *TrailerLoader) device(slot Slot) blockdev.Device {
	if slot == Primary {
		return t.primary
	}
	return t.secondary
}

// trailer byte ranges for a device, all program-unit aligned.
func trailerLayout(d blockdev.Device) (magicOff, imageOKOff, copyDoneOff int64) {
	p := d.ProgramSize()
	magicUnits := blockdev.AlignUp(magicLen, p)
	magicOff = d.Size() - magicUnits
	imageOKOff = magicOff - p
	copyDoneOff = imageOKOff - p
	return
}

// ActiveHeader reads and parses the primary image's header.
func (t *TrailerLoader) ActiveHeader() (mcuimg.Header, error) {
	d := t.primary
	n := blockdev.AlignUp(mcuimg.HeaderSize, d.ReadSize())
	buf := make([]byte, n)
	if err := d.Read(buf, 0); err != nil {
		return mcuimg.Header{}, fmt.Errorf("boot: reading active header: %w", err)
	}
	return mcuimg.ParseHeader(buf[:mcuimg.HeaderSize])
}

// MarkPending writes the boot magic to the secondary trailer so the
// bootloader swaps on next boot. With permanent=true the image-ok flag is
// set as well, making the swap non-revertible.
func (t *TrailerLoader) MarkPending(permanent bool) error {
	d := t.secondary
	magicOff, imageOKOff, _ := trailerLayout(d)

	unit := make([]byte, d.Size()-magicOff)
	for i := range unit {
		unit[i] = blockdev.EraseByte
	}
	copy(unit[len(unit)-magicLen:], bootMagic)
	if err := d.Program(unit, magicOff); err != nil {
		return fmt.Errorf("boot: writing trailer magic: %w", err)
	}
	if permanent {
		if err := t.setFlag(d, imageOKOff); err != nil {
			return fmt.Errorf("boot: setting image-ok: %w", err)
		}
	}
	return nil
}

// MarkConfirmed sets the image-ok flag in the primary trailer, keeping the
// system booting the image that is currently running.
func (t *TrailerLoader) MarkConfirmed() error {
	d := t.primary
	_, imageOKOff, _ := trailerLayout(d)
	if err := t.setFlag(d, imageOKOff); err != nil {
		return fmt.Errorf("boot: confirming primary image: %w", err)
	}
	return nil
}

// Confirmed reads back the image-ok flag of the given slot.
func (t *TrailerLoader) Confirmed(slot Slot) (bool, error) {
	d := t.device(slot)
	_, imageOKOff, _ := trailerLayout(d)
	b, err := t.readByte(d, imageOKOff)
	if err != nil {
		return false, fmt.Errorf("boot: reading image-ok of %s slot: %w", slot, err)
	}
	return b == flagSet, nil
}

// Pending reports whether the secondary trailer carries the boot magic,
// i.e. a swap has been requested.
func (t *TrailerLoader) Pending() (bool, error) {
	d := t.secondary
	magicOff, _, _ := trailerLayout(d)
	r := d.ReadSize()
	blockOff := blockdev.AlignDown(magicOff, r)
	buf := make([]byte, d.Size()-blockOff)
	if err := d.Read(buf, blockOff); err != nil {
		return false, fmt.Errorf("boot: reading trailer magic: %w", err)
	}
	got := buf[len(buf)-magicLen:]
	return bytes.Equal(got, bootMagic), nil
}

// setFlag programs a whole unit with the flag byte in its first position.
// The trailer region is erased and programmed at most once per flag, so no
// read-modify-write is needed.
func (t *TrailerLoader) setFlag(d blockdev.Device, off int64) error {
	unit := make([]byte, d.ProgramSize())
	for i := range unit {
		unit[i] = blockdev.EraseByte
	}
	unit[0] = flagSet
	return d.Program(unit, off)
}

// readByte reads the single byte at off through the device's read
// granularity.
func (t *TrailerLoader) readByte(d blockdev.Device, off int64) (byte, error) {
	r := d.ReadSize()
	blockOff := blockdev.AlignDown(off, r)
	buf := make([]byte, r)
	if err := d.Read(buf, blockOff); err != nil {
		return 0, err
	}
	return buf[off-blockOff], nil
}
