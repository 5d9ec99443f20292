package stage

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/mcustage/fwstage/blockdev"
	"github.com/mcustage/fwstage/boot"
	"github.com/mcustage/fwstage/mcuimg"
)

// Test device geometry: 16 KiB slot, 256-byte program units, 1 KiB read
// blocks.
const (
	testSlotSize    = 16384
	testProgramSize = 256
	testReadSize    = 1024
)

func newTestDevice(t *testing.T) *blockdev.MemDevice {
	t.Helper()
	d, err := blockdev.NewMemDevice(testSlotSize, testProgramSize, testReadSize)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// makeImage builds an image of exactly n bytes: a valid header followed by a
// deterministic payload.
func makeImage(t *testing.T, n int, v mcuimg.Version) []byte {
	t.Helper()
	if n < mcuimg.HeaderSize {
		t.Fatalf("image size %d smaller than header", n)
	}
	hdr := mcuimg.Header{
		Magic:      mcuimg.Magic,
		PaddedSize: mcuimg.HeaderSize,
		ImageSize:  uint32(n - mcuimg.HeaderSize),
		Version:    v,
	}
	img := make([]byte, n)
	copy(img, mcuimg.EncodeHeader(hdr))
	for i := mcuimg.HeaderSize; i < n; i++ {
		img[i] = byte(i*31 + 7)
	}
	return img
}

func b64sha256(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// writeActiveImage programs a header with the given version into the first
// unit of the device, as if that image were running.
func writeActiveImage(t *testing.T, d *blockdev.MemDevice, v mcuimg.Version) {
	t.Helper()
	unit := make([]byte, testProgramSize)
	for i := range unit {
		unit[i] = blockdev.EraseByte
	}
	copy(unit, mcuimg.EncodeHeader(mcuimg.Header{Magic: mcuimg.Magic, Version: v}))
	if err := d.Program(unit, 0); err != nil {
		t.Fatal(err)
	}
}

// fakeLoader is a scriptable boot.Loader for recovery tests that need
// failure modes a real trailer cannot produce on demand.
type fakeLoader struct {
	active       mcuimg.Header
	activeErr    error
	confirmed    bool
	confirmErr   error
	pendingCalls int
}

func (l *fakeLoader) ActiveHeader() (mcuimg.Header, error) {
	return l.active, l.activeErr
}

func (l *fakeLoader) MarkPending(permanent bool) error {
	l.pendingCalls++
	return nil
}

func (l *fakeLoader) MarkConfirmed() error {
	if l.confirmErr != nil {
		return l.confirmErr
	}
	l.confirmed = true
	return nil
}

func (l *fakeLoader) Confirmed(slot boot.Slot) (bool, error) {
	if slot == boot.Primary {
		return l.confirmed, nil
	}
	return false, nil
}
