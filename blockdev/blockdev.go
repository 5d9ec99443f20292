// Package blockdev models flash-like block storage: devices that can only be
// read and programmed in fixed-size units. The staging engine writes the
// secondary slot through this interface; implementations back it with memory
// (tests, simulation) or a file (CLI, real block devices).
package blockdev

// Device is a block storage region with fixed program and read granularity.
// All offsets and lengths are in bytes. Any non-nil error is fatal for the
// operation in progress; no retry happens at this layer.
type Device interface {
	// Init prepares the device for use. Must be called before any I/O.
	Init() error
	// Deinit releases the device. After Deinit, Init may be called again.
	Deinit() error

	// Read fills p with data starting at off. Both off and len(p) must be
	// multiples of ReadSize.
	Read(p []byte, off int64) error
	// Program writes p starting at off. Both off and len(p) must be
	// multiples of ProgramSize.
	Program(p []byte, off int64) error
	// Erase resets [off, off+length) to the erased state. Both values must
	// be multiples of ProgramSize.
	Erase(off, length int64) error

	// ProgramSize returns the minimum program unit in bytes.
	ProgramSize() int64
	// ReadSize returns the minimum read unit in bytes.
	ReadSize() int64
	// Size returns the total device size in bytes.
	Size() int64
}

// EraseByte is the value erased flash reads back as.
const EraseByte = 0xff

func aligned(v, unit int64) bool {
	return unit > 0 && v%unit == 0
}

// AlignDown returns the largest multiple of unit not exceeding v.
func AlignDown(v, unit int64) int64 {
	return (v / unit) * unit
}

// AlignUp returns the smallest multiple of unit at or above v.
func AlignUp(v, unit int64) int64 {
	return ((v + unit - 1) / unit) * unit
}
