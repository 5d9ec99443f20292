// Package boot abstracts the bootloader's slot-selection state: reading the
// running image's header, marking the staged image pending, and confirming
// or reading back the confirmation of a swap.
package boot

import "github.com/mcustage/fwstage/mcuimg"

// Slot identifies one of the two image slots.
type Slot int

const (
	// Primary holds the currently running image.
	Primary Slot = iota
	// Secondary holds the staged candidate image.
	Secondary
)

func (s Slot) String() string {
	switch s {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return "unknown"
}

// Loader is the bootloader interface the staging engine consumes. The swap
// algorithm itself is the bootloader's business; the engine only marks
// intent and reads back outcomes.
type Loader interface {
	// ActiveHeader reads the image header of the running (primary) image.
	ActiveHeader() (mcuimg.Header, error)

	// MarkPending asks the bootloader to swap in the secondary image on the
	// next boot. With permanent=false the swap is revertible: the bootloader
	// swaps back unless the new image is confirmed.
	MarkPending(permanent bool) error

	// MarkConfirmed marks the running primary image as confirmed, keeping
	// the system on it.
	MarkConfirmed() error

	// Confirmed reports whether the image in the given slot carries the
	// confirmed flag.
	Confirmed(slot Slot) (bool, error)
}
