// Package mcuimg parses MCUboot image headers.
//
// An MCUboot image starts with a fixed 32-byte little-endian header carrying
// a magic marker, the padded header size, the image size, the protected TLV
// size and the image version. The staging engine validates the magic before
// accepting an image and records the version for post-reboot matching.
package mcuimg

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic is the MCUboot image header magic (IMAGE_MAGIC).
	Magic = 0x96f3b83d

	// HeaderSize is the size of the fixed header structure in bytes.
	HeaderSize = 32
)

var (
	// ErrBadMagic is returned for headers whose magic marker is wrong.
	ErrBadMagic = errors.New("mcuimg: bad image magic")

	// ErrShortHeader is returned when fewer than HeaderSize bytes are given.
	ErrShortHeader = errors.New("mcuimg: short header")
)

// Version is an MCUboot image version triple plus build number.
type Version struct {
	Major    uint8
	Minor    uint8
	Revision uint16
	Build    uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d+%d", v.Major, v.Minor, v.Revision, v.Build)
}

// Header is the fixed MCUboot image header.
type Header struct {
	Magic          uint32
	LoadAddr       uint32
	PaddedSize     uint16 // size of header + padding up to the image body
	ProtectTLVSize uint16
	ImageSize      uint32
	Flags          uint32
	Version        Version
}

// ParseHeader decodes the fixed header from the first HeaderSize bytes of b
// and validates the magic marker.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, need %d", ErrShortHeader, len(b), HeaderSize)
	}
	h := Header{
		Magic:          binary.LittleEndian.Uint32(b[0:]),
		LoadAddr:       binary.LittleEndian.Uint32(b[4:]),
		PaddedSize:     binary.LittleEndian.Uint16(b[8:]),
		ProtectTLVSize: binary.LittleEndian.Uint16(b[10:]),
		ImageSize:      binary.LittleEndian.Uint32(b[12:]),
		Flags:          binary.LittleEndian.Uint32(b[16:]),
		Version: Version{
			Major:    b[20],
			Minor:    b[21],
			Revision: binary.LittleEndian.Uint16(b[22:]),
			Build:    binary.LittleEndian.Uint32(b[24:]),
		},
	}
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: got %#08x, want %#08x", ErrBadMagic, h.Magic, uint32(Magic))
	}
	return h, nil
}

// EncodeHeader is the inverse of ParseHeader. The returned slice is exactly
// HeaderSize bytes; the final four bytes are padding.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint32(b[4:], h.LoadAddr)
	binary.LittleEndian.PutUint16(b[8:], h.PaddedSize)
	binary.LittleEndian.PutUint16(b[10:], h.ProtectTLVSize)
	binary.LittleEndian.PutUint32(b[12:], h.ImageSize)
	binary.LittleEndian.PutUint32(b[16:], h.Flags)
	b[20] = h.Version.Major
	b[21] = h.Version.Minor
	binary.LittleEndian.PutUint16(b[22:], h.Version.Revision)
	binary.LittleEndian.PutUint32(b[24:], h.Version.Build)
	return b
}
