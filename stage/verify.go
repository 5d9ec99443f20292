package stage

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"github.com/mcustage/fwstage/blockdev"
)

// HashSpec names the digest the update manifest expects for the staged
// image: an algorithm and the base64-encoded digest value.
type HashSpec struct {
	Algorithm string // sha256, sha384 or sha512
	Digest    string // base64 (standard encoding)
}

func (hs HashSpec) newHash() (hash.Hash, error) {
	switch strings.ToLower(hs.Algorithm) {
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("stage: unsupported hash algorithm %q", hs.Algorithm)
}

// verify re-reads the staged image through the device's read granularity and
// compares the digest against the expected value. The final, possibly
// short, read still reads a full block; only the logically valid remainder
// is hashed. On mismatch the staged bytes are left in place.
func (c *stagingContext) verify() error {
	h, err := c.hash.newHash()
	if err != nil {
		return err
	}

	blockSize := int64(len(c.readBlock))
	var off int64
	rmn := c.actualTotal

	// Full blocks.
	for rmn >= blockSize {
		if err := c.dev.Read(c.readBlock, off); err != nil {
			return fmt.Errorf("stage: reading block at %d: %w", off, err)
		}
		h.Write(c.readBlock)
		off += blockSize
		rmn -= blockSize
	}

	// Short final block: over-read past the logical end up to the read
	// granularity, hash only the remainder.
	if rmn > 0 {
		n := blockdev.AlignUp(rmn, c.dev.ReadSize())
		if err := c.dev.Read(c.readBlock[:n], off); err != nil {
			return fmt.Errorf("stage: reading block at %d: %w", off, err)
		}
		h.Write(c.readBlock[:rmn])
	}

	got := base64.StdEncoding.EncodeToString(h.Sum(nil))
	if got != c.hash.Digest {
		return &HashMismatchError{
			Algorithm: c.hash.Algorithm,
			Expected:  c.hash.Digest,
			Actual:    got,
		}
	}
	return nil
}
