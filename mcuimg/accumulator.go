package mcuimg

// Accumulator assembles the first HeaderSize bytes of a sequentially
// delivered stream. The header range may arrive split across any number of
// chunks; Absorb reports completion exactly once, on the call during which
// the range first becomes fully populated.
type Accumulator struct {
	buf  [HeaderSize]byte
	have int
}

// Absorb consumes the chunk p delivered at stream offset off. The stream
// must be sequential: off is the cumulative number of bytes delivered before
// this chunk. Returns true when this chunk completed the header.
func (a *Accumulator) Absorb(off int64, p []byte) (completed bool) {
	if a.have >= HeaderSize || off >= HeaderSize {
		return false
	}
	todo := HeaderSize - int(off)
	if todo > len(p) {
		todo = len(p)
	}
	copy(a.buf[off:], p[:todo])
	a.have = int(off) + todo
	return a.have == HeaderSize
}

// Complete reports whether the full header range has been absorbed.
func (a *Accumulator) Complete() bool {
	return a.have == HeaderSize
}

// Header parses the accumulated bytes. Only valid once Complete.
func (a *Accumulator) Header() (Header, error) {
	if !a.Complete() {
		return Header{}, ErrShortHeader
	}
	return ParseHeader(a.buf[:])
}
