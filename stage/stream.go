package stage

import (
	"context"
	"fmt"
	"io"
)

// streamChunkSize is how much of the reader is delivered per chunk. The
// aligned block writer handles any chunking, so this only bounds memory.
const streamChunkSize = 32 * 1024

// StageStream runs a whole staging attempt from an io.Reader: Stage, a
// Chunk per read, then Finish. Context cancellation is checked between
// chunks, like Cancel, and never interrupts an in-flight program operation.
func (e *Engine) StageStream(ctx context.Context, expectedTotal int64, hs HashSpec, r io.Reader) error {
	if err := e.Stage(expectedTotal, hs); err != nil {
		return err
	}

	buf := make([]byte, streamChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			e.Cancel()
			e.Close()
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		n, err := r.Read(buf)
		if n > 0 {
			if cerr := e.Chunk(buf[:n]); cerr != nil {
				e.Close()
				return cerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			e.Close()
			return fmt.Errorf("stage: reading stream: %w", err)
		}
	}

	return e.Finish()
}
