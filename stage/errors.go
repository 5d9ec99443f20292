package stage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStaging is returned when Chunk or Finish is called without a
	// staging attempt in progress.
	ErrNotStaging = errors.New("stage: no staging attempt in progress")

	// ErrNotStaged is returned by Activate when no verified staged image
	// exists.
	ErrNotStaged = errors.New("stage: no verified staged image")

	// ErrCancelled is returned once Cancel has been requested.
	ErrCancelled = errors.New("stage: cancelled")

	// ErrShortStream is returned by Finish when the delivered byte count
	// does not match the expected total.
	ErrShortStream = errors.New("stage: stream length mismatch")

	// ErrNoCriteria is returned when an empty installed criteria is given.
	ErrNoCriteria = errors.New("stage: installed criteria is empty")
)

// ConfigError is a fatal configuration problem, e.g. a device whose read
// granularity is smaller than its program granularity. It is never worth
// retrying.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "stage: configuration error: " + e.Reason
}

// HashMismatchError reports that the staged image's digest does not match
// the expected digest from the update manifest. The staged bytes are left in
// place for diagnosis.
type HashMismatchError struct {
	Algorithm string
	Expected  string // base64
	Actual    string // base64
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("stage: %s digest mismatch: expected %s, got %s",
		e.Algorithm, e.Expected, e.Actual)
}
