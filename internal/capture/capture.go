package capture

import "errors"

// ErrNoFrame signals that the source has no frame available right now.
// Callers skip the tick and try again on the next one.
var ErrNoFrame = errors.New("no frame available")

// FrameSource produces JPEG-encoded frames for a streaming session.
// Implementations own the underlying device and must tolerate Close being
// called more than once.
type FrameSource interface {
	// Read captures one frame and returns it as JPEG bytes.
	// Returns ErrNoFrame when the device momentarily has nothing to give.
	Read() ([]byte, error)
	Close() error
}
