package bridge

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/engine"
)

// Frames are raw 3-channel sRGB byte rows; no other pixel format is
// negotiated.
const frameChannels = 3

// ErrShortBuffer is returned when a pixel buffer is too small for the
// declared dimensions.
var ErrShortBuffer = errors.New("pixel buffer too short")

// adaptFrame wraps raw sRGB bytes into the engine's image representation.
// Ownership of the returned image follows the invocation that consumes it;
// on error no image exists and nothing is retained.
func adaptFrame(pixels []byte, width, height int) (*engine.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}

	need := width * height * frameChannels
	if len(pixels) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for %dx%d",
			ErrShortBuffer, len(pixels), need, width, height)
	}

	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pixels[:need])
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}

	return engine.NewImage(mat, width, height), nil
}
