package wire

import "github.com/ayusman/mudra/internal/engine"

// Hand is a decoded per-hand view of a packed buffer, used by consumers
// that re-inflate results (persistence, live streaming). Decoding is lossy
// where packing was: handedness comes back as "Right" or "Left" only.
type Hand struct {
	Handedness string                    `json:"handedness"`
	Gesture    string                    `json:"gesture,omitempty"`
	Score      float32                   `json:"score,omitempty"`
	Points     [NumLandmarks]engine.Point `json:"points"`
}

// DecodeLandmarks re-inflates a landmark buffer. Returns nil for a nil or
// malformed buffer.
func DecodeLandmarks(buf []float32) []Hand {
	return decode(buf, nil, LandmarkStride)
}

// DecodeGestures re-inflates a gesture buffer and its parallel name slice.
func DecodeGestures(buf []float32, names []string) []Hand {
	return decode(buf, names, GestureStride)
}

func decode(buf []float32, names []string, stride int) []Hand {
	if len(buf) < 1 {
		return nil
	}
	numHands := int(buf[0])
	if numHands <= 0 || len(buf) < 1+numHands*stride {
		return nil
	}

	hands := make([]Hand, numHands)
	for h := 0; h < numHands; h++ {
		base := 1 + h*stride
		if buf[base] == 1 {
			hands[h].Handedness = "Right"
		} else {
			hands[h].Handedness = "Left"
		}

		offset := base + 1
		if stride == GestureStride {
			hands[h].Score = buf[base+1]
			if h < len(names) {
				hands[h].Gesture = names[h]
			}
			offset = base + 2
		}

		for i := 0; i < NumLandmarks; i++ {
			hands[h].Points[i] = engine.Point{
				X: buf[offset+i*3],
				Y: buf[offset+i*3+1],
				Z: buf[offset+i*3+2],
			}
		}
	}
	return hands
}
