// Package wire implements the flat float-buffer format in which results
// cross the callback boundary.
//
// Landmark buffers: [numHands, per-hand(handedness, 21*xyz)], 64 floats
// per hand. Gesture buffers insert the top gesture score after handedness
// (65 floats per hand) and carry the gesture names in a parallel string
// slice, one entry per hand. The layout is a versioned binary contract:
// consumers depend on the exact offsets.
package wire

import "github.com/ayusman/mudra/internal/engine"

const (
	// MaxHands is the hard cap on hands per buffer. Engine results
	// reporting more are truncated silently.
	MaxHands = 2

	// NumLandmarks is the fixed hand topology size.
	NumLandmarks = 21

	// LandmarkStride is the float count per hand in a landmark buffer:
	// handedness + 21 xyz triples.
	LandmarkStride = 1 + NumLandmarks*3

	// GestureStride is the float count per hand in a gesture buffer:
	// handedness + gesture score + 21 xyz triples.
	GestureStride = 2 + NumLandmarks*3
)

// PackLandmarks flattens a landmark result. Returns nil when res is nil or
// reports zero hands; the callback contract is a nil marker, never an
// empty buffer.
func PackLandmarks(res *engine.Result) []float32 {
	numHands := cappedHands(res)
	if numHands == 0 {
		return nil
	}

	buf := make([]float32, 1+numHands*LandmarkStride)
	buf[0] = float32(numHands)

	for h := 0; h < numHands; h++ {
		base := 1 + h*LandmarkStride
		buf[base] = handednessValue(res, h)
		packPoints(buf[base+1:], res.Landmarks[h])
	}
	return buf
}

// PackGestures flattens a gesture result into a buffer and a parallel
// slice of gesture names. A hand without a gesture category gets score 0
// and an empty name slot. Returns nil, nil for an absent or empty result.
func PackGestures(res *engine.Result) ([]float32, []string) {
	numHands := cappedHands(res)
	if numHands == 0 {
		return nil, nil
	}

	buf := make([]float32, 1+numHands*GestureStride)
	names := make([]string, numHands)
	buf[0] = float32(numHands)

	for h := 0; h < numHands; h++ {
		base := 1 + h*GestureStride
		buf[base] = handednessValue(res, h)

		if h < len(res.Gestures) && len(res.Gestures[h]) > 0 {
			buf[base+1] = res.Gestures[h][0].Score
			names[h] = res.Gestures[h][0].Label
		}

		packPoints(buf[base+2:], res.Landmarks[h])
	}
	return buf, names
}

func cappedHands(res *engine.Result) int {
	n := res.HandCount()
	if n > MaxHands {
		n = MaxHands
	}
	return n
}

// handednessValue reduces the top handedness category to a binary flag:
// 1.0 when the label starts with 'R', 0.0 otherwise (including missing or
// empty labels). This is a label-prefix heuristic, kept bit-compatible
// with the existing consumers; any unexpected label silently reads as
// left.
func handednessValue(res *engine.Result, h int) float32 {
	if h >= len(res.Handedness) || len(res.Handedness[h]) == 0 {
		return 0
	}
	label := res.Handedness[h][0].Label
	if len(label) > 0 && label[0] == 'R' {
		return 1
	}
	return 0
}

// packPoints writes up to NumLandmarks xyz triples into dst. Fewer points
// leave the trailing slots zero; extra points are ignored.
func packPoints(dst []float32, points []engine.Point) {
	for i := 0; i < len(points) && i < NumLandmarks; i++ {
		dst[i*3] = points[i].X
		dst[i*3+1] = points[i].Y
		dst[i*3+2] = points[i].Z
	}
}
