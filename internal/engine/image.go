package engine

import (
	"sync"

	"gocv.io/x/gocv"
)

// Image wraps a frame in the engine's native representation. Close releases
// the underlying pixel storage; whoever holds ownership per the Landmarker
// and Recognizer contracts is responsible for calling it exactly once.
type Image struct {
	mat    gocv.Mat
	width  int
	height int

	mu     sync.Mutex
	closed bool
}

// NewImage wraps a Mat. The Image takes ownership of the Mat.
func NewImage(mat gocv.Mat, width, height int) *Image {
	return &Image{mat: mat, width: width, height: height}
}

// Mat returns the underlying pixel matrix.
func (i *Image) Mat() *gocv.Mat { return &i.mat }

// Width returns the frame width in pixels.
func (i *Image) Width() int { return i.width }

// Height returns the frame height in pixels.
func (i *Image) Height() int { return i.height }

// Close releases the pixel storage. Safe to call more than once.
func (i *Image) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.mat.Close()
}

// Closed reports whether the image has been released.
func (i *Image) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
