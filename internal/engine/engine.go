// Package engine defines the contract with the hand-tracking inference
// engine and the result types it produces. The engine itself is an external
// collaborator: this package describes its surface and ships a
// subprocess-backed implementation plus a mock for tests.
package engine

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Point is a single normalized landmark coordinate.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Category is one classification entry, ranked by the engine.
type Category struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// Result is the inference outcome for a single frame. All slices are
// indexed by detected hand; Gestures is empty for landmark-only pipelines.
type Result struct {
	Handedness [][]Category
	Landmarks  [][]Point
	Gestures   [][]Category
}

// HandCount returns the number of hands the engine reported.
func (r *Result) HandCount() int {
	if r == nil {
		return 0
	}
	return len(r.Landmarks)
}

// ResultFunc receives asynchronous results on a goroutine owned by the
// engine. err is non-nil when inference for the submitted frame failed,
// in which case res is nil.
type ResultFunc func(res *Result, timestampMs int64, err error)

// Options configures a Landmarker or Recognizer instance.
type Options struct {
	ModelPath              string  `validate:"required"`
	NumHands               int     `validate:"min=1,max=2"`
	MinDetectionConfidence float32 `validate:"gte=0,lte=1"`
	MinPresenceConfidence  float32 `validate:"gte=0,lte=1"`
	MinTrackingConfidence  float32 `validate:"gte=0,lte=1"`
}

// DefaultOptions returns Options with the standard confidence thresholds.
func DefaultOptions(modelPath string) Options {
	return Options{
		ModelPath:              modelPath,
		NumHands:               2,
		MinDetectionConfidence: 0.5,
		MinPresenceConfidence:  0.5,
		MinTrackingConfidence:  0.5,
	}
}

var validate = validator.New()

// Validate checks the options and returns a descriptive error for any
// misconfiguration. Called before an engine instance is created so bad
// configuration surfaces at create time, not per frame.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid engine options: %w", err)
	}
	return nil
}

// Landmarker runs the hand-landmark pipeline in live-stream mode. Frames
// are submitted without blocking; results arrive via the ResultFunc given
// at construction.
//
// DetectAsync transfers ownership of img to the engine when it returns nil:
// the engine closes the image once consumed. When it returns an error the
// caller keeps ownership and must close the image itself.
type Landmarker interface {
	DetectAsync(img *Image, timestampMs int64) error
	Close() error
}

// Recognizer runs the gesture pipeline in blocking video mode.
// RecognizeForVideo blocks the calling goroutine until a result or error is
// available; the caller keeps ownership of img on both outcomes.
//
// The gesture pipeline must not be run in live-stream mode: its graph
// produces intermediate matrix packets that are corrupted under the async
// clearing path. Video mode sidesteps this.
type Recognizer interface {
	RecognizeForVideo(img *Image, timestampMs int64) (*Result, error)
	Close() error
}

// Provider constructs engine instances. Construction errors are
// configuration errors and must carry a descriptive message.
type Provider interface {
	NewLandmarker(opts Options, onResult ResultFunc) (Landmarker, error)
	NewRecognizer(opts Options) (Recognizer, error)
}
