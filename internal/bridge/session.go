package bridge

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/hostcall"
	"github.com/ayusman/mudra/internal/wire"
)

// LandmarkCallback receives packed landmark buffers. buf is nil when the
// frame produced no hands or inference failed.
type LandmarkCallback func(buf []float32, timestampMs int64)

// GestureCallback receives packed gesture buffers with the parallel
// gesture-name slice. Both are nil when the frame produced no hands.
type GestureCallback func(buf []float32, gestures []string, timestampMs int64)

type sessionKind int

const (
	landmarkKind sessionKind = iota
	gestureKind
)

// session pairs one engine instance with at most one registered callback.
// The callback reference is per-session state; replacing it drops the old
// reference atomically and closing the session clears it.
type session struct {
	handle  Handle
	kind    sessionKind
	runtime hostcall.Runtime
	log     *logrus.Entry

	// mu serializes lifecycle mutations (replace, close) against frame
	// submission and synchronous delivery for this session.
	mu          sync.Mutex
	closed      bool
	landmarker  engine.Landmarker
	recognizer  engine.Recognizer
	onLandmarks LandmarkCallback
	onGestures  GestureCallback
}

// deliverAsync is the engine result callback for streaming landmark
// sessions. It runs on an engine-owned goroutine: the result is packed
// here and handed to the registered callback inside a transient host
// attachment. A session mid-teardown (no callback left, or no runtime)
// drops the delivery silently.
func (s *session) deliverAsync(res *engine.Result, timestampMs int64, err error) {
	var buf []float32
	if err != nil {
		s.log.WithError(err).WithField("timestamp_ms", timestampMs).Warn("inference failed")
	} else {
		buf = wire.PackLandmarks(res)
	}

	s.mu.Lock()
	cb := s.onLandmarks
	closed := s.closed
	s.mu.Unlock()

	if closed || cb == nil {
		return
	}

	if runErr := hostcall.Run(s.runtime, func(hostcall.Env) {
		cb(buf, timestampMs)
	}); runErr != nil {
		s.log.WithError(runErr).Debug("result dropped")
	}
}
