// Package bridge connects a consumer to the hand-tracking inference engine
// through opaque session handles and a narrow callback boundary. Raw pixel
// frames go in; packed result buffers come back through the registered
// callback, asynchronously for streaming landmark sessions and before the
// triggering call returns for blocking gesture sessions.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/engine"
	"github.com/ayusman/mudra/internal/hostcall"
	"github.com/ayusman/mudra/internal/wire"
)

// Handle identifies a session. Handles are never reused within a Bridge.
type Handle int64

var (
	// ErrUnknownHandle is returned for handles that were never issued or
	// belong to a closed session.
	ErrUnknownHandle = errors.New("unknown session handle")

	// ErrNilCallback is returned when a create or replace call passes a
	// nil callback.
	ErrNilCallback = errors.New("callback must not be nil")

	// ErrWrongSessionKind is returned when an operation targets a session
	// of the other variant.
	ErrWrongSessionKind = errors.New("operation does not match session kind")
)

// Config holds the collaborators a Bridge is built from.
type Config struct {
	// Provider constructs engine instances. Required.
	Provider engine.Provider

	// Runtime is the host runtime callbacks must run within. Defaults to
	// hostcall.GoRuntime.
	Runtime hostcall.Runtime

	// Log receives bridge diagnostics. Defaults to the standard logger.
	Log *logrus.Logger
}

// Bridge owns the session registry. Safe for concurrent use; per-session
// lifecycle mutations are serialized against deliveries for that session.
type Bridge struct {
	provider engine.Provider
	runtime  hostcall.Runtime
	log      *logrus.Logger

	mu       sync.RWMutex
	sessions map[Handle]*session
	next     Handle
}

// New creates a Bridge with the given configuration.
func New(cfg Config) *Bridge {
	rt := cfg.Runtime
	if rt == nil {
		rt = hostcall.GoRuntime{}
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{
		provider: cfg.Provider,
		runtime:  rt,
		log:      log,
		sessions: make(map[Handle]*session),
	}
}

// CreateLandmarker opens a streaming landmark session. The engine runs the
// landmark pipeline in live-stream mode; results reach cb on engine-owned
// goroutines. Configuration problems (bad model path, invalid options, nil
// callback) fail here with a descriptive error.
func (b *Bridge) CreateLandmarker(modelPath string, cb LandmarkCallback) (Handle, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}

	opts := engine.DefaultOptions(modelPath)
	opts.NumHands = wire.MaxHands
	if err := opts.Validate(); err != nil {
		return 0, fmt.Errorf("create landmarker: %w", err)
	}

	s := b.newSession(landmarkKind)
	s.onLandmarks = cb

	lm, err := b.provider.NewLandmarker(opts, s.deliverAsync)
	if err != nil {
		return 0, fmt.Errorf("create landmarker: %w", err)
	}
	s.landmarker = lm

	b.register(s)
	s.log.Info("landmark session created")
	return s.handle, nil
}

// CreateRecognizer opens a blocking gesture session. The engine runs the
// gesture pipeline in synchronous video mode; cb is invoked on the calling
// goroutine before RecognizeVideo returns.
func (b *Bridge) CreateRecognizer(modelPath string, numHands int, cb GestureCallback) (Handle, error) {
	if cb == nil {
		return 0, ErrNilCallback
	}

	opts := engine.DefaultOptions(modelPath)
	opts.NumHands = numHands
	if err := opts.Validate(); err != nil {
		return 0, fmt.Errorf("create recognizer: %w", err)
	}

	s := b.newSession(gestureKind)
	s.onGestures = cb

	rec, err := b.provider.NewRecognizer(opts)
	if err != nil {
		return 0, fmt.Errorf("create recognizer: %w", err)
	}
	s.recognizer = rec

	b.register(s)
	s.log.Info("gesture session created")
	return s.handle, nil
}

// DetectAsync submits a frame to a streaming landmark session and returns
// without waiting for the result. A non-nil error marks a dropped frame,
// never a dead session; the caller decides whether to resubmit.
func (b *Bridge) DetectAsync(h Handle, pixels []byte, width, height int, timestampMs int64) error {
	s, err := b.session(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if s.kind != landmarkKind {
		return fmt.Errorf("%w: detect requires a landmark session", ErrWrongSessionKind)
	}

	img, err := adaptFrame(pixels, width, height)
	if err != nil {
		s.log.WithError(err).Warn("frame rejected")
		return err
	}

	if err := s.landmarker.DetectAsync(img, timestampMs); err != nil {
		// Submission failed, so ownership never transferred; release the
		// image here or it leaks.
		img.Close()
		s.log.WithError(err).WithField("timestamp_ms", timestampMs).Warn("frame submit failed")
		return fmt.Errorf("submit frame: %w", err)
	}
	return nil
}

// RecognizeVideo submits a frame to a blocking gesture session. It blocks
// until the engine answers, invokes the registered callback with the
// packed result (nil for zero hands), and then returns. On engine error
// the callback is not invoked and the error is returned.
func (b *Bridge) RecognizeVideo(h Handle, pixels []byte, width, height int, timestampMs int64) error {
	s, err := b.session(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if s.kind != gestureKind {
		return fmt.Errorf("%w: recognize requires a gesture session", ErrWrongSessionKind)
	}

	img, err := adaptFrame(pixels, width, height)
	if err != nil {
		s.log.WithError(err).Warn("frame rejected")
		return err
	}
	// Synchronous path: the image stays owned here on both outcomes.
	defer img.Close()

	res, err := s.recognizer.RecognizeForVideo(img, timestampMs)
	if err != nil {
		s.log.WithError(err).WithField("timestamp_ms", timestampMs).Warn("recognition failed")
		return fmt.Errorf("recognize frame: %w", err)
	}

	buf, names := wire.PackGestures(res)
	if cb := s.onGestures; cb != nil {
		// The calling goroutine is already associated with the host; no
		// transient attachment is taken on the synchronous path.
		cb(buf, names, timestampMs)
	}
	return nil
}

// SetLandmarkCallback replaces the callback of a streaming landmark
// session. The previous reference is dropped in the same critical section,
// so no delivery ever sees both.
func (b *Bridge) SetLandmarkCallback(h Handle, cb LandmarkCallback) error {
	if cb == nil {
		return ErrNilCallback
	}
	s, err := b.session(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if s.kind != landmarkKind {
		return ErrWrongSessionKind
	}
	s.onLandmarks = cb
	return nil
}

// SetGestureCallback replaces the callback of a blocking gesture session.
func (b *Bridge) SetGestureCallback(h Handle, cb GestureCallback) error {
	if cb == nil {
		return ErrNilCallback
	}
	s, err := b.session(h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if s.kind != gestureKind {
		return ErrWrongSessionKind
	}
	s.onGestures = cb
	return nil
}

// Close releases a session: the engine instance is closed and the callback
// reference dropped. Idempotent; closing an unknown or already-closed
// handle is a no-op. An asynchronous result still in flight when Close
// runs is delivered nowhere — the reference is already gone.
func (b *Bridge) Close(h Handle) {
	b.mu.Lock()
	s := b.sessions[h]
	delete(b.sessions, h)
	b.mu.Unlock()

	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.onLandmarks = nil
	s.onGestures = nil

	var err error
	switch s.kind {
	case landmarkKind:
		err = s.landmarker.Close()
	case gestureKind:
		err = s.recognizer.Close()
	}
	if err != nil {
		s.log.WithError(err).Warn("engine close failed")
	} else {
		s.log.Info("session closed")
	}
}

// CloseAll closes every open session.
func (b *Bridge) CloseAll() {
	b.mu.RLock()
	handles := make([]Handle, 0, len(b.sessions))
	for h := range b.sessions {
		handles = append(handles, h)
	}
	b.mu.RUnlock()

	for _, h := range handles {
		b.Close(h)
	}
}

func (b *Bridge) newSession(kind sessionKind) *session {
	b.mu.Lock()
	b.next++
	h := b.next
	b.mu.Unlock()

	return &session{
		handle:  h,
		kind:    kind,
		runtime: b.runtime,
		log:     b.log.WithField("handle", h),
	}
}

func (b *Bridge) register(s *session) {
	b.mu.Lock()
	b.sessions[s.handle] = s
	b.mu.Unlock()
}

func (b *Bridge) session(h Handle) (*session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return s, nil
}
