package engine

import (
	"sync"
)

// MockProvider is a test implementation of the Provider interface. It hands
// out scripted engines and records the options used to create them.
type MockProvider struct {
	mu            sync.Mutex
	landmarkerErr error
	recognizerErr error
	landmarkers   []*MockLandmarker
	recognizers   []*MockRecognizer
	lastOptions   Options
}

// NewMockProvider creates a new MockProvider instance.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// SetLandmarkerError makes NewLandmarker fail with err.
func (p *MockProvider) SetLandmarkerError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.landmarkerErr = err
}

// SetRecognizerError makes NewRecognizer fail with err.
func (p *MockProvider) SetRecognizerError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recognizerErr = err
}

// NewLandmarker returns a fresh MockLandmarker wired to onResult.
func (p *MockProvider) NewLandmarker(opts Options, onResult ResultFunc) (Landmarker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOptions = opts
	if p.landmarkerErr != nil {
		return nil, p.landmarkerErr
	}
	lm := &MockLandmarker{onResult: onResult}
	p.landmarkers = append(p.landmarkers, lm)
	return lm, nil
}

// NewRecognizer returns a fresh MockRecognizer.
func (p *MockProvider) NewRecognizer(opts Options) (Recognizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastOptions = opts
	if p.recognizerErr != nil {
		return nil, p.recognizerErr
	}
	r := &MockRecognizer{}
	p.recognizers = append(p.recognizers, r)
	return r, nil
}

// Landmarkers returns the landmarkers created so far.
func (p *MockProvider) Landmarkers() []*MockLandmarker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockLandmarker(nil), p.landmarkers...)
}

// Recognizers returns the recognizers created so far.
func (p *MockProvider) Recognizers() []*MockRecognizer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockRecognizer(nil), p.recognizers...)
}

// LastOptions returns the options passed to the most recent constructor.
func (p *MockProvider) LastOptions() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOptions
}

// MockLandmarker is a scripted Landmarker. Submissions succeed unless a
// submit error is set; results are emitted manually via Emit so tests
// control delivery timing.
type MockLandmarker struct {
	mu        sync.Mutex
	onResult  ResultFunc
	submitErr error
	closed    bool
	submitted []int64
	lastImage *Image
}

// SetSubmitError makes subsequent DetectAsync calls fail with err.
func (m *MockLandmarker) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// DetectAsync records the submission. On success it closes img, imitating
// the engine consuming the frame; on failure the caller keeps ownership.
func (m *MockLandmarker) DetectAsync(img *Image, timestampMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastImage = img
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, timestampMs)
	if img != nil {
		img.Close()
	}
	return nil
}

// Emit delivers a result to the registered callback on a new goroutine,
// imitating the engine-owned result thread, and blocks until the callback
// has returned.
func (m *MockLandmarker) Emit(res *Result, timestampMs int64, err error) {
	m.mu.Lock()
	cb := m.onResult
	m.mu.Unlock()
	if cb == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		cb(res, timestampMs, err)
	}()
	<-done
}

// LastImage returns the image passed to the most recent DetectAsync call,
// successful or not. Ownership-transfer tests inspect its closed state.
func (m *MockLandmarker) LastImage() *Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastImage
}

// Submitted returns the timestamps of successful submissions.
func (m *MockLandmarker) Submitted() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.submitted...)
}

// Close marks the landmarker closed.
func (m *MockLandmarker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockLandmarker) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockRecognizer is a scripted Recognizer returning a pre-configured
// result or error.
type MockRecognizer struct {
	mu     sync.Mutex
	result *Result
	err    error
	closed bool
	calls  int
}

// SetResult sets the result returned by RecognizeForVideo.
func (m *MockRecognizer) SetResult(res *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = res
}

// SetError sets the error returned by RecognizeForVideo.
func (m *MockRecognizer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// RecognizeForVideo returns the scripted result or error. The caller keeps
// ownership of img.
func (m *MockRecognizer) RecognizeForVideo(img *Image, timestampMs int64) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// Calls returns how many times RecognizeForVideo was invoked.
func (m *MockRecognizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the recognizer closed.
func (m *MockRecognizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (m *MockRecognizer) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
