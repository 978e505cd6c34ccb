package hostcall

import "sync"

// MockRuntime is a test implementation of the Runtime interface. By
// default the calling goroutine is treated as unassociated, so every Run
// goes through a full attach/detach cycle; tests assert the cycle is
// balanced.
type MockRuntime struct {
	mu        sync.Mutex
	current   bool
	attachErr error
	attaches  int
	detaches  int
}

// NewMockRuntime creates a new MockRuntime instance.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{}
}

// SetCurrent makes Current report an existing association.
func (m *MockRuntime) SetCurrent(current bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = current
}

// SetAttachError makes Attach fail with err.
func (m *MockRuntime) SetAttachError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachErr = err
}

// Current reports the configured association state.
func (m *MockRuntime) Current() (Env, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current {
		return struct{}{}, true
	}
	return nil, false
}

// Attach records the attachment.
func (m *MockRuntime) Attach() (Env, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	m.attaches++
	return struct{}{}, nil
}

// Detach records the release.
func (m *MockRuntime) Detach(Env) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detaches++
}

// Attaches returns the number of recorded attachments.
func (m *MockRuntime) Attaches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attaches
}

// Detaches returns the number of recorded releases.
func (m *MockRuntime) Detaches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detaches
}
