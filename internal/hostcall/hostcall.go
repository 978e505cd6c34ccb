// Package hostcall manages association of engine-owned callback
// goroutines with the consumer's host runtime.
//
// Asynchronous results arrive on goroutines the bridge does not own and
// that are not guaranteed to be associated with the host (an embedded VM,
// a foreign runtime reached over cgo, or plain Go). A callback must only
// run inside an association; hostcall provides the transient attach/detach
// device that guarantees one for the duration of a call.
package hostcall

import "errors"

// ErrNoRuntime is returned by Run when no runtime is configured.
var ErrNoRuntime = errors.New("no host runtime configured")

// Env is the opaque per-attachment context handed to callbacks.
type Env interface{}

// Runtime is the host a callback must be associated with before it runs.
type Runtime interface {
	// Current returns the attachment for the calling goroutine, if it
	// already has one.
	Current() (Env, bool)

	// Attach associates the calling goroutine with the runtime for the
	// duration of a call. The returned Env must be passed to Detach.
	Attach() (Env, error)

	// Detach releases an attachment created by Attach.
	Detach(Env)
}

// Run invokes fn inside a runtime attachment. Goroutines that are already
// associated are used as-is; otherwise a transient attachment is acquired
// and released on every exit path, including a panic in fn.
func Run(rt Runtime, fn func(Env)) error {
	if rt == nil {
		return ErrNoRuntime
	}

	env, ok := rt.Current()
	if !ok {
		var err error
		env, err = rt.Attach()
		if err != nil {
			return err
		}
		defer rt.Detach(env)
	}

	fn(env)
	return nil
}

// GoRuntime is the Runtime for plain Go consumers. Go goroutines never
// need explicit association, so Current always succeeds and attach is
// never taken.
type GoRuntime struct{}

// Current always reports an existing association.
func (GoRuntime) Current() (Env, bool) { return struct{}{}, true }

// Attach is a no-op.
func (GoRuntime) Attach() (Env, error) { return struct{}{}, nil }

// Detach is a no-op.
func (GoRuntime) Detach(Env) {}
