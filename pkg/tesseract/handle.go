package tesseract

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"
)

var pkgLog atomic.Pointer[slog.Logger]

func init() {
	pkgLog.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sets the logger used for handle lifecycle messages.
// Passing nil discards all messages (the default).
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	pkgLog.Store(l)
}

func logger() *slog.Logger {
	return pkgLog.Load()
}

// handle guards a native object that must not be used concurrently.
// All native calls happen while mu is held.
// The native destructor runs exactly once, when the last owner closes.
type handle[S any] struct {
	mu       sync.Mutex
	ptr      uintptr
	state    S
	poisoned bool
	owners   atomic.Int32
	name     string
	release  func(ptr uintptr, state *S)
}

// newHandle wraps ptr, returning ErrNullPointer if the constructor returned NULL.
// The returned owner is the first of possibly many.
func newHandle[S any](name, op string, ptr uintptr, state S, release func(uintptr, *S)) (*owner[S], error) {
	if ptr == 0 {
		return nil, newError(ErrNullPointer, op, nil)
	}
	h := &handle[S]{ptr: ptr, state: state, name: name, release: release}
	h.owners.Store(1)
	logger().Debug("native handle created", "type", name, "ptr", ptr)
	return &owner[S]{h: h}, nil
}

// do runs fn while holding the lock. If fn panics, the handle is poisoned
// and every later call fails with ErrMutexLock. The panic is not recovered.
func (h *handle[S]) do(op string, fn func(ptr uintptr, s *S) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.poisoned {
		return newError(ErrMutexLock, op, nil)
	}
	if h.ptr == 0 {
		return newError(ErrNullPointer, op, nil)
	}
	defer func() {
		if r := recover(); r != nil {
			h.poisoned = true
			panic(r)
		}
	}()
	return fn(h.ptr, &h.state)
}

func (h *handle[S]) drop() {
	if h.owners.Add(-1) > 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owners.Load() > 0 {
		// cloned while waiting for the lock
		return
	}
	if h.poisoned {
		// releasing might double free or use memory in an undefined state
		logger().Warn("lock of native handle is poisoned, leaking it", "type", h.name, "ptr", h.ptr)
		return
	}
	if h.ptr == 0 {
		return
	}
	ptr := h.ptr
	h.ptr = 0
	h.release(ptr, &h.state)
	logger().Debug("native handle released", "type", h.name, "ptr", ptr)
}

// owner is one reference to a shared handle. Closing it is idempotent.
type owner[S any] struct {
	h      *handle[S]
	closed atomic.Bool
}

func (o *owner[S]) clone() *owner[S] {
	o.h.owners.Add(1)
	return &owner[S]{h: o.h}
}

func (o *owner[S]) close() {
	if o.closed.CompareAndSwap(false, true) {
		o.h.drop()
	}
}

func (o *owner[S]) do(op string, fn func(ptr uintptr, s *S) error) error {
	if o.closed.Load() {
		return newError(ErrNullPointer, op, nil)
	}
	return o.h.do(op, fn)
}

// with runs fn under the handle's lock and returns its result.
func with[S, T any](o *owner[S], op string, fn func(ptr uintptr, s *S) (T, error)) (T, error) {
	var out T
	err := o.do(op, func(ptr uintptr, s *S) error {
		var err error
		out, err = fn(ptr, s)
		return err
	})
	return out, err
}

// doBoth runs fn while holding the locks of two different handles. The locks are taken
// in address order, so concurrent calls on the same pair in either order cannot deadlock.
// A panic in fn poisons both handles.
func doBoth[S any](a, b *owner[S], op string, fn func(pa uintptr, sa *S, pb uintptr, sb *S) error) error {
	if a.closed.Load() || b.closed.Load() {
		return newError(ErrNullPointer, op, nil)
	}
	first, second := a.h, b.h
	if uintptr(unsafe.Pointer(second)) < uintptr(unsafe.Pointer(first)) {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	for _, h := range []*handle[S]{a.h, b.h} {
		if h.poisoned {
			return newError(ErrMutexLock, op, nil)
		}
		if h.ptr == 0 {
			return newError(ErrNullPointer, op, nil)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			a.h.poisoned = true
			b.h.poisoned = true
			panic(r)
		}
	}()
	return fn(a.h.ptr, &a.h.state, b.h.ptr, &b.h.state)
}
