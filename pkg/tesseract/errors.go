package tesseract

import (
	"errors"
	"strings"
)

// Kind classifies a failure of the binding. Every Kind is an error itself,
// so it can be used as a sentinel with [errors.Is]:
//
//	if errors.Is(err, tesseract.ErrInit) { ... }
type Kind int

const (
	// ErrInit means the engine could not be initialized (bad datapath, unknown language...)
	ErrInit Kind = iota + 1
	// ErrSetImage means the engine rejected an image
	ErrSetImage
	// ErrOcr means recognition failed
	ErrOcr
	// ErrInvalidUTF8 means the engine returned text that is not valid UTF-8
	ErrInvalidUTF8
	// ErrMutexLock means a handle's lock was poisoned by a goroutine that panicked while holding it
	ErrMutexLock
	ErrSetVariable
	ErrGetVariable
	// ErrNullPointer means the engine returned NULL, or the handle has been released already
	ErrNullPointer
	ErrInvalidParameter
	ErrAnalyseLayout
	ErrProcessPages
	ErrIO
	ErrInvalidDimensions
	ErrInvalidBytesPerPixel
	ErrInvalidBytesPerLine
	ErrInvalidImageData
	// ErrUninitialized means an operation requiring Init was called before Init or after End
	ErrUninitialized
	// ErrLibrary means libtesseract could not be loaded or lacks an entry point
	ErrLibrary
)

var kindText = map[Kind]string{
	ErrInit:                 "initialization failed",
	ErrSetImage:             "setting image failed",
	ErrOcr:                  "recognition failed",
	ErrInvalidUTF8:          "invalid UTF-8",
	ErrMutexLock:            "lock poisoned",
	ErrSetVariable:          "setting variable failed",
	ErrGetVariable:          "getting variable failed",
	ErrNullPointer:          "null pointer",
	ErrInvalidParameter:     "invalid parameter",
	ErrAnalyseLayout:        "layout analysis failed",
	ErrProcessPages:         "processing pages failed",
	ErrIO:                   "I/O error",
	ErrInvalidDimensions:    "invalid image dimensions",
	ErrInvalidBytesPerPixel: "invalid bytes per pixel",
	ErrInvalidBytesPerLine:  "invalid bytes per line",
	ErrInvalidImageData:     "invalid image data",
	ErrUninitialized:        "engine not initialized",
	ErrLibrary:              "native library unavailable",
}

func (k Kind) Error() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is returned by every fallible operation of this package.
type Error struct {
	Kind Kind
	// Op is the native entry point (or wrapper operation) that failed
	Op string
	// Err is the underlying error, if any
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("tesseract: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of err or 0 if err was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
