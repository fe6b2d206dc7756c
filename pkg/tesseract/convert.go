package tesseract

import (
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// goStringLen returns the number of bytes before the terminating NUL.
func goStringLen(p *byte) int {
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return n
}

// borrowString copies a NUL terminated string without freeing it.
// The bytes are checked to be valid UTF-8.
func borrowString(op string, p *byte) (string, error) {
	if p == nil {
		return "", newError(ErrNullPointer, op, nil)
	}
	b := unsafe.Slice(p, goStringLen(p))
	if !utf8.Valid(b) {
		return "", newError(ErrInvalidUTF8, op, invalidUTF8(b))
	}
	return string(b), nil
}

// copyText copies a NUL terminated string owned by the caller and frees it
// afterwards by calling free exactly once, even if the text is not valid UTF-8.
func copyText(op string, p *byte, free func(*byte)) (string, error) {
	if p == nil {
		return "", newError(ErrNullPointer, op, nil)
	}
	s, err := borrowString(op, p)
	free(p)
	return s, err
}

// copyTextArray copies a NULL terminated array of strings and frees the array
// (including its elements) by calling free exactly once.
func copyTextArray(op string, p **byte, free func(**byte)) ([]string, error) {
	if p == nil {
		return nil, newError(ErrNullPointer, op, nil)
	}
	defer free(p)
	out := []string{}
	for i := 0; ; i++ {
		elem := *(**byte)(unsafe.Add(unsafe.Pointer(p), i*int(unsafe.Sizeof(p))))
		if elem == nil {
			return out, nil
		}
		s, err := borrowString(op, elem)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// copyIntArray copies an int array terminated by -1. The sentinel is not included.
func copyIntArray(op string, p *int32, free func(*int32)) ([]int, error) {
	if p == nil {
		return nil, newError(ErrNullPointer, op, nil)
	}
	defer free(p)
	out := []int{}
	for i := 0; ; i++ {
		v := *(*int32)(unsafe.Add(unsafe.Pointer(p), i*4))
		if v == -1 {
			return out, nil
		}
		out = append(out, int(v))
	}
}

func invalidUTF8(b []byte) error {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return fmt.Errorf("invalid byte 0x%02x at offset %d", b[i], i)
		}
		i += size
	}
	return nil
}

// cString returns a NUL terminated copy of s. Strings containing NUL are rejected.
func cString(op, s string) (*byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, newError(ErrInvalidParameter, op, fmt.Errorf("string %q contains NUL", s))
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0], nil
}

// nullableCString is like cString, but returns nil for the empty string.
// The engine treats NULL as "use the default" for paths.
func nullableCString(op, s string) (*byte, error) {
	if s == "" {
		return nil, nil
	}
	return cString(op, s)
}

// cStringArray holds a NULL terminated char** array built from Go memory.
// Its elements are pinned until Unpin is called.
type cStringArray struct {
	ptrs   []*byte
	pinner runtime.Pinner
}

func newCStringArray(op string, elems []string) (*cStringArray, error) {
	a := &cStringArray{ptrs: make([]*byte, 0, len(elems)+1)}
	for _, e := range elems {
		p, err := cString(op, e)
		if err != nil {
			a.pinner.Unpin()
			return nil, err
		}
		a.pinner.Pin(p)
		a.ptrs = append(a.ptrs, p)
	}
	a.ptrs = append(a.ptrs, nil)
	return a, nil
}

// Ptr returns the char** or nil if the array is empty.
func (a *cStringArray) Ptr() **byte {
	if a == nil || len(a.ptrs) <= 1 {
		return nil
	}
	return &a.ptrs[0]
}

func (a *cStringArray) Len() int32 {
	if a == nil {
		return 0
	}
	return int32(len(a.ptrs) - 1)
}

func (a *cStringArray) Unpin() {
	if a != nil {
		a.pinner.Unpin()
	}
}

func cBool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
