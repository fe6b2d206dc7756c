package tesseract

import (
	"runtime"
)

// MutableIterator is a [ResultIterator] that can rewrite the recognized text.
type MutableIterator struct {
	ResultIterator
}

func newMutableIterator(c *capi, eng *owner[engineState], op string, ptr uintptr) (*MutableIterator, error) {
	o, err := newResultHandle(c, eng, "TessMutableIterator", op, ptr)
	if err != nil {
		return nil, err
	}
	return wrapMutableIterator(c, o), nil
}

func wrapMutableIterator(c *capi, o *owner[cursorState]) *MutableIterator {
	it := &MutableIterator{ResultIterator{cursor{o: o, c: c, result: true}}}
	runtime.AddCleanup(it, func(o *owner[cursorState]) { o.close() }, o)
	return it
}

func (it *MutableIterator) Clone() *MutableIterator {
	return wrapMutableIterator(it.c, it.o.clone())
}

// SetValue replaces the text of the current element at level.
// It reports whether the library accepted the new value.
func (it *MutableIterator) SetValue(level Level, text string) (bool, error) {
	const op = "TessMutableIteratorSetValue"
	if it.c.TessMutableIteratorSetValue == nil {
		return false, newError(ErrLibrary, op, nil)
	}
	t, err := cString(op, text)
	if err != nil {
		return false, err
	}
	return atValue(&it.cursor, op, func(ptr uintptr) (bool, error) {
		return it.c.TessMutableIteratorSetValue(ptr, int32(level), t) != 0, nil
	})
}
