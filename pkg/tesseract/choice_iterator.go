package tesseract

import (
	"runtime"
)

type choiceState struct {
	exhausted bool
	// the result iterator the choices were taken from
	parent *owner[cursorState]
}

// ChoiceIterator walks the alternative readings of one symbol, best first.
type ChoiceIterator struct {
	o *owner[choiceState]
	c *capi
}

func newChoiceIterator(c *capi, parent *owner[cursorState], op string, ptr uintptr) (*ChoiceIterator, error) {
	o, err := newHandle("TessChoiceIterator", op, ptr, choiceState{parent: parent}, func(p uintptr, s *choiceState) {
		c.TessChoiceIteratorDelete(p)
		s.parent.close()
	})
	if err != nil {
		parent.close()
		return nil, err
	}
	return wrapChoiceIterator(c, o), nil
}

func wrapChoiceIterator(c *capi, o *owner[choiceState]) *ChoiceIterator {
	it := &ChoiceIterator{o: o, c: c}
	runtime.AddCleanup(it, func(o *owner[choiceState]) { o.close() }, o)
	return it
}

func (it *ChoiceIterator) Clone() *ChoiceIterator {
	return wrapChoiceIterator(it.c, it.o.clone())
}

func (it *ChoiceIterator) Close() error {
	it.o.close()
	return nil
}

// Next moves to the next alternative. Once it returned false, it keeps returning false.
func (it *ChoiceIterator) Next() bool {
	ok, _ := with(it.o, "TessChoiceIteratorNext", func(ptr uintptr, s *choiceState) (bool, error) {
		if s.exhausted {
			return false, nil
		}
		ok := it.c.TessChoiceIteratorNext(ptr) != 0
		s.exhausted = !ok
		return ok, nil
	})
	return ok
}

func (it *ChoiceIterator) Text() (string, error) {
	const op = "TessChoiceIteratorGetUTF8Text"
	return with(it.o, op, func(ptr uintptr, s *choiceState) (string, error) {
		if s.exhausted {
			return "", newError(ErrNullPointer, op, errExhausted)
		}
		// owned by the iterator
		return borrowString(op, it.c.TessChoiceIteratorGetUTF8Text(ptr))
	})
}

// Confidence returns the confidence of the current alternative in the range 0..100.
func (it *ChoiceIterator) Confidence() (float32, error) {
	const op = "TessChoiceIteratorConfidence"
	return with(it.o, op, func(ptr uintptr, s *choiceState) (float32, error) {
		if s.exhausted {
			return 0, newError(ErrNullPointer, op, errExhausted)
		}
		return it.c.TessChoiceIteratorConfidence(ptr), nil
	})
}
