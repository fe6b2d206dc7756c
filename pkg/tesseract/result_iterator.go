package tesseract

import (
	"fmt"
	"image"
	"runtime"
)

// ResultIterator walks the recognition results of a page. It has all methods of a
// [PageIterator] and additionally gives access to text, confidences and font information.
type ResultIterator struct {
	cursor
}

func newResultIterator(c *capi, eng *owner[engineState], op string, ptr uintptr) (*ResultIterator, error) {
	o, err := newResultHandle(c, eng, "TessResultIterator", op, ptr)
	if err != nil {
		return nil, err
	}
	return wrapResultIterator(c, o), nil
}

func newResultHandle(c *capi, eng *owner[engineState], name, op string, ptr uintptr) (*owner[cursorState], error) {
	o, err := newHandle(name, op, ptr, cursorState{engine: eng}, func(p uintptr, s *cursorState) {
		c.TessResultIteratorDelete(p)
		s.engine.close()
	})
	if err != nil {
		eng.close()
		return nil, err
	}
	return o, nil
}

func wrapResultIterator(c *capi, o *owner[cursorState]) *ResultIterator {
	it := &ResultIterator{cursor{o: o, c: c, result: true}}
	runtime.AddCleanup(it, func(o *owner[cursorState]) { o.close() }, o)
	return it
}

// Clone returns another owner of the same iterator. Moving one moves all of them.
func (it *ResultIterator) Clone() *ResultIterator {
	return wrapResultIterator(it.c, it.o.clone())
}

// Copy returns an independent iterator at the same position.
func (it *ResultIterator) Copy() (*ResultIterator, error) {
	const op = "TessResultIteratorCopy"
	var eng *owner[engineState]
	var ptr uintptr
	err := it.o.do(op, func(p uintptr, s *cursorState) error {
		if s.exhausted {
			return newError(ErrNullPointer, op, errExhausted)
		}
		if ptr = it.c.TessResultIteratorCopy(p); ptr == 0 {
			return newError(ErrNullPointer, op, nil)
		}
		eng = s.engine.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newResultIterator(it.c, eng, op, ptr)
}

// PageIterator returns an independent page iterator at the current position.
func (it *ResultIterator) PageIterator() (*PageIterator, error) {
	return copyPageIterator(&it.cursor)
}

// Text returns the recognized text of the current element at level.
func (it *ResultIterator) Text(level Level) (string, error) {
	const op = "TessResultIteratorGetUTF8Text"
	return atValue(&it.cursor, op, func(ptr uintptr) (string, error) {
		return copyText(op, it.c.TessResultIteratorGetUTF8Text(ptr, int32(level)), it.c.TessDeleteText)
	})
}

// Confidence returns the mean confidence of the current element at level in the range 0..100.
func (it *ResultIterator) Confidence(level Level) (float32, error) {
	const op = "TessResultIteratorConfidence"
	return atValue(&it.cursor, op, func(ptr uintptr) (float32, error) {
		return it.c.TessResultIteratorConfidence(ptr, int32(level)), nil
	})
}

// WordRecognitionLanguage returns the language used to recognize the current word.
func (it *ResultIterator) WordRecognitionLanguage() (string, error) {
	const op = "TessResultIteratorWordRecognitionLanguage"
	return atValue(&it.cursor, op, func(ptr uintptr) (string, error) {
		return borrowString(op, it.c.TessResultIteratorWordRecognitionLanguage(ptr))
	})
}

// FontAttributes describes the font of a word. The LSTM engine does not report fonts.
type FontAttributes struct {
	Name       string
	Bold       bool
	Italic     bool
	Underlined bool
	Monospace  bool
	Serif      bool
	SmallCaps  bool
	PointSize  int
	FontID     int
}

func (it *ResultIterator) WordFontAttributes() (FontAttributes, error) {
	const op = "TessResultIteratorWordFontAttributes"
	return atValue(&it.cursor, op, func(ptr uintptr) (FontAttributes, error) {
		var bold, italic, underlined, mono, serif, smallcaps, size, id int32
		name := it.c.TessResultIteratorWordFontAttributes(ptr, &bold, &italic, &underlined, &mono, &serif, &smallcaps, &size, &id)
		if name == nil {
			return FontAttributes{}, newError(ErrNullPointer, op, fmt.Errorf("no font information"))
		}
		n, err := borrowString(op, name)
		if err != nil {
			return FontAttributes{}, err
		}
		return FontAttributes{
			Name:       n,
			Bold:       bold != 0,
			Italic:     italic != 0,
			Underlined: underlined != 0,
			Monospace:  mono != 0,
			Serif:      serif != 0,
			SmallCaps:  smallcaps != 0,
			PointSize:  int(size),
			FontID:     int(id),
		}, nil
	})
}

func (it *ResultIterator) flag(op string, fn func(uintptr) int32) (bool, error) {
	return atValue(&it.cursor, op, func(ptr uintptr) (bool, error) {
		return fn(ptr) != 0, nil
	})
}

func (it *ResultIterator) WordIsFromDictionary() (bool, error) {
	return it.flag("TessResultIteratorWordIsFromDictionary", it.c.TessResultIteratorWordIsFromDictionary)
}

func (it *ResultIterator) WordIsNumeric() (bool, error) {
	return it.flag("TessResultIteratorWordIsNumeric", it.c.TessResultIteratorWordIsNumeric)
}

func (it *ResultIterator) SymbolIsSuperscript() (bool, error) {
	return it.flag("TessResultIteratorSymbolIsSuperscript", it.c.TessResultIteratorSymbolIsSuperscript)
}

func (it *ResultIterator) SymbolIsSubscript() (bool, error) {
	return it.flag("TessResultIteratorSymbolIsSubscript", it.c.TessResultIteratorSymbolIsSubscript)
}

func (it *ResultIterator) SymbolIsDropcap() (bool, error) {
	return it.flag("TessResultIteratorSymbolIsDropcap", it.c.TessResultIteratorSymbolIsDropcap)
}

// ChoiceIterator returns an iterator over the alternative readings of the current symbol.
func (it *ResultIterator) ChoiceIterator() (*ChoiceIterator, error) {
	const op = "TessResultIteratorGetChoiceIterator"
	var ptr uintptr
	err := it.at(op, func(p uintptr) error {
		if ptr = it.c.TessResultIteratorGetChoiceIterator(p); ptr == 0 {
			return newError(ErrNullPointer, op, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newChoiceIterator(it.c, it.o.clone(), op, ptr)
}

// Word is a recognized element and its position.
type Word struct {
	Text       string
	Confidence float32
	Box        image.Rectangle
}

// Words collects the elements at level from the current position to the end of the page
// while holding the lock once. The iterator is exhausted afterwards. Elements without text are skipped.
func (it *ResultIterator) Words(level Level) ([]Word, error) {
	const op = "Words"
	if !level.valid() {
		return nil, newError(ErrInvalidParameter, op, fmt.Errorf("level %d", level))
	}
	var words []Word
	err := it.o.do(op, func(ptr uintptr, s *cursorState) error {
		for !s.exhausted {
			if p := it.c.TessResultIteratorGetUTF8Text(ptr, int32(level)); p != nil {
				text, err := copyText("TessResultIteratorGetUTF8Text", p, it.c.TessDeleteText)
				if err != nil {
					return err
				}
				w := Word{Text: text, Confidence: it.c.TessResultIteratorConfidence(ptr, int32(level))}
				var l, t, r, b int32
				if it.c.TessPageIteratorBoundingBox(it.pageView(ptr), int32(level), &l, &t, &r, &b) != 0 {
					w.Box = image.Rect(int(l), int(t), int(r), int(b))
				}
				words = append(words, w)
			}
			s.exhausted = it.c.TessResultIteratorNext(ptr, int32(level)) == 0
		}
		return nil
	})
	return words, err
}
