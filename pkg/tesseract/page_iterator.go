package tesseract

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync/atomic"
)

var errExhausted = errors.New("iterator is exhausted")

type cursorState struct {
	exhausted bool
	// keeps the engine alive as long as the iterator exists
	engine *owner[engineState]
}

// cursor implements the operations shared by page, result and mutable iterators.
// A cursor is positioned until Next returns false; it is exhausted afterwards until Begin is called.
type cursor struct {
	o *owner[cursorState]
	c *capi
	// the native object is a TessResultIterator (or a mutable one)
	result bool
	err    atomic.Pointer[Error]
}

// pageView returns the TessPageIterator view of the native cursor. For result iterators
// this is a cast inside the library, not a new object.
func (it *cursor) pageView(ptr uintptr) uintptr {
	if it.result {
		return it.c.TessResultIteratorGetPageIterator(ptr)
	}
	return ptr
}

// at runs fn if the cursor is positioned. It fails with ErrNullPointer when exhausted.
func (it *cursor) at(op string, fn func(ptr uintptr) error) error {
	return it.o.do(op, func(ptr uintptr, s *cursorState) error {
		if s.exhausted {
			return newError(ErrNullPointer, op, errExhausted)
		}
		return fn(ptr)
	})
}

func atValue[T any](it *cursor, op string, fn func(ptr uintptr) (T, error)) (T, error) {
	var out T
	err := it.at(op, func(ptr uintptr) error {
		var err error
		out, err = fn(ptr)
		return err
	})
	return out, err
}

// Begin moves the iterator back to the first element of the page.
func (it *cursor) Begin() error {
	const op = "TessPageIteratorBegin"
	it.err.Store(nil)
	return it.o.do(op, func(ptr uintptr, s *cursorState) error {
		it.c.TessPageIteratorBegin(it.pageView(ptr))
		s.exhausted = false
		return nil
	})
}

// Next moves to the start of the next element at level. It returns false if there is none,
// or if an error occurred, which is reported by Err. Once Next returned false,
// it keeps returning false until Begin is called.
func (it *cursor) Next(level Level) bool {
	op := "TessPageIteratorNext"
	if it.result {
		op = "TessResultIteratorNext"
	}
	var ok bool
	err := it.o.do(op, func(ptr uintptr, s *cursorState) error {
		if s.exhausted {
			return nil
		}
		if !level.valid() {
			return newError(ErrInvalidParameter, op, fmt.Errorf("level %d", level))
		}
		if it.result {
			ok = it.c.TessResultIteratorNext(ptr, int32(level)) != 0
		} else {
			ok = it.c.TessPageIteratorNext(ptr, int32(level)) != 0
		}
		s.exhausted = !ok
		return nil
	})
	if err != nil {
		it.err.Store(err.(*Error))
		return false
	}
	return ok
}

// Err returns the error that made Next return false, if any.
func (it *cursor) Err() error {
	if e := it.err.Load(); e != nil {
		return e
	}
	return nil
}

// Exhausted reports whether Next has returned false since the iterator was created or reset.
func (it *cursor) Exhausted() bool {
	ex, err := with(it.o, "Exhausted", func(_ uintptr, s *cursorState) (bool, error) {
		return s.exhausted, nil
	})
	return ex || err != nil
}

func (it *cursor) IsAtBeginningOf(level Level) (bool, error) {
	const op = "TessPageIteratorIsAtBeginningOf"
	return atValue(it, op, func(ptr uintptr) (bool, error) {
		return it.c.TessPageIteratorIsAtBeginningOf(it.pageView(ptr), int32(level)) != 0, nil
	})
}

// IsAtFinalElement reports whether the iterator is at the last element at level
// of the enclosing element at element level, e.g. the last word of a text line.
func (it *cursor) IsAtFinalElement(level, element Level) (bool, error) {
	const op = "TessPageIteratorIsAtFinalElement"
	return atValue(it, op, func(ptr uintptr) (bool, error) {
		return it.c.TessPageIteratorIsAtFinalElement(it.pageView(ptr), int32(level), int32(element)) != 0, nil
	})
}

// BoundingBox returns the bounding box of the current element at level in image coordinates.
func (it *cursor) BoundingBox(level Level) (image.Rectangle, error) {
	const op = "TessPageIteratorBoundingBox"
	return atValue(it, op, func(ptr uintptr) (image.Rectangle, error) {
		var l, t, r, b int32
		if it.c.TessPageIteratorBoundingBox(it.pageView(ptr), int32(level), &l, &t, &r, &b) == 0 {
			return image.Rectangle{}, newError(ErrNullPointer, op, fmt.Errorf("no %s at current position", level))
		}
		return image.Rect(int(l), int(t), int(r), int(b)), nil
	})
}

func (it *cursor) BlockType() (PolyBlockType, error) {
	const op = "TessPageIteratorBlockType"
	return atValue(it, op, func(ptr uintptr) (PolyBlockType, error) {
		return PolyBlockType(it.c.TessPageIteratorBlockType(it.pageView(ptr))), nil
	})
}

// Baseline returns the end points of the baseline of the current element at level.
func (it *cursor) Baseline(level Level) (from, to image.Point, err error) {
	const op = "TessPageIteratorBaseline"
	err = it.at(op, func(ptr uintptr) error {
		var x1, y1, x2, y2 int32
		if it.c.TessPageIteratorBaseline(it.pageView(ptr), int32(level), &x1, &y1, &x2, &y2) == 0 {
			return newError(ErrNullPointer, op, fmt.Errorf("no baseline for %s", level))
		}
		from, to = image.Pt(int(x1), int(y1)), image.Pt(int(x2), int(y2))
		return nil
	})
	return from, to, err
}

// OrientationInfo describes the orientation of the current block.
type OrientationInfo struct {
	Orientation      Orientation
	WritingDirection WritingDirection
	TextlineOrder    TextlineOrder
	// DeskewAngle is in radians
	DeskewAngle float32
}

func (it *cursor) Orientation() (OrientationInfo, error) {
	const op = "TessPageIteratorOrientation"
	return atValue(it, op, func(ptr uintptr) (OrientationInfo, error) {
		var o, wd, tlo int32
		var angle float32
		it.c.TessPageIteratorOrientation(it.pageView(ptr), &o, &wd, &tlo, &angle)
		return OrientationInfo{
			Orientation:      Orientation(o),
			WritingDirection: WritingDirection(wd),
			TextlineOrder:    TextlineOrder(tlo),
			DeskewAngle:      angle,
		}, nil
	})
}

type ParagraphInfo struct {
	Justification   ParagraphJustification
	IsListItem      bool
	IsCrown         bool
	FirstLineIndent int
}

func (it *cursor) ParagraphInfo() (ParagraphInfo, error) {
	const op = "TessPageIteratorParagraphInfo"
	return atValue(it, op, func(ptr uintptr) (ParagraphInfo, error) {
		var just, list, crown, indent int32
		it.c.TessPageIteratorParagraphInfo(it.pageView(ptr), &just, &list, &crown, &indent)
		return ParagraphInfo{
			Justification:   ParagraphJustification(just),
			IsListItem:      list != 0,
			IsCrown:         crown != 0,
			FirstLineIndent: int(indent),
		}, nil
	})
}

// Close releases this owner of the iterator.
func (it *cursor) Close() error {
	it.o.close()
	return nil
}

// PageIterator walks the layout of a page. It is obtained from [Engine.AnalyseLayout]
// or [ResultIterator.PageIterator].
type PageIterator struct {
	cursor
}

func newPageIterator(c *capi, eng *owner[engineState], op string, ptr uintptr) (*PageIterator, error) {
	o, err := newHandle("TessPageIterator", op, ptr, cursorState{engine: eng}, func(p uintptr, s *cursorState) {
		c.TessPageIteratorDelete(p)
		s.engine.close()
	})
	if err != nil {
		eng.close()
		return nil, err
	}
	return wrapPageIterator(c, o), nil
}

func wrapPageIterator(c *capi, o *owner[cursorState]) *PageIterator {
	it := &PageIterator{cursor{o: o, c: c}}
	runtime.AddCleanup(it, func(o *owner[cursorState]) { o.close() }, o)
	return it
}

// Clone returns another owner of the same iterator. Moving one moves all of them.
func (it *PageIterator) Clone() *PageIterator {
	return wrapPageIterator(it.c, it.o.clone())
}

// Copy returns an independent iterator at the same position.
func (it *PageIterator) Copy() (*PageIterator, error) {
	return copyPageIterator(&it.cursor)
}

func copyPageIterator(it *cursor) (*PageIterator, error) {
	const op = "TessPageIteratorCopy"
	var eng *owner[engineState]
	var ptr uintptr
	err := it.o.do(op, func(p uintptr, s *cursorState) error {
		if s.exhausted {
			return newError(ErrNullPointer, op, errExhausted)
		}
		if ptr = it.c.TessPageIteratorCopy(it.pageView(p)); ptr == 0 {
			return newError(ErrNullPointer, op, nil)
		}
		eng = s.engine.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newPageIterator(it.c, eng, op, ptr)
}
