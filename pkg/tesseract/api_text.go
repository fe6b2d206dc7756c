package tesseract

import (
	"context"
	"fmt"
	"time"
)

// Recognize runs layout analysis and recognition on the image set before.
func (e *Engine) Recognize() error {
	const op = "TessBaseAPIRecognize"
	return e.doInit(op, func(h uintptr) error {
		if rc := e.c.TessBaseAPIRecognize(h, 0); rc != 0 {
			return newError(ErrOcr, op, fmt.Errorf("return code %d", rc))
		}
		return nil
	})
}

// RecognizeWithMonitor is like Recognize, but reports progress to m and honours its deadline.
// The monitor stays usable while recognizing, so Progress can be polled from another goroutine.
func (e *Engine) RecognizeWithMonitor(m *Monitor) error {
	const op = "TessBaseAPIRecognize"
	if m == nil {
		return e.Recognize()
	}
	if m.o.closed.Load() {
		return newError(ErrNullPointer, op, nil)
	}
	// the extra owner keeps the native monitor alive without holding its lock
	mo := m.o.clone()
	defer mo.close()
	mp, err := with(mo, op, func(p uintptr, _ *struct{}) (uintptr, error) { return p, nil })
	if err != nil {
		return err
	}
	return e.doInit(op, func(h uintptr) error {
		if rc := e.c.TessBaseAPIRecognize(h, mp); rc != 0 {
			return newError(ErrOcr, op, fmt.Errorf("return code %d", rc))
		}
		return nil
	})
}

// RecognizeContext is like RecognizeWithMonitor. The deadline of ctx (if any) is set as the
// monitor's deadline. If m is nil, a temporary monitor is used.
// Cancelling ctx without a deadline does not stop a running recognition.
func (e *Engine) RecognizeContext(ctx context.Context, m *Monitor) error {
	const op = "TessBaseAPIRecognize"
	if err := ctx.Err(); err != nil {
		return newError(ErrOcr, op, err)
	}
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline && m == nil {
		return e.Recognize()
	}
	if m == nil {
		var err error
		if m, err = newMonitor(e.c); err != nil {
			return err
		}
		defer m.Close()
	}
	if hasDeadline {
		ms := time.Until(deadline).Milliseconds()
		if ms <= 0 {
			return newError(ErrOcr, op, context.DeadlineExceeded)
		}
		if err := m.SetDeadline(int(ms)); err != nil {
			return err
		}
	}
	err := e.RecognizeWithMonitor(m)
	if err != nil && ctx.Err() != nil {
		return newError(ErrOcr, op, ctx.Err())
	}
	return err
}

// ProcessPages recognizes all pages of an image file (or a text file listing images)
// and writes the results with r. r may be nil. A timeout of 0 means no timeout.
// The renderer is locked before the engine.
func (e *Engine) ProcessPages(filename, retryConfig string, timeoutMillis int, r *Renderer) error {
	const op = "TessBaseAPIProcessPages"
	fn, err := cString(op, filename)
	if err != nil {
		return err
	}
	rc, err := nullableCString(op, retryConfig)
	if err != nil {
		return err
	}
	process := func(rp uintptr) error {
		return e.doInit(op, func(h uintptr) error {
			if e.c.TessBaseAPIProcessPages(h, fn, rc, int32(timeoutMillis), rp) == 0 {
				return newError(ErrProcessPages, op, fmt.Errorf("processing %s failed", filename))
			}
			return nil
		})
	}
	if r == nil {
		return process(0)
	}
	return r.do(op, func(p uintptr, _ *rendererState) error {
		return process(p)
	})
}

func (e *Engine) text(op string, get func(h uintptr) *byte) (string, error) {
	var s string
	err := e.doInit(op, func(h uintptr) error {
		var err error
		s, err = copyText(op, get(h), e.c.TessDeleteText)
		return err
	})
	return s, err
}

func (e *Engine) pageText(op string, page int, get func(h uintptr, page int32) *byte) (string, error) {
	if page < 0 {
		return "", newError(ErrInvalidParameter, op, fmt.Errorf("page %d", page))
	}
	return e.text(op, func(h uintptr) *byte { return get(h, int32(page)) })
}

// UTF8Text recognizes the image if necessary and returns the text.
func (e *Engine) UTF8Text() (string, error) {
	return e.text("TessBaseAPIGetUTF8Text", func(h uintptr) *byte { return e.c.TessBaseAPIGetUTF8Text(h) })
}

// HOCRText returns the results as hOCR. page is zero-based.
func (e *Engine) HOCRText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetHOCRText", page, e.c.TessBaseAPIGetHOCRText)
}

func (e *Engine) AltoText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetAltoText", page, e.c.TessBaseAPIGetAltoText)
}

func (e *Engine) TSVText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetTsvText", page, e.c.TessBaseAPIGetTsvText)
}

// BoxText returns the results in the box file format used for training.
func (e *Engine) BoxText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetBoxText", page, e.c.TessBaseAPIGetBoxText)
}

func (e *Engine) LSTMBoxText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetLSTMBoxText", page, e.c.TessBaseAPIGetLSTMBoxText)
}

func (e *Engine) WordStrBoxText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetWordStrBoxText", page, e.c.TessBaseAPIGetWordStrBoxText)
}

// OSDText returns orientation and script detection results. It needs osd.traineddata.
func (e *Engine) OSDText(page int) (string, error) {
	return e.pageText("TessBaseAPIGetOsdText", page, e.c.TessBaseAPIGetOsdText)
}

func (e *Engine) UNLVText() (string, error) {
	return e.text("TessBaseAPIGetUNLVText", func(h uintptr) *byte { return e.c.TessBaseAPIGetUNLVText(h) })
}

// MeanTextConf returns the mean confidence of all words in the range 0..100.
func (e *Engine) MeanTextConf() (int, error) {
	var c int
	err := e.doInit("TessBaseAPIMeanTextConf", func(h uintptr) error {
		c = int(e.c.TessBaseAPIMeanTextConf(h))
		return nil
	})
	return c, err
}

// AllWordConfidences returns the confidence of every word in the range 0..100.
func (e *Engine) AllWordConfidences() ([]int, error) {
	const op = "TessBaseAPIAllWordConfidences"
	var confs []int
	err := e.doInit(op, func(h uintptr) error {
		var err error
		confs, err = copyIntArray(op, e.c.TessBaseAPIAllWordConfidences(h), e.c.TessDeleteIntArray)
		return err
	})
	return confs, err
}

// WordConfidences is an alias of AllWordConfidences.
func (e *Engine) WordConfidences() ([]int, error) {
	return e.AllWordConfidences()
}

// OrientationScript is the result of orientation and script detection.
type OrientationScript struct {
	// Degrees the page has to be rotated clockwise to be upright
	Degrees               int
	OrientationConfidence float32
	Script                string
	ScriptConfidence      float32
}

// DetectOrientationScript needs osd.traineddata to be loaded.
func (e *Engine) DetectOrientationScript() (OrientationScript, error) {
	const op = "TessBaseAPIDetectOrientationScript"
	var res OrientationScript
	err := e.doInit(op, func(h uintptr) error {
		var deg int32
		var script *byte
		if e.c.TessBaseAPIDetectOrientationScript(h, &deg, &res.OrientationConfidence, &script, &res.ScriptConfidence) == 0 {
			return newError(ErrOcr, op, fmt.Errorf("orientation and script detection failed"))
		}
		res.Degrees = int(deg)
		// a static string of the library
		name, err := borrowString(op, script)
		res.Script = name
		return err
	})
	return res, err
}

// TextDirection returns the offset and slope of the text lines.
func (e *Engine) TextDirection() (offset int, slope float32, err error) {
	const op = "TessBaseAPIGetTextDirection"
	err = e.doInit(op, func(h uintptr) error {
		var off int32
		if e.c.TessBaseAPIGetTextDirection(h, &off, &slope) == 0 {
			return newError(ErrOcr, op, fmt.Errorf("no text direction available"))
		}
		offset = int(off)
		return nil
	})
	return offset, slope, err
}

// IsValidWord reports whether word is in the dictionary of the loaded language(s).
func (e *Engine) IsValidWord(word string) (bool, error) {
	const op = "TessBaseAPIIsValidWord"
	w, err := cString(op, word)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.doInit(op, func(h uintptr) error {
		ok = e.c.TessBaseAPIIsValidWord(h, w) != 0
		return nil
	})
	return ok, err
}

// AdaptToWordStr trains the adaptive classifier on the current image using wordstr as the truth.
func (e *Engine) AdaptToWordStr(mode PageSegMode, wordstr string) (bool, error) {
	const op = "TessBaseAPIAdaptToWordStr"
	w, err := cString(op, wordstr)
	if err != nil {
		return false, err
	}
	var ok bool
	err = e.doInit(op, func(h uintptr) error {
		ok = e.c.TessBaseAPIAdaptToWordStr(h, int32(mode), w) != 0
		return nil
	})
	return ok, err
}

// Unichar returns the text of the character set entry id.
func (e *Engine) Unichar(id int) (string, error) {
	const op = "TessBaseAPIGetUnichar"
	var s string
	err := e.doInit(op, func(h uintptr) error {
		var err error
		s, err = borrowString(op, e.c.TessBaseAPIGetUnichar(h, int32(id)))
		return err
	})
	return s, err
}

// Iterator returns an iterator over the results of the last recognition.
// Recognize must have been called.
func (e *Engine) Iterator() (*ResultIterator, error) {
	const op = "TessBaseAPIGetIterator"
	ptr, eng, err := e.iteratorPtr(op, e.c.TessBaseAPIGetIterator, ErrNullPointer)
	if err != nil {
		return nil, err
	}
	return newResultIterator(e.c, eng, op, ptr)
}

// MutableIterator is like Iterator, but the returned iterator can change the results.
func (e *Engine) MutableIterator() (*MutableIterator, error) {
	const op = "TessBaseAPIGetMutableIterator"
	ptr, eng, err := e.iteratorPtr(op, e.c.TessBaseAPIGetMutableIterator, ErrNullPointer)
	if err != nil {
		return nil, err
	}
	return newMutableIterator(e.c, eng, op, ptr)
}

// AnalyseLayout runs layout analysis only and returns an iterator over the found blocks.
func (e *Engine) AnalyseLayout() (*PageIterator, error) {
	const op = "TessBaseAPIAnalyseLayout"
	ptr, eng, err := e.iteratorPtr(op, e.c.TessBaseAPIAnalyseLayout, ErrAnalyseLayout)
	if err != nil {
		return nil, err
	}
	return newPageIterator(e.c, eng, op, ptr)
}

// Iterators recognizes the image and returns a page iterator and a result iterator,
// both at the beginning of the results.
func (e *Engine) Iterators() (*PageIterator, *ResultIterator, error) {
	if err := e.Recognize(); err != nil {
		return nil, nil, err
	}
	ri, err := e.Iterator()
	if err != nil {
		return nil, nil, err
	}
	pi, err := ri.PageIterator()
	if err != nil {
		ri.Close()
		return nil, nil, err
	}
	return pi, ri, nil
}

// iteratorPtr gets a new native iterator and another owner of the engine for it to hold.
func (e *Engine) iteratorPtr(op string, get func(uintptr) uintptr, nullKind Kind) (uintptr, *owner[engineState], error) {
	var ptr uintptr
	var eng *owner[engineState]
	err := e.doInit(op, func(h uintptr) error {
		if ptr = get(h); ptr == 0 {
			return newError(nullKind, op, nil)
		}
		eng = e.o.clone()
		return nil
	})
	return ptr, eng, err
}
