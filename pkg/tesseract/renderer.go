package tesseract

import (
	"errors"
	"runtime"
)

type rendererPhase int

const (
	rendererCreated rendererPhase = iota
	rendererOpen
	rendererClosed
)

type rendererState struct {
	phase rendererPhase
	// set when the renderer was inserted into another one, which deletes it
	adopted bool
}

var errAdopted = errors.New("renderer is owned by the renderer it was inserted into")

// Renderer writes recognition results of one or more images to files.
// Its life cycle is BeginDocument, AddImage (any number of times) and EndDocument.
// Calls out of this order return false without reaching the library.
type Renderer struct {
	o *owner[rendererState]
	c *capi
}

func newRenderer(op string, create func(c *capi) (uintptr, error)) (*Renderer, error) {
	c, err := loadedAPI()
	if err != nil {
		return nil, err
	}
	return newRendererWith(c, op, create)
}

func newRendererWith(c *capi, op string, create func(c *capi) (uintptr, error)) (*Renderer, error) {
	ptr, err := create(c)
	if err != nil {
		return nil, err
	}
	o, err := newHandle("TessResultRenderer", op, ptr, rendererState{}, func(p uintptr, s *rendererState) {
		if !s.adopted {
			c.TessDeleteResultRenderer(p)
		}
	})
	if err != nil {
		return nil, err
	}
	r := &Renderer{o: o, c: c}
	runtime.AddCleanup(r, func(o *owner[rendererState]) { o.close() }, o)
	return r, nil
}

func simpleRenderer(op string, fn func(c *capi) func(*byte) uintptr, outputbase string) (*Renderer, error) {
	return newRenderer(op, func(c *capi) (uintptr, error) {
		ob, err := cString(op, outputbase)
		if err != nil {
			return 0, err
		}
		create := fn(c)
		if create == nil {
			return 0, newError(ErrLibrary, op, nil)
		}
		return create(ob), nil
	})
}

// NewTextRenderer writes plain text to outputbase.txt. An outputbase of "-" writes to stdout.
func NewTextRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessTextRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessTextRendererCreate }, outputbase)
}

// NewHOCRRenderer writes hOCR to outputbase.hocr, optionally including font information.
func NewHOCRRenderer(outputbase string, fontInfo bool) (*Renderer, error) {
	const op = "TessHOcrRendererCreate2"
	return newRenderer(op, func(c *capi) (uintptr, error) {
		ob, err := cString(op, outputbase)
		if err != nil {
			return 0, err
		}
		return c.TessHOcrRendererCreate2(ob, cBool(fontInfo)), nil
	})
}

// NewPDFRenderer writes a searchable PDF to outputbase.pdf. datadir must contain pdf.ttf.
// With textOnly the page images are left out.
func NewPDFRenderer(outputbase, datadir string, textOnly bool) (*Renderer, error) {
	const op = "TessPDFRendererCreate"
	return newRenderer(op, func(c *capi) (uintptr, error) {
		ob, err := cString(op, outputbase)
		if err != nil {
			return 0, err
		}
		dd, err := cString(op, datadir)
		if err != nil {
			return 0, err
		}
		return c.TessPDFRendererCreate(ob, dd, cBool(textOnly)), nil
	})
}

func NewAltoRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessAltoRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessAltoRendererCreate }, outputbase)
}

func NewTSVRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessTsvRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessTsvRendererCreate }, outputbase)
}

func NewUNLVRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessUnlvRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessUnlvRendererCreate }, outputbase)
}

func NewBoxTextRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessBoxTextRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessBoxTextRendererCreate }, outputbase)
}

func NewLSTMBoxRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessLSTMBoxRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessLSTMBoxRendererCreate }, outputbase)
}

func NewWordStrBoxRenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessWordStrBoxRendererCreate", func(c *capi) func(*byte) uintptr { return c.TessWordStrBoxRendererCreate }, outputbase)
}

// NewPAGERenderer writes PAGE XML. It needs tesseract 5.3 or later.
func NewPAGERenderer(outputbase string) (*Renderer, error) {
	return simpleRenderer("TessPAGERendererCreate", func(c *capi) func(*byte) uintptr { return c.TessPAGERendererCreate }, outputbase)
}

func (r *Renderer) Clone() *Renderer {
	nr := &Renderer{o: r.o.clone(), c: r.c}
	runtime.AddCleanup(nr, func(o *owner[rendererState]) { o.close() }, nr.o)
	return nr
}

func (r *Renderer) Close() error {
	r.o.close()
	return nil
}

// do runs fn unless the renderer has been inserted into another renderer.
func (r *Renderer) do(op string, fn func(p uintptr, s *rendererState) error) error {
	return r.o.do(op, func(p uintptr, s *rendererState) error {
		if s.adopted {
			return newError(ErrNullPointer, op, errAdopted)
		}
		return fn(p, s)
	})
}

// BeginDocument starts a new document. It returns false if the document was started
// before or the library failed to open the output.
func (r *Renderer) BeginDocument(title string) (bool, error) {
	const op = "TessResultRendererBeginDocument"
	t, err := cString(op, title)
	if err != nil {
		return false, err
	}
	var ok bool
	err = r.do(op, func(p uintptr, s *rendererState) error {
		if s.phase != rendererCreated {
			return nil
		}
		if ok = r.c.TessResultRendererBeginDocument(p, t) != 0; ok {
			s.phase = rendererOpen
		}
		return nil
	})
	return ok, err
}

// AddImage renders the current results of e. The renderer is locked before the engine.
func (r *Renderer) AddImage(e *Engine) (bool, error) {
	const op = "TessResultRendererAddImage"
	var ok bool
	err := r.do(op, func(p uintptr, s *rendererState) error {
		if s.phase != rendererOpen {
			return nil
		}
		return e.doInit(op, func(h uintptr) error {
			ok = r.c.TessResultRendererAddImage(p, h) != 0
			return nil
		})
	})
	return ok, err
}

// EndDocument finishes the document. It returns false if the document is not open.
func (r *Renderer) EndDocument() (bool, error) {
	const op = "TessResultRendererEndDocument"
	var ok bool
	err := r.do(op, func(p uintptr, s *rendererState) error {
		if s.phase != rendererOpen {
			return nil
		}
		ok = r.c.TessResultRendererEndDocument(p) != 0
		s.phase = rendererClosed
		return nil
	})
	return ok, err
}

// Extension returns the file extension of the output, e.g. "hocr".
func (r *Renderer) Extension() (string, error) {
	const op = "TessResultRendererExtention"
	var ext string
	err := r.do(op, func(p uintptr, _ *rendererState) error {
		var err error
		ext, err = borrowString(op, r.c.TessResultRendererExtention(p))
		return err
	})
	return ext, err
}

func (r *Renderer) Title() (string, error) {
	const op = "TessResultRendererTitle"
	var title string
	err := r.do(op, func(p uintptr, _ *rendererState) error {
		var err error
		title, err = borrowString(op, r.c.TessResultRendererTitle(p))
		return err
	})
	return title, err
}

// ImageNum returns the number of images added to the current document.
func (r *Renderer) ImageNum() (int, error) {
	const op = "TessResultRendererImageNum"
	var n int
	err := r.do(op, func(p uintptr, _ *rendererState) error {
		n = int(r.c.TessResultRendererImageNum(p))
		return nil
	})
	return n, err
}

// Insert appends next to the chain of renderers, so every document is written in several formats.
// Both renderers must not have begun a document yet. next belongs to r afterwards:
// it is deleted together with r and all further calls on next fail.
func (r *Renderer) Insert(next *Renderer) error {
	const op = "TessResultRendererInsert"
	if next == nil || next.o.h == r.o.h {
		return newError(ErrInvalidParameter, op, errors.New("cannot insert renderer into itself"))
	}
	return doBoth(r.o, next.o, op, func(p uintptr, s *rendererState, np uintptr, ns *rendererState) error {
		if s.adopted || ns.adopted {
			return newError(ErrNullPointer, op, errAdopted)
		}
		if s.phase != rendererCreated || ns.phase != rendererCreated {
			return newError(ErrInvalidParameter, op, errors.New("document already begun"))
		}
		r.c.TessResultRendererInsert(p, np)
		ns.adopted = true
		return nil
	})
}
