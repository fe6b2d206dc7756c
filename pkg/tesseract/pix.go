package tesseract

import (
	"errors"
	"fmt"
	"image"
	"unsafe"
)

var errNoLeptonica = errors.New("leptonica functions not found")

func (c *capi) hasPixAccessors() bool {
	return c.pixDestroy != nil && c.pixGetWidth != nil && c.pixGetHeight != nil &&
		c.pixGetDepth != nil && c.pixGetWpl != nil && c.pixGetData != nil
}

// copyPix copies a leptonica image into Go memory. 1 and 8 bpp images become
// *image.Gray, 32 bpp images *image.RGBA. The Pix is left untouched.
// Leptonica packs pixels MSB first into 32 bit words; a set bit in a 1 bpp image is black.
func (c *capi) copyPix(op string, pix uintptr) (image.Image, error) {
	w, h := int(c.pixGetWidth(pix)), int(c.pixGetHeight(pix))
	depth, wpl := int(c.pixGetDepth(pix)), int(c.pixGetWpl(pix))
	if w <= 0 || h <= 0 {
		return nil, newError(ErrInvalidDimensions, op, fmt.Errorf("%dx%d", w, h))
	}
	if wpl*32 < w*depth {
		return nil, newError(ErrInvalidBytesPerLine, op, fmt.Errorf("%d words per line for %d pixels of %d bits", wpl, w, depth))
	}
	data := c.pixGetData(pix)
	if data == nil {
		return nil, newError(ErrNullPointer, op, errors.New("no pixel data"))
	}
	words := unsafe.Slice(data, wpl*h)
	r := image.Rect(0, 0, w, h)
	switch depth {
	case 1:
		g := image.NewGray(r)
		for y := range h {
			src, dst := words[y*wpl:(y+1)*wpl], g.Pix[y*g.Stride:]
			for x := range w {
				if src[x/32]>>(31-x%32)&1 == 0 {
					dst[x] = 0xff
				}
			}
		}
		return g, nil
	case 8:
		g := image.NewGray(r)
		for y := range h {
			src, dst := words[y*wpl:(y+1)*wpl], g.Pix[y*g.Stride:]
			for x := range w {
				dst[x] = byte(src[x/4] >> (24 - 8*(x%4)))
			}
		}
		return g, nil
	case 32:
		img := image.NewRGBA(r)
		for y := range h {
			src, dst := words[y*wpl:(y+1)*wpl], img.Pix[y*img.Stride:]
			for x := range w {
				px := src[x]
				// the alpha byte of RGB images is not maintained
				dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = byte(px>>24), byte(px>>16), byte(px>>8), 0xff
			}
		}
		return img, nil
	default:
		return nil, newError(ErrInvalidBytesPerPixel, op, fmt.Errorf("%d bits per pixel", depth))
	}
}

// ThresholdedImage returns a copy of the binarized image recognition works on:
// black pixels are 0, white ones 255. An image must have been set.
func (e *Engine) ThresholdedImage() (*image.Gray, error) {
	const op = "TessBaseAPIGetThresholdedImage"
	if e.c.TessBaseAPIGetThresholdedImage == nil || !e.c.hasPixAccessors() {
		return nil, newError(ErrLibrary, op, errNoLeptonica)
	}
	var img image.Image
	err := e.doInit(op, func(h uintptr) error {
		pix := e.c.TessBaseAPIGetThresholdedImage(h)
		if pix == 0 {
			return newError(ErrNullPointer, op, errors.New("no image set"))
		}
		defer e.c.pixDestroy(&pix)
		var err error
		img, err = e.c.copyPix(op, pix)
		return err
	})
	if err != nil {
		return nil, err
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, newError(ErrInvalidBytesPerPixel, op, fmt.Errorf("thresholded image is %T", img))
	}
	return g, nil
}

// InputImage returns a copy of the image set with SetInputImage, or of the one
// set with SetImage when the engine keeps it as its original.
func (e *Engine) InputImage() (image.Image, error) {
	const op = "TessBaseAPIGetInputImage"
	if e.c.TessBaseAPIGetInputImage == nil || !e.c.hasPixAccessors() {
		return nil, newError(ErrLibrary, op, errNoLeptonica)
	}
	var img image.Image
	err := e.doInit(op, func(h uintptr) error {
		// borrowed, the engine keeps it
		pix := e.c.TessBaseAPIGetInputImage(h)
		if pix == 0 {
			return newError(ErrNullPointer, op, errors.New("no input image"))
		}
		var err error
		img, err = e.c.copyPix(op, pix)
		return err
	})
	return img, err
}

// SetInputImage decodes an encoded image with leptonica and makes it the original
// image of the engine, e.g. for renderers that embed the page image.
// It does not replace the image set with SetImage for recognition.
func (e *Engine) SetInputImage(encoded []byte) error {
	const op = "TessBaseAPISetInputImage"
	if e.c.TessBaseAPISetInputImage == nil || e.c.pixReadMem == nil {
		return newError(ErrLibrary, op, errNoLeptonica)
	}
	if len(encoded) == 0 {
		return newError(ErrInvalidImageData, op, errors.New("no data"))
	}
	return e.doInit(op, func(h uintptr) error {
		pix := e.c.pixReadMem(&encoded[0], uintptr(len(encoded)))
		if pix == 0 {
			return newError(ErrSetImage, op, fmt.Errorf("leptonica could not decode %d bytes", len(encoded)))
		}
		// the engine takes ownership
		e.c.TessBaseAPISetInputImage(h, pix)
		return nil
	})
}
