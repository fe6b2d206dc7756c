package tesseract

import (
	"fmt"
)

// ValidateImage checks the geometry of a raw pixel buffer as accepted by SetImage.
// bytesPerPixel is 0 for 1 bit per pixel (bitonal) images, 1 for grayscale, 3 for RGB and 4 for RGBA.
// Rows may be padded, but bytesPerLine must hold at least one row of pixels and
// data must hold height rows (the last one may be unpadded).
func ValidateImage(data []byte, width, height, bytesPerPixel, bytesPerLine int) error {
	const op = "SetImage"
	if width <= 0 || height <= 0 {
		return newError(ErrInvalidDimensions, op, fmt.Errorf("%dx%d", width, height))
	}
	var rowBytes int
	switch bytesPerPixel {
	case 0:
		rowBytes = (width + 7) / 8
	case 1, 3, 4:
		rowBytes = width * bytesPerPixel
	default:
		return newError(ErrInvalidBytesPerPixel, op, fmt.Errorf("%d", bytesPerPixel))
	}
	if bytesPerLine < rowBytes {
		return newError(ErrInvalidBytesPerLine, op, fmt.Errorf("%d bytes per line, need at least %d", bytesPerLine, rowBytes))
	}
	if need := bytesPerLine*(height-1) + rowBytes; len(data) < need {
		return newError(ErrInvalidImageData, op, fmt.Errorf("got %d bytes, need %d", len(data), need))
	}
	return nil
}

// SetImage hands a raw pixel buffer to the engine. The engine copies the pixels,
// so data may be reused once SetImage returns.
func (e *Engine) SetImage(data []byte, width, height, bytesPerPixel, bytesPerLine int) error {
	if err := ValidateImage(data, width, height, bytesPerPixel, bytesPerLine); err != nil {
		return err
	}
	return e.doInit("TessBaseAPISetImage", func(h uintptr) error {
		e.c.TessBaseAPISetImage(h, &data[0], int32(width), int32(height), int32(bytesPerPixel), int32(bytesPerLine))
		return nil
	})
}

// SetImageFromBytes decodes an encoded image (PNG, JPEG, TIFF, ...) with leptonica and sets it.
func (e *Engine) SetImageFromBytes(encoded []byte) error {
	const op = "pixReadMem"
	if e.c.pixReadMem == nil || e.c.pixDestroy == nil {
		return newError(ErrLibrary, op, fmt.Errorf("leptonica functions not found"))
	}
	if len(encoded) == 0 {
		return newError(ErrInvalidImageData, op, fmt.Errorf("no data"))
	}
	return e.doInit(op, func(h uintptr) error {
		pix := e.c.pixReadMem(&encoded[0], uintptr(len(encoded)))
		if pix == 0 {
			return newError(ErrSetImage, op, fmt.Errorf("leptonica could not decode %d bytes", len(encoded)))
		}
		// the engine keeps its own clone of the pix
		e.c.TessBaseAPISetImage2(h, pix)
		e.c.pixDestroy(&pix)
		return nil
	})
}

// SetSourceResolution sets the resolution of the image in pixels per inch.
// It should be called after SetImage.
func (e *Engine) SetSourceResolution(ppi int) error {
	const op = "TessBaseAPISetSourceResolution"
	if ppi <= 0 {
		return newError(ErrInvalidParameter, op, fmt.Errorf("resolution %d", ppi))
	}
	return e.doInit(op, func(h uintptr) error {
		e.c.TessBaseAPISetSourceResolution(h, int32(ppi))
		return nil
	})
}

func (e *Engine) SourceYResolution() (int, error) {
	const op = "TessBaseAPIGetSourceYResolution"
	var res int
	err := e.doInit(op, func(h uintptr) error {
		res = int(e.c.TessBaseAPIGetSourceYResolution(h))
		return nil
	})
	return res, err
}

// SetRectangle restricts recognition to a part of the image.
func (e *Engine) SetRectangle(left, top, width, height int) error {
	const op = "TessBaseAPISetRectangle"
	if width <= 0 || height <= 0 || left < 0 || top < 0 {
		return newError(ErrInvalidDimensions, op, fmt.Errorf("rectangle %d,%d %dx%d", left, top, width, height))
	}
	return e.doInit(op, func(h uintptr) error {
		e.c.TessBaseAPISetRectangle(h, int32(left), int32(top), int32(width), int32(height))
		return nil
	})
}

func (e *Engine) ThresholdedImageScaleFactor() (int, error) {
	const op = "TessBaseAPIGetThresholdedImageScaleFactor"
	var f int
	err := e.doInit(op, func(h uintptr) error {
		f = int(e.c.TessBaseAPIGetThresholdedImageScaleFactor(h))
		return nil
	})
	return f, err
}
