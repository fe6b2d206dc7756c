// Package imageparser turns encoded images into raw pixel buffers the engine accepts.
package imageparser

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/johbar/ocr-service/pkg/pixpool"
	"github.com/johbar/ocr-service/pkg/tesseract"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrNotAnImage  = errors.New("not an image")
	ErrUnsupported = errors.New("unsupported image format")
	ErrCorrupt     = errors.New("corrupt image")
	ErrTooLarge    = errors.New("image has too many pixels")
)

// Pixels is a decoded image in one of the layouts SetImage accepts.
type Pixels struct {
	Data          []byte
	Width, Height int
	BytesPerPixel int
	BytesPerLine  int
	MimeType      string
	buf           *pixpool.Buffer
}

// Release hands the pixel memory back to its pool.
func (p *Pixels) Release() {
	p.buf.Release()
	p.Data = nil
}

// Detect returns the MIME type of data, failing with ErrNotAnImage for anything but images.
func Detect(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return mt.String(), fmt.Errorf("%w: %s", ErrNotAnImage, mt.String())
	}
	return mt.String(), nil
}

// Decode decodes data into pixels taken from pool. Gray images keep one byte per pixel,
// everything else is converted to RGBA. Images with more than maxPixels pixels are
// rejected with ErrTooLarge before any pixel is decoded; 0 means no limit.
func Decode(data []byte, pool *pixpool.Pool, maxPixels int) (*Pixels, error) {
	mt, err := Detect(data)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(mt, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrCorrupt, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d, at most %d pixels allowed", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(mt, err)
	}
	px, err := FromImage(img, pool)
	if err != nil {
		return nil, err
	}
	px.MimeType = mt
	return px, nil
}

func decodeError(mt string, err error) error {
	if errors.Is(err, image.ErrFormat) {
		return fmt.Errorf("%w: %s", ErrUnsupported, mt)
	}
	return fmt.Errorf("%w: decoding %s: %v", ErrCorrupt, mt, err)
}

// FromImage copies img into a pixel buffer.
func FromImage(img image.Image, pool *pixpool.Pool) (*Pixels, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrCorrupt, w, h)
	}
	bpp := 4
	if isGray(img) {
		bpp = 1
	}
	buf := pool.Get(w * h * bpp)
	rect := image.Rect(0, 0, w, h)
	var dst draw.Image
	if bpp == 1 {
		dst = &image.Gray{Pix: buf.Bytes, Stride: w, Rect: rect}
	} else {
		dst = &image.RGBA{Pix: buf.Bytes, Stride: w * 4, Rect: rect}
	}
	draw.Draw(dst, rect, img, b.Min, draw.Src)
	px := &Pixels{Data: buf.Bytes, Width: w, Height: h, BytesPerPixel: bpp, BytesPerLine: w * bpp, buf: buf}
	if err := tesseract.ValidateImage(px.Data, w, h, bpp, px.BytesPerLine); err != nil {
		px.Release()
		return nil, err
	}
	return px, nil
}

func isGray(img image.Image) bool {
	switch m := img.ColorModel(); m {
	case color.GrayModel, color.Gray16Model:
		return true
	default:
		p, ok := m.(color.Palette)
		if !ok {
			return false
		}
		for _, c := range p {
			r, g, b, a := c.RGBA()
			if r != g || g != b || a != 0xffff {
				return false
			}
		}
		return true
	}
}
