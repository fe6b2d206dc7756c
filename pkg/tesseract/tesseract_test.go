package tesseract_test

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"
	"testing"

	"github.com/johbar/ocr-service/pkg/tesseract"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// newEngine returns an engine initialized for English or skips the test
// if libtesseract or eng.traineddata is not installed.
func newEngine(t *testing.T) *tesseract.Engine {
	t.Helper()
	if _, err := tesseract.InitLib(os.Getenv("OCR_LIB_PATH")); err != nil {
		t.Skipf("libtesseract not available: %v", err)
	}
	e, err := tesseract.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	if err := e.Init(os.Getenv("TESSDATA_PREFIX"), "eng"); err != nil {
		t.Skipf("eng.traineddata not available: %v", err)
	}
	return e
}

// renderText draws s in black on white with a bitmap font, scaled up by factor.
func renderText(s string, factor int) *image.Gray {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil() + 20
	h := face.Height + 20
	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	d := font.Drawer{Dst: small, Src: image.Black, Face: face, Dot: fixed.P(10, 10+face.Ascent)}
	d.DrawString(s)
	big := image.NewGray(image.Rect(0, 0, w*factor, h*factor))
	for y := range big.Bounds().Dy() {
		for x := range big.Bounds().Dx() {
			big.SetGray(x, y, color.Gray{small.GrayAt(x/factor, y/factor).Y})
		}
	}
	return big
}

func TestVersion(t *testing.T) {
	if _, err := tesseract.InitLib(os.Getenv("OCR_LIB_PATH")); err != nil {
		t.Skipf("libtesseract not available: %v", err)
	}
	v, err := tesseract.Version()
	if err != nil {
		t.Fatal(err)
	}
	if v == "" {
		t.Error("empty version")
	}
	t.Log(v)
}

func TestInitWithBadDatapath(t *testing.T) {
	if _, err := tesseract.InitLib(os.Getenv("OCR_LIB_PATH")); err != nil {
		t.Skipf("libtesseract not available: %v", err)
	}
	e, err := tesseract.New()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Init("/nonexistent/tessdata", "eng"); !errors.Is(err, tesseract.ErrInit) {
		t.Errorf("got %v, want ErrInit", err)
	}
	if _, err := e.UTF8Text(); !errors.Is(err, tesseract.ErrUninitialized) {
		t.Errorf("got %v, want ErrUninitialized", err)
	}
}

func TestTinyImageWithWhitelist(t *testing.T) {
	e := newEngine(t)
	if err := e.SetImage([]byte{
		0xFF, 0x00, 0xFF,
		0x00, 0x00, 0xFF,
		0x00, 0x00, 0xFF,
	}, 3, 3, 1, 3); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVariable("tessedit_char_whitelist", "0123456789"); err != nil {
		t.Fatal(err)
	}
	text, err := e.UTF8Text()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "1") {
		t.Errorf("got %q, want it to contain 1", text)
	}
}

func TestSetImageCopiesPixels(t *testing.T) {
	e := newEngine(t)
	img := renderText("HELLO 123", 4)
	b := img.Bounds()
	if err := e.SetImage(img.Pix, b.Dx(), b.Dy(), 1, img.Stride); err != nil {
		t.Fatal(err)
	}
	// blank the buffer, the engine must still see the text
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	text, err := e.UTF8Text()
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(text) == "" {
		t.Error("no text recognized after reusing the buffer")
	}
}

func TestThresholdedRenderedText(t *testing.T) {
	e := newEngine(t)
	img := renderText("HELLO", 4)
	b := img.Bounds()
	if err := e.SetImage(img.Pix, b.Dx(), b.Dy(), 1, img.Stride); err != nil {
		t.Fatal(err)
	}
	bin, err := e.ThresholdedImage()
	if errors.Is(err, tesseract.ErrLibrary) {
		t.Skip(err)
	}
	if err != nil {
		t.Fatal(err)
	}
	if bin.Bounds() != b {
		t.Fatalf("got bounds %v, want %v", bin.Bounds(), b)
	}
	var black int
	for _, v := range bin.Pix {
		if v != 0 && v != 0xff {
			t.Fatalf("pixel value %d in binarized image", v)
		}
		if v == 0 {
			black++
		}
	}
	if black == 0 || black == len(bin.Pix) {
		t.Errorf("%d of %d pixels black", black, len(bin.Pix))
	}
}

func TestRecognizeRenderedText(t *testing.T) {
	e := newEngine(t)
	img := renderText("HELLO 123", 4)
	b := img.Bounds()
	if err := e.SetImage(img.Pix, b.Dx(), b.Dy(), 1, img.Stride); err != nil {
		t.Fatal(err)
	}
	if err := e.SetSourceResolution(300); err != nil {
		t.Fatal(err)
	}
	if err := e.Recognize(); err != nil {
		t.Fatal(err)
	}
	text, err := e.UTF8Text()
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(text) == "" {
		t.Fatal("no text recognized")
	}
	t.Log(text)

	confs, err := e.AllWordConfidences()
	if err != nil {
		t.Fatal(err)
	}
	it, err := e.Iterator()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	words, err := it.Words(tesseract.LevelWord)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != len(confs) {
		t.Errorf("iterator found %d words, engine reports %d confidences", len(words), len(confs))
	}
	for _, w := range words {
		if !w.Box.In(b) {
			t.Errorf("word %q at %v outside of the image", w.Text, w.Box)
		}
	}
	again, err := e.AllWordConfidences()
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(confs) {
		t.Errorf("confidences changed between calls: %v, %v", confs, again)
	}

	hocr, err := e.HOCRText(0)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(hocr, "ocr_page") {
		t.Errorf("no page in hOCR: %s", hocr)
	}
}

func TestInvalidImages(t *testing.T) {
	e := newEngine(t)
	tests := []struct {
		name string
		data []byte
		w, h int
		want tesseract.Kind
	}{
		{"zero size", []byte{}, 0, 0, tesseract.ErrInvalidDimensions},
		{"empty data", []byte{}, 10, 10, tesseract.ErrInvalidImageData},
	}
	for _, tt := range tests {
		err := e.SetImage(tt.data, tt.w, tt.h, 1, tt.w)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}
