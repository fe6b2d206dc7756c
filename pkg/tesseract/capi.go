package tesseract

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/johbar/ocr-service/pkg/libloader"
)

// capi holds the entry points of libtesseract's C API (and the few leptonica functions needed).
// Field names are the exported symbol names; fields tagged optional may stay nil
// when the loaded library does not provide them.
//
// C BOOL is an int, so booleans are passed as int32.
type capi struct {
	TessVersion         func() *byte
	TessDeleteText      func(text *byte)
	TessDeleteTextArray func(arr **byte)
	TessDeleteIntArray  func(arr *int32)

	TessBaseAPICreate                  func() uintptr
	TessBaseAPIDelete                  func(h uintptr)
	TessBaseAPIInit1                   func(h uintptr, datapath, lang *byte, oem int32, configs **byte, configsSize int32) int32
	TessBaseAPIInit2                   func(h uintptr, datapath, lang *byte, oem int32) int32
	TessBaseAPIInit3                   func(h uintptr, datapath, lang *byte) int32
	TessBaseAPIInit4                   func(h uintptr, datapath, lang *byte, oem int32, configs **byte, configsSize int32, varsVec, varsValues **byte, varsVecSize uintptr, setOnlyNonDebugParams int32) int32
	TessBaseAPIInit5                   func(h uintptr, data *byte, dataSize int32, lang *byte, oem int32, configs **byte, configsSize int32, varsVec, varsValues **byte, varsVecSize uintptr, setOnlyNonDebugParams int32) int32
	TessBaseAPIInitForAnalysePage      func(h uintptr)
	TessBaseAPIEnd                     func(h uintptr)
	TessBaseAPIClear                   func(h uintptr)
	TessBaseAPIClearAdaptiveClassifier func(h uintptr)

	TessBaseAPISetVariable             func(h uintptr, name, value *byte) int32
	TessBaseAPISetDebugVariable        func(h uintptr, name, value *byte) int32
	TessBaseAPIGetIntVariable          func(h uintptr, name *byte, value *int32) int32
	TessBaseAPIGetBoolVariable         func(h uintptr, name *byte, value *int32) int32
	TessBaseAPIGetDoubleVariable       func(h uintptr, name *byte, value *float64) int32
	TessBaseAPIGetStringVariable       func(h uintptr, name *byte) *byte
	TessBaseAPIPrintVariablesToFile    func(h uintptr, filename *byte) int32
	TessBaseAPIReadConfigFile          func(h uintptr, filename *byte)
	TessBaseAPIReadDebugConfigFile     func(h uintptr, filename *byte)
	TessBaseAPISetPageSegMode          func(h uintptr, mode int32)
	TessBaseAPIGetPageSegMode          func(h uintptr) int32
	TessBaseAPISetMinOrientationMargin func(h uintptr, margin float64)
	TessBaseAPIOem                     func(h uintptr) int32

	TessBaseAPIGetInitLanguagesAsString      func(h uintptr) *byte
	TessBaseAPIGetLoadedLanguagesAsVector    func(h uintptr) **byte
	TessBaseAPIGetAvailableLanguagesAsVector func(h uintptr) **byte
	TessBaseAPIGetDatapath                   func(h uintptr) *byte
	TessBaseAPISetInputName                  func(h uintptr, name *byte)
	TessBaseAPIGetInputName                  func(h uintptr) *byte
	TessBaseAPISetOutputName                 func(h uintptr, name *byte)

	TessBaseAPISetImage                       func(h uintptr, data *byte, width, height, bytesPerPixel, bytesPerLine int32)
	TessBaseAPISetImage2                      func(h uintptr, pix uintptr)
	TessBaseAPISetSourceResolution            func(h uintptr, ppi int32)
	TessBaseAPIGetSourceYResolution           func(h uintptr) int32
	TessBaseAPISetRectangle                   func(h uintptr, left, top, width, height int32)
	TessBaseAPIGetThresholdedImageScaleFactor func(h uintptr) int32

	TessBaseAPIRecognize          func(h uintptr, monitor uintptr) int32
	TessBaseAPIProcessPages       func(h uintptr, filename, retryConfig *byte, timeoutMillisec int32, renderer uintptr) int32
	TessBaseAPIGetUTF8Text        func(h uintptr) *byte
	TessBaseAPIGetHOCRText        func(h uintptr, page int32) *byte
	TessBaseAPIGetAltoText        func(h uintptr, page int32) *byte
	TessBaseAPIGetTsvText         func(h uintptr, page int32) *byte
	TessBaseAPIGetBoxText         func(h uintptr, page int32) *byte
	TessBaseAPIGetLSTMBoxText     func(h uintptr, page int32) *byte
	TessBaseAPIGetWordStrBoxText  func(h uintptr, page int32) *byte
	TessBaseAPIGetOsdText         func(h uintptr, page int32) *byte
	TessBaseAPIGetUNLVText        func(h uintptr) *byte
	TessBaseAPIMeanTextConf       func(h uintptr) int32
	TessBaseAPIAllWordConfidences func(h uintptr) *int32

	TessBaseAPIAdaptToWordStr          func(h uintptr, mode int32, wordstr *byte) int32
	TessBaseAPIIsValidWord             func(h uintptr, word *byte) int32
	TessBaseAPIGetTextDirection        func(h uintptr, offset *int32, slope *float32) int32
	TessBaseAPIDetectOrientationScript func(h uintptr, orientDeg *int32, orientConf *float32, scriptName **byte, scriptConf *float32) int32
	TessBaseAPIGetUnichar              func(h uintptr, unicharID int32) *byte

	TessBaseAPIGetIterator        func(h uintptr) uintptr
	TessBaseAPIGetMutableIterator func(h uintptr) uintptr
	TessBaseAPIAnalyseLayout      func(h uintptr) uintptr

	TessPageIteratorDelete           func(it uintptr)
	TessPageIteratorCopy             func(it uintptr) uintptr
	TessPageIteratorBegin            func(it uintptr)
	TessPageIteratorNext             func(it uintptr, level int32) int32
	TessPageIteratorIsAtBeginningOf  func(it uintptr, level int32) int32
	TessPageIteratorIsAtFinalElement func(it uintptr, level, element int32) int32
	TessPageIteratorBoundingBox      func(it uintptr, level int32, left, top, right, bottom *int32) int32
	TessPageIteratorBlockType        func(it uintptr) int32
	TessPageIteratorBaseline         func(it uintptr, level int32, x1, y1, x2, y2 *int32) int32
	TessPageIteratorOrientation      func(it uintptr, orientation, writingDirection, textlineOrder *int32, deskewAngle *float32)
	TessPageIteratorParagraphInfo    func(it uintptr, justification, isListItem, isCrown, firstLineIndent *int32)

	TessResultIteratorDelete                  func(it uintptr)
	TessResultIteratorCopy                    func(it uintptr) uintptr
	TessResultIteratorGetPageIterator         func(it uintptr) uintptr
	TessResultIteratorGetChoiceIterator       func(it uintptr) uintptr
	TessResultIteratorNext                    func(it uintptr, level int32) int32
	TessResultIteratorGetUTF8Text             func(it uintptr, level int32) *byte
	TessResultIteratorConfidence              func(it uintptr, level int32) float32
	TessResultIteratorWordRecognitionLanguage func(it uintptr) *byte
	TessResultIteratorWordFontAttributes      func(it uintptr, bold, italic, underlined, monospace, serif, smallcaps, pointsize, fontID *int32) *byte
	TessResultIteratorWordIsFromDictionary    func(it uintptr) int32
	TessResultIteratorWordIsNumeric           func(it uintptr) int32
	TessResultIteratorSymbolIsSuperscript     func(it uintptr) int32
	TessResultIteratorSymbolIsSubscript       func(it uintptr) int32
	TessResultIteratorSymbolIsDropcap         func(it uintptr) int32

	// not part of every build of the C API
	TessMutableIteratorSetValue func(it uintptr, level int32, text *byte) int32 `optional:"true"`

	TessChoiceIteratorDelete      func(it uintptr)
	TessChoiceIteratorNext        func(it uintptr) int32
	TessChoiceIteratorGetUTF8Text func(it uintptr) *byte
	TessChoiceIteratorConfidence  func(it uintptr) float32

	TessMonitorCreate           func() uintptr
	TessMonitorDelete           func(m uintptr)
	TessMonitorSetDeadlineMSecs func(m uintptr, deadline int32)
	TessMonitorGetProgress      func(m uintptr) int32 `optional:"true"`

	TessTextRendererCreate       func(outputbase *byte) uintptr
	TessHOcrRendererCreate2      func(outputbase *byte, fontInfo int32) uintptr
	TessAltoRendererCreate       func(outputbase *byte) uintptr
	TessTsvRendererCreate        func(outputbase *byte) uintptr
	TessPDFRendererCreate        func(outputbase, datadir *byte, textonly int32) uintptr
	TessUnlvRendererCreate       func(outputbase *byte) uintptr
	TessBoxTextRendererCreate    func(outputbase *byte) uintptr
	TessLSTMBoxRendererCreate    func(outputbase *byte) uintptr
	TessWordStrBoxRendererCreate func(outputbase *byte) uintptr
	TessPAGERendererCreate       func(outputbase *byte) uintptr `optional:"true"`

	TessDeleteResultRenderer         func(r uintptr)
	TessResultRendererInsert         func(r, next uintptr)
	TessResultRendererNext           func(r uintptr) uintptr
	TessResultRendererBeginDocument  func(r uintptr, title *byte) int32
	TessResultRendererAddImage       func(r, api uintptr) int32
	TessResultRendererEndDocument    func(r uintptr) int32
	TessResultRendererExtention      func(r uintptr) *byte
	TessResultRendererTitle          func(r uintptr) *byte
	TessResultRendererImageNum       func(r uintptr) int32

	// returned Pix are owned by the caller, input images by the engine
	TessBaseAPIGetThresholdedImage func(h uintptr) uintptr      `optional:"true"`
	TessBaseAPIGetInputImage       func(h uintptr) uintptr      `optional:"true"`
	TessBaseAPISetInputImage       func(h uintptr, pix uintptr) `optional:"true"`

	// leptonica, usually reachable through libtesseract's dependencies
	pixReadMem   func(data *byte, size uintptr) uintptr `optional:"true"`
	pixDestroy   func(pix *uintptr)                     `optional:"true"`
	pixGetWidth  func(pix uintptr) int32                `optional:"true"`
	pixGetHeight func(pix uintptr) int32                `optional:"true"`
	pixGetDepth  func(pix uintptr) int32                `optional:"true"`
	pixGetWpl    func(pix uintptr) int32                `optional:"true"`
	pixGetData   func(pix uintptr) *uint32              `optional:"true"`
}

var defaultLibNames = map[string][]string{
	"linux":   {"libtesseract.so.5", "libtesseract.so", "libtesseract.so.4"},
	"freebsd": {"libtesseract.so.5", "libtesseract.so"},
	"darwin": {"/opt/homebrew/lib/libtesseract.5.dylib", "/opt/homebrew/lib/libtesseract.dylib",
		"/usr/local/lib/libtesseract.5.dylib", "libtesseract.5.dylib", "libtesseract.dylib"},
	"windows": {"libtesseract-5.dll", "tesseract55.dll", "tesseract54.dll", "tesseract53.dll", "libtesseract.dll"},
}

var (
	libMu   sync.Mutex
	lib     *capi
	libPath string
	libErr  error
)

// InitLib loads libtesseract from path, or from the platform's default locations
// if path is empty, and returns the path it was loaded from.
// Calling InitLib again after a successful load is a no-op.
func InitLib(path string) (string, error) {
	libMu.Lock()
	defer libMu.Unlock()
	if lib != nil {
		return libPath, nil
	}
	c, p, err := loadCAPI(path)
	if err != nil {
		libErr = err
		return "", err
	}
	lib, libPath, libErr = c, p, nil
	logger().Info("libtesseract loaded", "path", p)
	return p, nil
}

// loadedAPI returns the loaded entry points, loading the library from the default
// locations on first use.
func loadedAPI() (*capi, error) {
	libMu.Lock()
	c := lib
	libMu.Unlock()
	if c != nil {
		return c, nil
	}
	if _, err := InitLib(""); err != nil {
		return nil, err
	}
	libMu.Lock()
	defer libMu.Unlock()
	return lib, nil
}

func loadCAPI(path string) (*capi, string, error) {
	paths := defaultLibNames[runtime.GOOS]
	if path != "" {
		paths = []string{path}
	}
	h, found, err := libloader.TryLoadLib(paths...)
	if err != nil {
		return nil, "", newError(ErrLibrary, "InitLib", err)
	}
	c := &capi{}
	if err := c.bind(func(name string) (uintptr, error) { return libloader.Symbol(h, name) }); err != nil {
		_ = libloader.CloseLib(h)
		return nil, "", newError(ErrLibrary, "InitLib", err)
	}
	return c, found, nil
}

// bind resolves every func field by its name. Missing optional symbols are left nil.
func (c *capi) bind(lookup func(name string) (uintptr, error)) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	var errs []error
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Func {
			continue
		}
		addr, err := lookup(f.Name)
		if err != nil || addr == 0 {
			if f.Tag.Get("optional") == "true" {
				continue
			}
			if err == nil {
				err = errors.New("not found")
			}
			errs = append(errs, fmt.Errorf("symbol %s: %w", f.Name, err))
			continue
		}
		// unexported fields can't be reached through Interface(), so go through the pointer
		fptr := reflect.NewAt(f.Type, v.Field(i).Addr().UnsafePointer()).Interface()
		purego.RegisterFunc(fptr, addr)
	}
	return errors.Join(errs...)
}

// Version returns the version of the loaded libtesseract.
func Version() (string, error) {
	c, err := loadedAPI()
	if err != nil {
		return "", err
	}
	return borrowString("TessVersion", c.TessVersion())
}
