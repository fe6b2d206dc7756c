/*
Package tesseract binds libtesseract (Tesseract OCR v4/v5) through its C API without cgo.

Every native object (engine, iterators, monitor, renderer) is wrapped in a handle that
serializes all calls with a mutex and releases the native object exactly once,
when the last owner calls Close. Wrappers are safe for concurrent use.
Clone returns another owner of the same native object, not an independent copy.

The shared library is loaded on first use from the platform's default locations,
or explicitly by calling [InitLib].
*/
package tesseract

import (
	"fmt"
	"runtime"
	"slices"
)

type engineState struct {
	initialized bool
}

// Engine wraps a TessBaseAPI instance.
type Engine struct {
	o *owner[engineState]
	c *capi
}

// New creates an engine. It must be initialized by one of the Init methods before recognizing text.
func New() (*Engine, error) {
	c, err := loadedAPI()
	if err != nil {
		return nil, err
	}
	return newEngine(c)
}

func newEngine(c *capi) (*Engine, error) {
	o, err := newHandle("TessBaseAPI", "TessBaseAPICreate", c.TessBaseAPICreate(), engineState{},
		func(ptr uintptr, _ *engineState) { c.TessBaseAPIDelete(ptr) })
	if err != nil {
		return nil, err
	}
	return wrapEngine(c, o), nil
}

func wrapEngine(c *capi, o *owner[engineState]) *Engine {
	e := &Engine{o: o, c: c}
	runtime.AddCleanup(e, func(o *owner[engineState]) { o.close() }, o)
	return e
}

// Clone returns a new owner of the same engine. Settings made through one
// are visible through all of them.
func (e *Engine) Clone() *Engine {
	return wrapEngine(e.c, e.o.clone())
}

// Close releases this owner. The engine is deleted when the last owner is closed.
// Calling Close more than once is a no-op.
func (e *Engine) Close() error {
	e.o.close()
	return nil
}

// do runs fn while holding the engine's lock.
func (e *Engine) do(op string, fn func(h uintptr) error) error {
	return e.o.do(op, func(h uintptr, _ *engineState) error { return fn(h) })
}

// doInit is like do but fails with ErrUninitialized if the engine has not been initialized.
func (e *Engine) doInit(op string, fn func(h uintptr) error) error {
	return e.o.do(op, func(h uintptr, s *engineState) error {
		if !s.initialized {
			return newError(ErrUninitialized, op, nil)
		}
		return fn(h)
	})
}

// Initialized reports whether one of the Init methods has succeeded and End has not been called since.
func (e *Engine) Initialized() bool {
	ok, _ := with(e.o, "Initialized", func(_ uintptr, s *engineState) (bool, error) {
		return s.initialized, nil
	})
	return ok
}

// Init loads the traineddata for lang (e.g. "eng" or "deu+eng") from datapath.
// Empty values select the library's defaults (TESSDATA_PREFIX, "eng").
func (e *Engine) Init(datapath, lang string) error {
	return e.initWith("TessBaseAPIInit3", datapath, lang, func(h uintptr, dp, l *byte) int32 {
		return e.c.TessBaseAPIInit3(h, dp, l)
	})
}

// Init1 is like Init and additionally selects the engine mode and reads the given config files.
func (e *Engine) Init1(datapath, lang string, oem OcrEngineMode, configs []string) error {
	const op = "TessBaseAPIInit1"
	cfgs, err := newCStringArray(op, configs)
	if err != nil {
		return err
	}
	defer cfgs.Unpin()
	return e.initWith(op, datapath, lang, func(h uintptr, dp, l *byte) int32 {
		return e.c.TessBaseAPIInit1(h, dp, l, int32(oem), cfgs.Ptr(), cfgs.Len())
	})
}

// Init2 is like Init and additionally selects the engine mode.
func (e *Engine) Init2(datapath, lang string, oem OcrEngineMode) error {
	return e.initWith("TessBaseAPIInit2", datapath, lang, func(h uintptr, dp, l *byte) int32 {
		return e.c.TessBaseAPIInit2(h, dp, l, int32(oem))
	})
}

// Init4 initializes the engine with config files and variables that can only be set
// at init time. If setOnlyNonDebugParams is true, debug variables in vars are ignored.
func (e *Engine) Init4(datapath, lang string, oem OcrEngineMode, configs []string, vars map[string]string, setOnlyNonDebugParams bool) error {
	const op = "TessBaseAPIInit4"
	cfgs, err := newCStringArray(op, configs)
	if err != nil {
		return err
	}
	defer cfgs.Unpin()
	names, values, err := varArrays(op, vars)
	if err != nil {
		return err
	}
	defer names.Unpin()
	defer values.Unpin()
	return e.initWith(op, datapath, lang, func(h uintptr, dp, l *byte) int32 {
		return e.c.TessBaseAPIInit4(h, dp, l, int32(oem), cfgs.Ptr(), cfgs.Len(),
			names.Ptr(), values.Ptr(), uintptr(names.Len()), cBool(setOnlyNonDebugParams))
	})
}

// Init5 is like Init4 but reads the traineddata from memory instead of a datapath.
func (e *Engine) Init5(data []byte, lang string, oem OcrEngineMode, configs []string, vars map[string]string, setOnlyNonDebugParams bool) error {
	const op = "TessBaseAPIInit5"
	if len(data) == 0 {
		return newError(ErrInvalidParameter, op, fmt.Errorf("empty traineddata"))
	}
	cfgs, err := newCStringArray(op, configs)
	if err != nil {
		return err
	}
	defer cfgs.Unpin()
	names, values, err := varArrays(op, vars)
	if err != nil {
		return err
	}
	defer names.Unpin()
	defer values.Unpin()
	return e.initWith(op, "", lang, func(h uintptr, _, l *byte) int32 {
		return e.c.TessBaseAPIInit5(h, &data[0], int32(len(data)), l, int32(oem), cfgs.Ptr(), cfgs.Len(),
			names.Ptr(), values.Ptr(), uintptr(names.Len()), cBool(setOnlyNonDebugParams))
	})
}

// InitForAnalysePage prepares the engine for layout analysis only. Recognition is not possible afterwards.
func (e *Engine) InitForAnalysePage() error {
	return e.o.do("TessBaseAPIInitForAnalysePage", func(h uintptr, s *engineState) error {
		e.c.TessBaseAPIInitForAnalysePage(h)
		s.initialized = true
		return nil
	})
}

func (e *Engine) initWith(op, datapath, lang string, call func(h uintptr, datapath, lang *byte) int32) error {
	dp, err := nullableCString(op, datapath)
	if err != nil {
		return err
	}
	l, err := nullableCString(op, lang)
	if err != nil {
		return err
	}
	return e.o.do(op, func(h uintptr, s *engineState) error {
		s.initialized = false
		if rc := call(h, dp, l); rc != 0 {
			return newError(ErrInit, op, fmt.Errorf("datapath %q, language %q: return code %d", datapath, lang, rc))
		}
		s.initialized = true
		return nil
	})
}

// varArrays splits vars into two parallel arrays, sorted by name.
func varArrays(op string, vars map[string]string) (names, values *cStringArray, err error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = vars[k]
	}
	names, err = newCStringArray(op, keys)
	if err != nil {
		return nil, nil, err
	}
	values, err = newCStringArray(op, vals)
	if err != nil {
		names.Unpin()
		return nil, nil, err
	}
	return names, values, nil
}

// End frees all recognition data. The engine has to be initialized again before further use.
func (e *Engine) End() error {
	return e.o.do("TessBaseAPIEnd", func(h uintptr, s *engineState) error {
		e.c.TessBaseAPIEnd(h)
		s.initialized = false
		return nil
	})
}

// Clear frees the image and recognition results but keeps the loaded language data.
// Iterators obtained before must not be used anymore.
func (e *Engine) Clear() error {
	return e.do("TessBaseAPIClear", func(h uintptr) error {
		e.c.TessBaseAPIClear(h)
		return nil
	})
}

func (e *Engine) ClearAdaptiveClassifier() error {
	return e.doInit("TessBaseAPIClearAdaptiveClassifier", func(h uintptr) error {
		e.c.TessBaseAPIClearAdaptiveClassifier(h)
		return nil
	})
}

// SetVariable sets a tesseract parameter, e.g. "tessedit_char_whitelist".
func (e *Engine) SetVariable(name, value string) error {
	return e.setVariable("TessBaseAPISetVariable", name, value, func(h uintptr, n, v *byte) int32 {
		return e.c.TessBaseAPISetVariable(h, n, v)
	})
}

// SetDebugVariable sets a debug parameter. Unlike SetVariable it also accepts
// parameters that can only be set before Init.
func (e *Engine) SetDebugVariable(name, value string) error {
	return e.setVariable("TessBaseAPISetDebugVariable", name, value, func(h uintptr, n, v *byte) int32 {
		return e.c.TessBaseAPISetDebugVariable(h, n, v)
	})
}

func (e *Engine) setVariable(op, name, value string, call func(h uintptr, n, v *byte) int32) error {
	n, err := cString(op, name)
	if err != nil {
		return err
	}
	v, err := cString(op, value)
	if err != nil {
		return err
	}
	return e.do(op, func(h uintptr) error {
		if call(h, n, v) == 0 {
			return newError(ErrSetVariable, op, fmt.Errorf("%s=%q", name, value))
		}
		return nil
	})
}

// SetVariables sets all vars, stopping at the first failure.
func (e *Engine) SetVariables(vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := e.SetVariable(k, vars[k]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) StringVariable(name string) (string, error) {
	const op = "TessBaseAPIGetStringVariable"
	n, err := cString(op, name)
	if err != nil {
		return "", err
	}
	return with(e.o, op, func(h uintptr, _ *engineState) (string, error) {
		p := e.c.TessBaseAPIGetStringVariable(h, n)
		if p == nil {
			return "", newError(ErrGetVariable, op, fmt.Errorf("unknown variable %s", name))
		}
		return borrowString(op, p)
	})
}

func (e *Engine) IntVariable(name string) (int, error) {
	const op = "TessBaseAPIGetIntVariable"
	n, err := cString(op, name)
	if err != nil {
		return 0, err
	}
	return with(e.o, op, func(h uintptr, _ *engineState) (int, error) {
		var v int32
		if e.c.TessBaseAPIGetIntVariable(h, n, &v) == 0 {
			return 0, newError(ErrGetVariable, op, fmt.Errorf("unknown variable %s", name))
		}
		return int(v), nil
	})
}

func (e *Engine) BoolVariable(name string) (bool, error) {
	const op = "TessBaseAPIGetBoolVariable"
	n, err := cString(op, name)
	if err != nil {
		return false, err
	}
	return with(e.o, op, func(h uintptr, _ *engineState) (bool, error) {
		var v int32
		if e.c.TessBaseAPIGetBoolVariable(h, n, &v) == 0 {
			return false, newError(ErrGetVariable, op, fmt.Errorf("unknown variable %s", name))
		}
		return v != 0, nil
	})
}

func (e *Engine) DoubleVariable(name string) (float64, error) {
	const op = "TessBaseAPIGetDoubleVariable"
	n, err := cString(op, name)
	if err != nil {
		return 0, err
	}
	return with(e.o, op, func(h uintptr, _ *engineState) (float64, error) {
		var v float64
		if e.c.TessBaseAPIGetDoubleVariable(h, n, &v) == 0 {
			return 0, newError(ErrGetVariable, op, fmt.Errorf("unknown variable %s", name))
		}
		return v, nil
	})
}

// PrintVariablesToFile writes all parameters and their values to filename.
func (e *Engine) PrintVariablesToFile(filename string) error {
	const op = "TessBaseAPIPrintVariablesToFile"
	f, err := cString(op, filename)
	if err != nil {
		return err
	}
	return e.do(op, func(h uintptr) error {
		if e.c.TessBaseAPIPrintVariablesToFile(h, f) == 0 {
			return newError(ErrIO, op, fmt.Errorf("writing %s", filename))
		}
		return nil
	})
}

// ReadConfigFile reads parameters from a config file. Init-only parameters are ignored.
func (e *Engine) ReadConfigFile(filename string) error {
	return e.readConfig("TessBaseAPIReadConfigFile", filename, func(h uintptr, f *byte) {
		e.c.TessBaseAPIReadConfigFile(h, f)
	})
}

// ReadDebugConfigFile is like ReadConfigFile but only debug parameters are set.
func (e *Engine) ReadDebugConfigFile(filename string) error {
	return e.readConfig("TessBaseAPIReadDebugConfigFile", filename, func(h uintptr, f *byte) {
		e.c.TessBaseAPIReadDebugConfigFile(h, f)
	})
}

func (e *Engine) readConfig(op, filename string, call func(h uintptr, f *byte)) error {
	f, err := cString(op, filename)
	if err != nil {
		return err
	}
	return e.do(op, func(h uintptr) error {
		call(h, f)
		return nil
	})
}

func (e *Engine) SetPageSegMode(mode PageSegMode) error {
	const op = "TessBaseAPISetPageSegMode"
	if mode < 0 || mode >= psmCount {
		return newError(ErrInvalidParameter, op, fmt.Errorf("page segmentation mode %d", mode))
	}
	return e.do(op, func(h uintptr) error {
		e.c.TessBaseAPISetPageSegMode(h, int32(mode))
		return nil
	})
}

func (e *Engine) PageSegMode() (PageSegMode, error) {
	return with(e.o, "TessBaseAPIGetPageSegMode", func(h uintptr, _ *engineState) (PageSegMode, error) {
		return PageSegMode(e.c.TessBaseAPIGetPageSegMode(h)), nil
	})
}

func (e *Engine) SetMinOrientationMargin(margin float64) error {
	return e.do("TessBaseAPISetMinOrientationMargin", func(h uintptr) error {
		e.c.TessBaseAPISetMinOrientationMargin(h, margin)
		return nil
	})
}

// Oem returns the engine mode selected at init time.
func (e *Engine) Oem() (OcrEngineMode, error) {
	return with(e.o, "TessBaseAPIOem", func(h uintptr, _ *engineState) (OcrEngineMode, error) {
		return OcrEngineMode(e.c.TessBaseAPIOem(h)), nil
	})
}

// InitLanguagesAsString returns the languages passed to Init, e.g. "deu+eng".
func (e *Engine) InitLanguagesAsString() (string, error) {
	const op = "TessBaseAPIGetInitLanguagesAsString"
	return with(e.o, op, func(h uintptr, _ *engineState) (string, error) {
		return borrowString(op, e.c.TessBaseAPIGetInitLanguagesAsString(h))
	})
}

// LoadedLanguages returns the languages actually loaded, including dependencies.
func (e *Engine) LoadedLanguages() ([]string, error) {
	const op = "TessBaseAPIGetLoadedLanguagesAsVector"
	return with(e.o, op, func(h uintptr, _ *engineState) ([]string, error) {
		return copyTextArray(op, e.c.TessBaseAPIGetLoadedLanguagesAsVector(h), e.c.TessDeleteTextArray)
	})
}

// AvailableLanguages returns the languages found in the datapath.
func (e *Engine) AvailableLanguages() ([]string, error) {
	const op = "TessBaseAPIGetAvailableLanguagesAsVector"
	return with(e.o, op, func(h uintptr, _ *engineState) ([]string, error) {
		return copyTextArray(op, e.c.TessBaseAPIGetAvailableLanguagesAsVector(h), e.c.TessDeleteTextArray)
	})
}

func (e *Engine) Datapath() (string, error) {
	const op = "TessBaseAPIGetDatapath"
	return with(e.o, op, func(h uintptr, _ *engineState) (string, error) {
		return borrowString(op, e.c.TessBaseAPIGetDatapath(h))
	})
}

// SetInputName sets the name of the image, used by renderers and for training output.
func (e *Engine) SetInputName(name string) error {
	const op = "TessBaseAPISetInputName"
	n, err := cString(op, name)
	if err != nil {
		return err
	}
	return e.do(op, func(h uintptr) error {
		e.c.TessBaseAPISetInputName(h, n)
		return nil
	})
}

func (e *Engine) InputName() (string, error) {
	const op = "TessBaseAPIGetInputName"
	return with(e.o, op, func(h uintptr, _ *engineState) (string, error) {
		return borrowString(op, e.c.TessBaseAPIGetInputName(h))
	})
}

func (e *Engine) SetOutputName(name string) error {
	const op = "TessBaseAPISetOutputName"
	n, err := cString(op, name)
	if err != nil {
		return err
	}
	return e.do(op, func(h uintptr) error {
		e.c.TessBaseAPISetOutputName(h, n)
		return nil
	})
}
