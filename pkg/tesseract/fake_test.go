package tesseract

import (
	"strconv"
	"sync"
	"testing"
	"unsafe"
)

// fakeLib emulates the parts of libtesseract the tests need.
// Recognition "finds" the configured words.
type fakeLib struct {
	mu sync.Mutex

	next    uintptr
	deleted map[uintptr]int
	// strings and arrays handed out and not yet freed
	texts  map[*byte][]byte
	arrays map[**byte][]*byte
	ints   map[*int32][]int32
	freed  int

	vars        map[string]string
	words       []string
	confs       []int32
	badLang     string
	initialized bool
	imageSet    int
	recognized  int
	deadline    int32
	pageSegMode int32
	panicOnPSM  bool

	// iterator positions
	pos       map[uintptr]int
	nextCalls int

	rendererImages map[uintptr]int
	rendererCalls  int
	inserted       map[uintptr]uintptr
}

func goStr(p *byte) string {
	if p == nil {
		return ""
	}
	return unsafe.String(p, goStringLen(p))
}

func newFakeLib() (*fakeLib, *capi) {
	f := &fakeLib{
		next:           0x1000,
		deleted:        map[uintptr]int{},
		texts:          map[*byte][]byte{},
		arrays:         map[**byte][]*byte{},
		ints:           map[*int32][]int32{},
		vars:           map[string]string{"tessedit_char_whitelist": "", "user_defined_dpi": "0", "textord_debug_tabfind": "0", "textord_tabfind_aligned_gap_fraction": "0.75"},
		words:          []string{"Hello", "World", "1"},
		confs:          []int32{91, 87, 60},
		badLang:        "xxx",
		pos:            map[uintptr]int{},
		rendererImages: map[uintptr]int{},
		inserted:       map[uintptr]uintptr{},
	}
	c := &capi{}
	c.TessDeleteText = func(p *byte) { f.mu.Lock(); delete(f.texts, p); f.freed++; f.mu.Unlock() }
	c.TessDeleteTextArray = func(p **byte) {
		f.mu.Lock()
		for _, s := range f.arrays[p] {
			delete(f.texts, s)
		}
		delete(f.arrays, p)
		f.freed++
		f.mu.Unlock()
	}
	c.TessDeleteIntArray = func(p *int32) { f.mu.Lock(); delete(f.ints, p); f.freed++; f.mu.Unlock() }

	c.TessBaseAPICreate = f.create
	c.TessBaseAPIDelete = f.delete
	c.TessBaseAPIInit3 = func(_ uintptr, _, lang *byte) int32 { return f.init(goStr(lang)) }
	c.TessBaseAPIInit2 = func(_ uintptr, _, lang *byte, _ int32) int32 { return f.init(goStr(lang)) }
	c.TessBaseAPIInit1 = func(_ uintptr, _, lang *byte, _ int32, _ **byte, _ int32) int32 { return f.init(goStr(lang)) }
	c.TessBaseAPIInit4 = func(_ uintptr, _, lang *byte, _ int32, _ **byte, _ int32, names, values **byte, n uintptr, _ int32) int32 {
		rc := f.init(goStr(lang))
		if rc == 0 && n > 0 {
			ns := unsafe.Slice(names, n)
			vs := unsafe.Slice(values, n)
			f.mu.Lock()
			for i := range ns {
				f.vars[goStr(ns[i])] = goStr(vs[i])
			}
			f.mu.Unlock()
		}
		return rc
	}
	c.TessBaseAPIEnd = func(uintptr) { f.mu.Lock(); f.initialized = false; f.mu.Unlock() }
	c.TessBaseAPIClear = func(uintptr) { f.mu.Lock(); f.recognized = 0; f.mu.Unlock() }

	c.TessBaseAPISetVariable = f.setVar
	c.TessBaseAPISetDebugVariable = f.setVar
	c.TessBaseAPIGetStringVariable = func(_ uintptr, name *byte) *byte {
		f.mu.Lock()
		defer f.mu.Unlock()
		v, ok := f.vars[goStr(name)]
		if !ok {
			return nil
		}
		// borrowed by the caller; keep it reachable
		b := append([]byte(v), 0)
		f.texts[&b[0]] = b
		return &b[0]
	}
	c.TessBaseAPIGetIntVariable = func(_ uintptr, name *byte, out *int32) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		n, err := strconv.Atoi(f.vars[goStr(name)])
		if err != nil {
			return 0
		}
		*out = int32(n)
		return 1
	}
	c.TessBaseAPIGetDoubleVariable = func(_ uintptr, name *byte, out *float64) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		n, err := strconv.ParseFloat(f.vars[goStr(name)], 64)
		if err != nil {
			return 0
		}
		*out = n
		return 1
	}
	c.TessBaseAPIGetBoolVariable = func(_ uintptr, name *byte, out *int32) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		b, err := strconv.ParseBool(f.vars[goStr(name)])
		if err != nil {
			return 0
		}
		*out = cBool(b)
		return 1
	}
	c.TessBaseAPISetPageSegMode = func(_ uintptr, m int32) { f.mu.Lock(); f.pageSegMode = m; f.mu.Unlock() }
	c.TessBaseAPIGetPageSegMode = func(uintptr) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.panicOnPSM {
			panic("fake engine crashed")
		}
		return f.pageSegMode
	}
	c.TessBaseAPIGetLoadedLanguagesAsVector = func(uintptr) **byte { return f.textArray("eng", "osd") }
	c.TessBaseAPIGetAvailableLanguagesAsVector = func(uintptr) **byte { return f.textArray() }

	c.TessBaseAPISetImage = func(_ uintptr, _ *byte, _, _, _, _ int32) { f.mu.Lock(); f.imageSet++; f.mu.Unlock() }
	c.TessBaseAPIRecognize = func(uintptr, uintptr) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.imageSet == 0 {
			return -1
		}
		f.recognized++
		return 0
	}
	c.TessBaseAPIGetUTF8Text = func(uintptr) *byte {
		text := ""
		for _, w := range f.words {
			text += w + " "
		}
		return f.text(text + "\n")
	}
	c.TessBaseAPIGetHOCRText = func(_ uintptr, page int32) *byte {
		return f.text("<div class='ocr_page' id='page_" + strconv.Itoa(int(page)+1) + "'></div>")
	}
	c.TessBaseAPIMeanTextConf = func(uintptr) int32 { return 79 }
	c.TessBaseAPIAllWordConfidences = func(uintptr) *int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		arr := append(append([]int32{}, f.confs...), -1)
		f.ints[&arr[0]] = arr
		return &arr[0]
	}

	c.TessBaseAPIGetIterator = f.newIterator
	c.TessBaseAPIGetMutableIterator = f.newIterator
	c.TessBaseAPIAnalyseLayout = f.newIterator
	c.TessPageIteratorDelete = f.delete
	c.TessResultIteratorDelete = f.delete
	c.TessResultIteratorGetPageIterator = func(it uintptr) uintptr { return it }
	c.TessPageIteratorCopy = f.copyIterator
	c.TessResultIteratorCopy = f.copyIterator
	c.TessPageIteratorBegin = func(it uintptr) { f.mu.Lock(); f.pos[it] = 0; f.mu.Unlock() }
	c.TessPageIteratorNext = f.iteratorNext
	c.TessResultIteratorNext = f.iteratorNext
	c.TessPageIteratorBoundingBox = func(it uintptr, _ int32, l, t, r, b *int32) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		p := int32(f.pos[it])
		*l, *t, *r, *b = p*10, 0, p*10+8, 12
		return 1
	}
	c.TessResultIteratorGetUTF8Text = func(it uintptr, _ int32) *byte {
		f.mu.Lock()
		w := f.words[f.pos[it]]
		f.mu.Unlock()
		return f.text(w)
	}
	c.TessResultIteratorConfidence = func(it uintptr, _ int32) float32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		return float32(f.confs[f.pos[it]])
	}
	c.TessMutableIteratorSetValue = func(it uintptr, _ int32, text *byte) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.words[f.pos[it]] = goStr(text)
		return 1
	}

	c.TessMonitorCreate = f.create
	c.TessMonitorDelete = f.delete
	c.TessMonitorSetDeadlineMSecs = func(_ uintptr, ms int32) { f.mu.Lock(); f.deadline = ms; f.mu.Unlock() }
	c.TessMonitorGetProgress = func(uintptr) int32 { return 100 }

	c.TessTextRendererCreate = func(*byte) uintptr { return f.create() }
	c.TessHOcrRendererCreate2 = func(*byte, int32) uintptr { return f.create() }
	c.TessDeleteResultRenderer = f.delete
	c.TessResultRendererInsert = func(r, next uintptr) { f.mu.Lock(); f.inserted[r] = next; f.mu.Unlock() }
	c.TessResultRendererBeginDocument = func(uintptr, *byte) int32 { f.countRendererCall(); return 1 }
	c.TessResultRendererAddImage = func(r, _ uintptr) int32 {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.rendererCalls++
		f.rendererImages[r]++
		return 1
	}
	c.TessResultRendererEndDocument = func(uintptr) int32 { f.countRendererCall(); return 1 }
	c.TessResultRendererImageNum = func(r uintptr) int32 { f.mu.Lock(); defer f.mu.Unlock(); return int32(f.rendererImages[r]) }
	return f, c
}

func (f *fakeLib) create() uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next += 0x10
	return f.next
}

func (f *fakeLib) delete(p uintptr) {
	f.mu.Lock()
	f.deleted[p]++
	f.mu.Unlock()
}

func (f *fakeLib) deletions(p uintptr) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[p]
}

func (f *fakeLib) init(lang string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lang == f.badLang {
		f.initialized = false
		return -1
	}
	f.initialized = true
	return 0
}

func (f *fakeLib) setVar(_ uintptr, name, value *byte) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := goStr(name)
	if _, ok := f.vars[n]; !ok {
		return 0
	}
	f.vars[n] = goStr(value)
	return 1
}

func (f *fakeLib) text(s string) *byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := append([]byte(s), 0)
	f.texts[&b[0]] = b
	return &b[0]
}

func (f *fakeLib) textArray(elems ...string) **byte {
	ptrs := make([]*byte, 0, len(elems)+1)
	for _, e := range elems {
		ptrs = append(ptrs, f.text(e))
	}
	ptrs = append(ptrs, nil)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrays[&ptrs[0]] = ptrs
	return &ptrs[0]
}

func (f *fakeLib) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ints) + len(f.arrays)
}

func (f *fakeLib) newIterator(uintptr) uintptr {
	f.mu.Lock()
	recognized := f.recognized > 0
	f.mu.Unlock()
	if !recognized {
		return 0
	}
	it := f.create()
	f.mu.Lock()
	f.pos[it] = 0
	f.mu.Unlock()
	return it
}

func (f *fakeLib) copyIterator(it uintptr) uintptr {
	cp := f.create()
	f.mu.Lock()
	f.pos[cp] = f.pos[it]
	f.mu.Unlock()
	return cp
}

func (f *fakeLib) iteratorNext(it uintptr, _ int32) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCalls++
	if f.pos[it]+1 >= len(f.words) {
		return 0
	}
	f.pos[it]++
	return 1
}

func (f *fakeLib) countRendererCall() {
	f.mu.Lock()
	f.rendererCalls++
	f.mu.Unlock()
}

func (f *fakeLib) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rendererCalls
}

// newTestEngine returns an initialized engine backed by a fake library.
func newTestEngine(t testing.TB) (*Engine, *fakeLib) {
	t.Helper()
	f, c := newFakeLib()
	e, err := newEngine(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Init("", "eng"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e, f
}

type fakePix struct {
	w, h, depth, wpl int32
	data             []uint32
}

// fakeLeptonica holds the images handed out by the leptonica fakes.
type fakeLeptonica struct {
	f         *fakeLib
	pixes     map[uintptr]*fakePix
	destroyed map[uintptr]int
	threshold *fakePix
	input     uintptr
}

// withLeptonica installs the optional leptonica entry points. pixReadMem "decodes"
// its input as a single row of 8 bpp pixels.
func (f *fakeLib) withLeptonica(c *capi) *fakeLeptonica {
	l := &fakeLeptonica{f: f, pixes: map[uintptr]*fakePix{}, destroyed: map[uintptr]int{}}
	get := func(pix uintptr) *fakePix {
		f.mu.Lock()
		defer f.mu.Unlock()
		return l.pixes[pix]
	}
	c.pixGetWidth = func(pix uintptr) int32 { return get(pix).w }
	c.pixGetHeight = func(pix uintptr) int32 { return get(pix).h }
	c.pixGetDepth = func(pix uintptr) int32 { return get(pix).depth }
	c.pixGetWpl = func(pix uintptr) int32 { return get(pix).wpl }
	c.pixGetData = func(pix uintptr) *uint32 { return &get(pix).data[0] }
	c.pixDestroy = func(pix *uintptr) {
		f.mu.Lock()
		l.destroyed[*pix]++
		delete(l.pixes, *pix)
		f.mu.Unlock()
		*pix = 0
	}
	c.pixReadMem = func(data *byte, size uintptr) uintptr {
		b := unsafe.Slice(data, size)
		p := &fakePix{w: int32(size), h: 1, depth: 8, wpl: int32(size+3) / 4}
		p.data = make([]uint32, p.wpl)
		for i, v := range b {
			p.data[i/4] |= uint32(v) << (24 - 8*(i%4))
		}
		return l.add(p)
	}
	c.TessBaseAPIGetThresholdedImage = func(uintptr) uintptr {
		f.mu.Lock()
		t := l.threshold
		f.mu.Unlock()
		if t == nil {
			return 0
		}
		cp := *t
		cp.data = append([]uint32(nil), t.data...)
		return l.add(&cp)
	}
	c.TessBaseAPIGetInputImage = func(uintptr) uintptr { f.mu.Lock(); defer f.mu.Unlock(); return l.input }
	c.TessBaseAPISetInputImage = func(_ uintptr, pix uintptr) { f.mu.Lock(); l.input = pix; f.mu.Unlock() }
	return l
}

func (l *fakeLeptonica) add(p *fakePix) uintptr {
	pix := l.f.create()
	l.f.mu.Lock()
	l.pixes[pix] = p
	l.f.mu.Unlock()
	return pix
}

func (l *fakeLeptonica) live() int {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	return len(l.pixes)
}

// newLeptonicaEngine is newTestEngine with the leptonica entry points available.
func newLeptonicaEngine(t *testing.T) (*Engine, *fakeLeptonica) {
	t.Helper()
	f, c := newFakeLib()
	l := f.withLeptonica(c)
	e, err := newEngine(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Init("", "eng"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e, l
}
