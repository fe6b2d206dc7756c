// Package recognizer serves OCR requests over HTTP and NATS.
package recognizer

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/johbar/ocr-service/internal/cache"
	"github.com/johbar/ocr-service/internal/config"
	"github.com/johbar/ocr-service/internal/enginepool"
	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/pkg/dehyphenator"
	"github.com/johbar/ocr-service/pkg/pixpool"
	"github.com/johbar/ocr-service/pkg/tesseract"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

const (
	FormatText = "text"
	FormatHOCR = "hocr"
	FormatAlto = "alto"
	FormatTSV  = "tsv"
	FormatBox  = "box"
	FormatUNLV = "unlv"

	whitelistVar = "tessedit_char_whitelist"
	// language combinations with their own engine pool
	maxPools = 16
)

var (
	ErrInvalidOptions  = errors.New("invalid options")
	ErrTooLarge        = errors.New("image too large")
	ErrUnknownLanguage = errors.New("language not available")
	ErrTooManyPools    = errors.New("too many language combinations in use")
	ErrClosed          = errors.New("recognizer closed")
)

var (
	requests   = expvar.NewInt("ocrRequests")
	cacheHits  = expvar.NewInt("ocrCacheHits")
	failures   = expvar.NewInt("ocrFailures")
	poolsInUse = expvar.NewInt("ocrEnginePools")
)

// Options select the output and tune recognition of a single request.
// Empty values fall back to the service configuration.
type Options struct {
	Format    string `form:"format" json:"format,omitempty" validate:"omitempty,oneof=text hocr alto tsv box unlv"`
	Langs     string `form:"langs" json:"langs,omitempty" validate:"omitempty,max=128"`
	PSM       string `form:"psm" json:"psm,omitempty" validate:"omitempty,max=32"`
	Whitelist string `form:"whitelist" json:"whitelist,omitempty" validate:"max=1024"`
	NoCache   bool   `form:"noCache" json:"noCache,omitempty"`
}

// Result of recognizing one image.
type Result struct {
	Text            string `json:"text"`
	Format          string `json:"format"`
	MimeType        string `json:"mimeType"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Langs           string `json:"langs"`
	PSM             string `json:"psm"`
	MeanConfidence  int    `json:"meanConfidence"`
	WordConfidences []int  `json:"wordConfidences"`
	Cached          bool   `json:"cached"`
}

// Metadata returns the result's properties without the text.
func (r *Result) Metadata() map[string]string {
	return map[string]string{
		"format":         r.Format,
		"mimeType":       r.MimeType,
		"width":          strconv.Itoa(r.Width),
		"height":         strconv.Itoa(r.Height),
		"langs":          r.Langs,
		"psm":            r.PSM,
		"meanConfidence": strconv.Itoa(r.MeanConfidence),
		"cached":         strconv.FormatBool(r.Cached),
	}
}

type saveJob struct {
	key    string
	result *Result
}

// Recognizer runs OCR on images with pooled engines.
type Recognizer struct {
	conf      *config.OcrConfig
	cache     cache.Cache
	pixels    *pixpool.Pool
	limiter   *rate.Limiter
	validate  *validator.Validate
	log       *slog.Logger
	newEngine func(ctx context.Context, langs string) (*tesseract.Engine, error)
	saveChan  chan saveJob
	saved     sync.WaitGroup

	// state guards closed and saveClosed; inflight counts running requests
	state      sync.RWMutex
	closed     bool
	saveClosed bool
	inflight   sync.WaitGroup
	closeOnce  sync.Once

	mu        sync.Mutex
	pools     map[string]*enginepool.Pool[*tesseract.Engine]
	available []string
}

// New loads libtesseract, checks that the configured languages can be initialized
// and returns a ready Recognizer.
func New(conf *config.OcrConfig, c cache.Cache, logger *slog.Logger) (*Recognizer, error) {
	if _, err := tesseract.InitLib(conf.LibPath); err != nil {
		return nil, err
	}
	r := newRecognizer(conf, c, logger)
	first, err := r.newEngine(context.Background(), conf.Langs)
	if err != nil {
		r.Close(context.Background())
		return nil, err
	}
	defer first.Close()
	if r.available, err = first.AvailableLanguages(); err != nil {
		r.Close(context.Background())
		return nil, err
	}
	r.log.Info("Tesseract initialized", "langs", conf.Langs, "available", r.available)
	return r, nil
}

func newRecognizer(conf *config.OcrConfig, c cache.Cache, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = cache.NopCache{}
	}
	r := &Recognizer{
		conf:     conf,
		cache:    c,
		pixels:   pixpool.New(max(int(conf.PixelBufferSizeBytes), 1<<20), conf.PoolSize, logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger,
		saveChan: make(chan saveJob, 100),
		pools:    map[string]*enginepool.Pool[*tesseract.Engine]{},
	}
	r.newEngine = r.initEngine
	if conf.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), max(conf.RateBurst, 1))
	}
	r.saved.Add(1)
	go r.saveResults()
	return r
}

func (r *Recognizer) initEngine(_ context.Context, langs string) (*tesseract.Engine, error) {
	e, err := tesseract.New()
	if err != nil {
		return nil, err
	}
	if err := e.Init4(r.conf.Tessdata, langs, r.conf.Oem, nil, r.conf.Variables, false); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.SetPageSegMode(r.conf.Psm); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// resetEngine undoes the per request settings.
func (r *Recognizer) resetEngine(e *tesseract.Engine) error {
	if err := e.Clear(); err != nil {
		return err
	}
	if err := e.SetPageSegMode(r.conf.Psm); err != nil {
		return err
	}
	return e.SetVariable(whitelistVar, r.conf.Variables[whitelistVar])
}

// Languages returns the default language combination and all installed languages.
func (r *Recognizer) Languages() (string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conf.Langs, slices.Clone(r.available)
}

func (r *Recognizer) checkLangs(langs string) error {
	if langs == r.conf.Langs {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for lang := range strings.SplitSeq(langs, "+") {
		if !slices.Contains(r.available, lang) {
			return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
		}
	}
	return nil
}

func (r *Recognizer) pool(langs string) (*enginepool.Pool[*tesseract.Engine], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[langs]; ok {
		return p, nil
	}
	if len(r.pools) >= maxPools {
		return nil, ErrTooManyPools
	}
	p, err := enginepool.New(context.Background(), enginepool.Config[*tesseract.Engine]{
		Name:  langs,
		Size:  r.conf.PoolSize,
		New:   func(ctx context.Context) (*tesseract.Engine, error) { return r.newEngine(ctx, langs) },
		Reset: r.resetEngine,
	}, r.log)
	if err != nil {
		return nil, err
	}
	r.pools[langs] = p
	poolsInUse.Add(1)
	return p, nil
}

// resolved are the effective options of a request.
type resolved struct {
	format    string
	langs     string
	psm       tesseract.PageSegMode
	whitelist string
}

func (r *Recognizer) resolve(opts Options) (resolved, error) {
	if err := r.validate.Struct(opts); err != nil {
		return resolved{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	res := resolved{format: opts.Format, langs: opts.Langs, psm: r.conf.Psm, whitelist: opts.Whitelist}
	if res.format == "" {
		res.format = FormatText
	}
	if res.langs == "" {
		res.langs = r.conf.Langs
	}
	if err := r.checkLangs(res.langs); err != nil {
		return resolved{}, err
	}
	if opts.PSM != "" {
		psm, err := tesseract.ParsePageSegMode(opts.PSM)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		res.psm = psm
	}
	return res, nil
}

func (o resolved) cacheParams() map[string]string {
	return map[string]string{"format": o.format, "langs": o.langs, "psm": o.psm.String(), "whitelist": o.whitelist}
}

// Recognize runs OCR on an encoded image.
// It fails with ErrClosed once Close has been called.
func (r *Recognizer) Recognize(ctx context.Context, data []byte, opts Options) (*Result, error) {
	requests.Add(1)
	if !r.begin() {
		failures.Add(1)
		return nil, ErrClosed
	}
	defer r.inflight.Done()
	res, err := r.recognize(ctx, data, opts)
	if err != nil {
		failures.Add(1)
	}
	return res, err
}

func (r *Recognizer) recognize(ctx context.Context, data []byte, opts Options) (*Result, error) {
	o, err := r.resolve(opts)
	if err != nil {
		return nil, err
	}
	if r.conf.MaxImageSizeBytes > 0 && uint64(len(data)) > r.conf.MaxImageSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	key := cache.Key(data, o.cacheParams())
	if !opts.NoCache {
		if res := r.cached(ctx, key); res != nil {
			return res, nil
		}
	}
	px, err := imageparser.Decode(data, r.pixels, r.conf.MaxPixelCount)
	if err != nil {
		return nil, err
	}
	defer px.Release()

	ctx, cancel := context.WithTimeout(ctx, r.conf.RecognizeTimeout)
	defer cancel()
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	p, err := r.pool(o.langs)
	if err != nil {
		return nil, err
	}
	e, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	res, err := r.run(ctx, e, px, o)
	if err != nil {
		// the engine's state is unknown after a failed or aborted recognition
		p.Discard(context.Background(), e)
		return nil, err
	}
	p.Put(context.Background(), e)
	r.enqueueSave(saveJob{key: key, result: res})
	return res, nil
}

func (r *Recognizer) begin() bool {
	r.state.RLock()
	defer r.state.RUnlock()
	if r.closed {
		return false
	}
	r.inflight.Add(1)
	return true
}

func (r *Recognizer) enqueueSave(job saveJob) {
	r.state.RLock()
	defer r.state.RUnlock()
	if r.saveClosed {
		return
	}
	select {
	case r.saveChan <- job:
	default:
		r.log.Warn("Cache write queue full, result not cached", "key", job.key)
	}
}

func (r *Recognizer) run(ctx context.Context, e *tesseract.Engine, px *imageparser.Pixels, o resolved) (*Result, error) {
	if err := e.SetImage(px.Data, px.Width, px.Height, px.BytesPerPixel, px.BytesPerLine); err != nil {
		return nil, err
	}
	if err := e.SetPageSegMode(o.psm); err != nil {
		return nil, err
	}
	if o.whitelist != "" {
		if err := e.SetVariable(whitelistVar, o.whitelist); err != nil {
			return nil, err
		}
	}
	if err := e.RecognizeContext(ctx, nil); err != nil {
		return nil, err
	}
	text, err := render(e, o.format)
	if err != nil {
		return nil, err
	}
	if o.format == FormatText && r.conf.Dehyphenate {
		text = dehyphenator.String(text, dehyphenator.Options{JoinLines: r.conf.JoinLines})
	}
	res := &Result{
		Text:     norm.NFC.String(text),
		Format:   o.format,
		MimeType: px.MimeType,
		Width:    px.Width,
		Height:   px.Height,
		Langs:    o.langs,
		PSM:      o.psm.String(),
	}
	if res.MeanConfidence, err = e.MeanTextConf(); err != nil {
		return nil, err
	}
	if res.WordConfidences, err = e.AllWordConfidences(); err != nil {
		return nil, err
	}
	return res, nil
}

func render(e *tesseract.Engine, format string) (string, error) {
	switch format {
	case FormatHOCR:
		return e.HOCRText(0)
	case FormatAlto:
		return e.AltoText(0)
	case FormatTSV:
		return e.TSVText(0)
	case FormatBox:
		return e.BoxText(0)
	case FormatUNLV:
		return e.UNLVText()
	default:
		return e.UTF8Text()
	}
}

func (r *Recognizer) cached(ctx context.Context, key string) *Result {
	entry, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn("Reading from cache failed", "key", key, "err", err)
		return nil
	}
	if entry == nil {
		return nil
	}
	var res Result
	if err := json.Unmarshal(entry.Data, &res); err != nil {
		r.log.Warn("Cached result is corrupt", "key", key, "err", err)
		return nil
	}
	res.Cached = true
	cacheHits.Add(1)
	r.log.Debug("Result served from cache", "key", key)
	return &res
}

func (r *Recognizer) saveResults() {
	defer r.saved.Done()
	for job := range r.saveChan {
		data, err := json.Marshal(job.result)
		if err != nil {
			r.log.Error("Encoding result failed", "err", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = r.cache.Put(ctx, job.key, cache.Entry{Data: data, Metadata: job.result.Metadata()})
		cancel()
		if err != nil {
			r.log.Warn("Could not save result to cache", "key", job.key, "err", err)
		}
	}
}

// Close rejects new requests, waits for running ones until ctx is done,
// flushes pending cache writes and closes all engines. Calling Close again is a no-op.
func (r *Recognizer) Close(ctx context.Context) {
	r.closeOnce.Do(func() { r.close(ctx) })
}

func (r *Recognizer) close(ctx context.Context) {
	r.state.Lock()
	r.closed = true
	r.state.Unlock()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("Closing recognizer while requests are still running", "err", ctx.Err())
	}

	r.state.Lock()
	r.saveClosed = true
	close(r.saveChan)
	r.state.Unlock()
	r.saved.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	for langs, p := range r.pools {
		p.Close(ctx)
		delete(r.pools, langs)
		poolsInUse.Add(-1)
	}
	r.pixels.Free()
}
