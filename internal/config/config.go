package config

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/johbar/ocr-service/pkg/tesseract"
	"go-simpler.org/env"
)

// OcrConfig represents the configuration of this service
type OcrConfig struct {
	// Name of the object store bucket in NATS caching recognition results
	Bucket string `env:"OCR_BUCKET" default:"OCR_RESULTS"`
	// Add source info to log statements. Default: false
	Debug bool `env:"OCR_DEBUG" default:"false"`
	// If true, join dehyphenated lines with spaces instead of newlines
	JoinLines bool `env:"OCR_JOIN_LINES" default:"false"`
	// Remove hyphens at line ends from plain text results
	Dehyphenate bool `env:"OCR_DEHYPHENATE" default:"true"`
	// whether to expose the embedded NATS server to other clients. Default: false
	ExposeNats bool `env:"OCR_EXPOSE_NATS" default:"false"`
	// If true the service exits with an error if NATS or JetStream can't be connected
	FailWithoutJetstream bool `env:"OCR_FAIL_WITHOUT_JS" default:"false"`
	// Comma separated list of language codes joined by `+`, e.g. "eng" or "deu+eng"
	Langs string `env:"OCR_LANGS" default:"eng"`
	// Path of libtesseract; empty to search the platform's default locations
	LibPath string `env:"OCR_LIB_PATH"`
	// Log level (DEBUG, INFO, WARN, ERROR)
	LogLevelStr string `env:"OCR_LOG_LEVEL" default:"INFO"`
	LogLevel    slog.Level
	// Maximum size of an encoded image
	MaxImageSize      string `env:"OCR_MAX_IMAGE_SIZE" default:"20MiB"`
	MaxImageSizeBytes uint64
	// Maximum number of pixels of a decoded image, e.g. "40M". 0 disables the limit
	MaxPixels     string `env:"OCR_MAX_PIXELS" default:"40M"`
	MaxPixelCount int
	// NATS max msg size (embedded server only)
	NatsMaxPayload int32 `env:"OCR_MAX_PAYLOAD" default:"8388608"`
	// embedded NATS server storage location. Default: /tmp/nats
	NatsStoreDir string `env:"OCR_NATS_STORE_DIR"`
	// embedded NATS server host/ip address, if exposed
	NatsHost string `env:"OCR_NATS_HOST" default:"localhost"`
	NatsPort int    `env:"OCR_NATS_PORT" default:"4222"`
	// External NATS URL, e.g. nats://localhost:4222; empty for no NATS or the embedded server
	NatsUrl            string        `env:"OCR_NATS_URL"`
	NatsTimeout        time.Duration `env:"OCR_NATS_TIMEOUT" default:"15s"`
	NatsConnectRetries int           `env:"OCR_NATS_CONNECT_RETRIES" default:"10"`
	// Start an embedded NATS server (needs the embed_nats build tag)
	EmbedNats bool `env:"OCR_EMBED_NATS" default:"false"`
	// if true, disable the HTTP server in favor of the NATS micro service
	NoHttp bool `env:"OCR_NO_HTTP" default:"false"`
	// OCR engine mode, see tesseract --help-oem
	OemStr string `env:"OCR_OEM" default:"default"`
	Oem    tesseract.OcrEngineMode
	// Default page segmentation mode, see tesseract --help-psm
	PsmStr string `env:"OCR_PSM" default:"auto"`
	Psm    tesseract.PageSegMode
	// Size of each off-heap pixel buffer; larger images are decoded into heap memory
	PixelBufferSize      string `env:"OCR_PIXEL_BUFFER_SIZE" default:"64MiB"`
	PixelBufferSizeBytes uint64
	// Number of initialized engines per language combination. 0 means GOMAXPROCS
	PoolSize int `env:"OCR_POOL_SIZE" default:"0"`
	// Recognitions per second over all clients. 0 disables the limit
	RateLimit float64 `env:"OCR_RATE_LIMIT" default:"0"`
	RateBurst int     `env:"OCR_RATE_BURST" default:"4"`
	// Upper bound of a single recognition
	RecognizeTimeout time.Duration `env:"OCR_RECOGNIZE_TIMEOUT" default:"60s"`
	// How many replicas of the bucket to create
	Replicas int `env:"OCR_REPLICAS" default:"1"`
	// HTTP listen address and/or port. Default: ':8080'
	SrvAddr string `env:"OCR_HOST_PORT" default:":8080"`
	// Directory containing the traineddata files; empty to use TESSDATA_PREFIX
	Tessdata string `env:"OCR_TESSDATA"`
	// Tesseract variables applied to every engine, e.g. "user_defined_dpi=300,preserve_interword_spaces=1"
	VariablesStr string `env:"OCR_VARIABLES"`
	Variables    map[string]string
}

// NewOcrConfigFromEnv returns a service config object
// populated with defaults and values from environment vars
func NewOcrConfigFromEnv() (*OcrConfig, error) {
	var cfg OcrConfig
	if err := env.Load(&cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve parses the string valued settings into their typed counterparts.
func (cfg *OcrConfig) resolve() error {
	if err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelStr)); err != nil {
		return fmt.Errorf("parsing log level from env: %w", err)
	}
	maxSize, err := humanize.ParseBytes(cfg.MaxImageSize)
	if err != nil {
		return fmt.Errorf("parsing max image size from env: %w", err)
	}
	cfg.MaxImageSizeBytes = maxSize
	maxPixels, unit, err := humanize.ParseSI(cfg.MaxPixels)
	if err != nil || unit != "" || maxPixels < 0 {
		return fmt.Errorf("parsing max pixels from env: %q is not a pixel count", cfg.MaxPixels)
	}
	cfg.MaxPixelCount = int(maxPixels)
	bufSize, err := humanize.ParseBytes(cfg.PixelBufferSize)
	if err != nil {
		return fmt.Errorf("parsing pixel buffer size from env: %w", err)
	}
	cfg.PixelBufferSizeBytes = bufSize
	if cfg.Oem, err = tesseract.ParseOcrEngineMode(cfg.OemStr); err != nil {
		return fmt.Errorf("parsing engine mode from env: %w", err)
	}
	if cfg.Psm, err = tesseract.ParsePageSegMode(cfg.PsmStr); err != nil {
		return fmt.Errorf("parsing page segmentation mode from env: %w", err)
	}
	if cfg.Variables, err = ParseVariables(cfg.VariablesStr); err != nil {
		return fmt.Errorf("parsing variables from env: %w", err)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.GOMAXPROCS(0)
	}
	if cfg.Langs = strings.TrimSpace(cfg.Langs); cfg.Langs == "" {
		cfg.Langs = "eng"
	}
	return nil
}

// ParseVariables parses "name=value" pairs separated by commas.
func ParseVariables(s string) (map[string]string, error) {
	vars := map[string]string{}
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q, want name=value", pair)
		}
		vars[name] = strings.TrimSpace(value)
	}
	return vars, nil
}
