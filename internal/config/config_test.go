package config

import (
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/johbar/ocr-service/pkg/tesseract"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewOcrConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Langs != "eng" {
		t.Errorf("got langs %q", cfg.Langs)
	}
	if cfg.Psm != tesseract.PSMAuto || cfg.Oem != tesseract.OEMDefault {
		t.Errorf("got psm %v, oem %v", cfg.Psm, cfg.Oem)
	}
	if cfg.MaxImageSizeBytes != 20*1024*1024 {
		t.Errorf("got max image size %d", cfg.MaxImageSizeBytes)
	}
	if cfg.MaxPixelCount != 40_000_000 {
		t.Errorf("got max pixels %d", cfg.MaxPixelCount)
	}
	if cfg.PoolSize != runtime.GOMAXPROCS(0) {
		t.Errorf("got pool size %d", cfg.PoolSize)
	}
	if cfg.RecognizeTimeout != time.Minute {
		t.Errorf("got timeout %v", cfg.RecognizeTimeout)
	}
	if len(cfg.Variables) != 0 {
		t.Errorf("got variables %v", cfg.Variables)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OCR_LANGS", "deu+eng")
	t.Setenv("OCR_PSM", "6")
	t.Setenv("OCR_OEM", "lstm_only")
	t.Setenv("OCR_LOG_LEVEL", "debug")
	t.Setenv("OCR_PIXEL_BUFFER_SIZE", "8MB")
	t.Setenv("OCR_POOL_SIZE", "3")
	t.Setenv("OCR_MAX_PIXELS", "2.5k")
	t.Setenv("OCR_VARIABLES", "user_defined_dpi=300, preserve_interword_spaces=1")
	cfg, err := NewOcrConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Langs != "deu+eng" || cfg.Psm != tesseract.PSMSingleBlock || cfg.Oem != tesseract.OEMLSTMOnly {
		t.Errorf("got %q, %v, %v", cfg.Langs, cfg.Psm, cfg.Oem)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("got level %v", cfg.LogLevel)
	}
	if cfg.PixelBufferSizeBytes != 8_000_000 {
		t.Errorf("got buffer size %d", cfg.PixelBufferSizeBytes)
	}
	if cfg.MaxPixelCount != 2500 {
		t.Errorf("got max pixels %d", cfg.MaxPixelCount)
	}
	if cfg.PoolSize != 3 {
		t.Errorf("got pool size %d", cfg.PoolSize)
	}
	if cfg.Variables["user_defined_dpi"] != "300" || cfg.Variables["preserve_interword_spaces"] != "1" {
		t.Errorf("got variables %v", cfg.Variables)
	}
}

func TestInvalidEnv(t *testing.T) {
	tests := map[string]string{
		"OCR_PSM":            "columns",
		"OCR_OEM":            "7",
		"OCR_LOG_LEVEL":      "loud",
		"OCR_MAX_IMAGE_SIZE": "big",
		"OCR_MAX_PIXELS":     "40 megapixels",
		"OCR_VARIABLES":      "novalue",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := NewOcrConfigFromEnv(); err == nil {
				t.Errorf("%s=%s accepted", key, value)
			}
		})
	}
}

func TestParseVariables(t *testing.T) {
	vars, err := ParseVariables("a=1,,b = x=y ,")
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 2 || vars["a"] != "1" || vars["b"] != "x=y" {
		t.Errorf("got %v", vars)
	}
	if _, err := ParseVariables("=1"); err == nil {
		t.Error("empty name accepted")
	}
}
