package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/johbar/ocr-service/internal/cache"
	"github.com/johbar/ocr-service/internal/config"
	"github.com/johbar/ocr-service/internal/recognizer"
)

// PrintMetadataAndTextToStdout prints an image's metadata (as JSON) on the first line, followed by its text.
// When path is "-", the image will be read from Stdin. Returns the process exit code.
func PrintMetadataAndTextToStdout(conf *config.OcrConfig, path string) int {
	var stream io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			logger.Error("Could not open file", "err", err)
			return 1
		}
		defer f.Close()
		stream = f
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		logger.Error("Could not read image", "path", path, "err", err)
		return 1
	}
	conf.PoolSize = 1
	ocr, err := recognizer.New(conf, cache.NopCache{}, logger)
	if err != nil {
		logger.Error("Tesseract could not be initialized", "err", err)
		return 1
	}
	defer ocr.Close(context.Background())
	res, err := ocr.Recognize(context.Background(), data, recognizer.Options{Format: os.Getenv("OCR_FORMAT")})
	if err != nil {
		logger.Error("Could not process image", "path", path, "err", err)
		return 2
	}
	meta, _ := json.Marshal(res.Metadata())
	os.Stdout.Write(meta)
	fmt.Println()
	fmt.Println(res.Text)
	return 0
}
