//go:build !embed_nats

package nats

import (
	"github.com/johbar/ocr-service/internal/config"
	"github.com/nats-io/nats.go"
)

const NatsEmbedded bool = false

func ConnectToEmbeddedNatsServer(_ config.OcrConfig) (*nats.Conn, error) {
	return nil, errNatsNotEmbedded
}
