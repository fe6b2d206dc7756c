package nats

import (
	"errors"
	"log/slog"
	"time"

	"github.com/johbar/ocr-service/internal/config"
	"github.com/nats-io/nats.go"
)

var errNatsNotEmbedded = errors.New("NATS has not been embedded in this build")

// SetupNatsConnection connects to the external NATS server(s) configured by OCR_NATS_URL,
// retrying up to OCR_NATS_CONNECT_RETRIES times.
func SetupNatsConnection(conf config.OcrConfig, log *slog.Logger) (*nats.Conn, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	for attempts := 1; ; attempts++ {
		log.Info("Try connecting to NATS", "url", conf.NatsUrl, "timeoutSecs", conf.NatsTimeout.Seconds(), "count", attempts)
		nc, err := nats.Connect(conf.NatsUrl, nats.Name("ocr-service"), nats.Timeout(conf.NatsTimeout))
		if err == nil {
			return nc, nil
		}
		log.Error("Connecting to NATS failed",
			"url", conf.NatsUrl,
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		if attempts > conf.NatsConnectRetries {
			return nil, err
		}
		time.Sleep(time.Second)
	}
}
