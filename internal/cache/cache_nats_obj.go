package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/johbar/ocr-service/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ObjectStoreCache keeps results in a NATS JetStream object store bucket.
// Objects are named by their cache key.
type ObjectStoreCache struct {
	store jetstream.ObjectStore
	log   *slog.Logger
}

func New(conf config.OcrConfig, log *slog.Logger, nc *nats.Conn) (*ObjectStoreCache, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if nc == nil {
		return nil, errors.New("no connection to NATS")
	}
	js, err := setupJetstream(conf, nc, log)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      conf.Bucket,
		Description: "OCR results",
		Storage:     jetstream.FileStorage,
		Compression: true,
		Replicas:    conf.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing NATS object store %s: %w", conf.Bucket, err)
	}
	log.Info("NATS object store initialized.", "bucket", conf.Bucket)
	return &ObjectStoreCache{store: store, log: log}, nil
}

func setupJetstream(conf config.OcrConfig, nc *nats.Conn, log *slog.Logger) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("initializing NATS JetStream: %w", err)
	}
	for attempts := 0; attempts <= conf.NatsConnectRetries; attempts++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err = js.AccountInfo(ctx)
		cancel()
		if err == nil {
			return js, nil
		}
		if errors.Is(err, jetstream.ErrJetStreamNotEnabled) || errors.Is(err, jetstream.ErrJetStreamNotEnabledForAccount) {
			return nil, err
		}
		log.Error("NATS JetStream check failed. Is JetStream enabled in external NATS server(s)?",
			"err", err,
			"count", attempts,
			"maxRetries", conf.NatsConnectRetries)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("retry count exceeded: %w", err)
}

func (c *ObjectStoreCache) Get(ctx context.Context, key string) (*Entry, error) {
	info, err := c.store.GetInfo(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving object info for %s: %w", key, err)
	}
	data, err := c.store.GetBytes(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		// deleted in between
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving object %s from object store: %w", key, err)
	}
	return &Entry{Data: data, Metadata: info.Metadata}, nil
}

func (c *ObjectStoreCache) Put(ctx context.Context, key string, e Entry) error {
	meta := jetstream.ObjectMeta{Name: key, Metadata: e.Metadata}
	info, err := c.store.Put(ctx, meta, bytes.NewReader(e.Data))
	if err != nil {
		return fmt.Errorf("saving %s in object store: %w", key, err)
	}
	c.log.Debug("Result saved in NATS object store", "key", key, "chunks", info.Chunks, "size", info.Size)
	return nil
}
