// Package cache stores recognition results so identical requests are not recognized twice.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// Entry is a cached result. Metadata holds small string values stored next to the payload.
type Entry struct {
	Data     []byte
	Metadata map[string]string
}

type Cache interface {
	// Get returns nil and no error if key is not cached.
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, e Entry) error
}

// Key derives a cache key from the image and everything that influences its recognition.
func Key(image []byte, params map[string]string) string {
	h := sha256.New()
	h.Write(image)
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Entry, error) {
	return nil, nil
}

func (NopCache) Put(context.Context, string, Entry) error {
	return nil
}

// MemoryCache keeps entries in a map. It is meant for tests and one-shot runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]Entry{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.Clone(key)] = e
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
