package manifest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"image-pipeline-server/internal/platform/config"
)

const memoryCapacity = 100_000

type memoryStore struct {
	images  *ttlcache.Cache[string, ImageRecord]
	batches *ttlcache.Cache[string, BatchRecord]
	ttl     time.Duration
	stop    sync.Once
}

// NewMemory builds an in-process store. Image records live until evicted by
// capacity; batch records expire after cfg.TTL.
func NewMemory(cfg config.ManifestConfig) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &memoryStore{
		images: ttlcache.New[string, ImageRecord](
			ttlcache.WithCapacity[string, ImageRecord](memoryCapacity),
		),
		batches: ttlcache.New[string, BatchRecord](
			ttlcache.WithTTL[string, BatchRecord](ttl),
			ttlcache.WithCapacity[string, BatchRecord](memoryCapacity),
		),
		ttl: ttl,
	}
	go s.batches.Start()
	return s
}

func (s *memoryStore) SaveImage(_ context.Context, rec ImageRecord) error {
	if rec.SourceURL == "" {
		return fmt.Errorf("source url required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	s.images.Set(rec.SourceURL, rec, ttlcache.NoTTL)
	return nil
}

func (s *memoryStore) GetImage(_ context.Context, sourceURL string) (ImageRecord, error) {
	item := s.images.Get(sourceURL)
	if item == nil {
		return ImageRecord{}, ErrNotFound
	}
	return item.Value(), nil
}

func (s *memoryStore) SaveBatch(_ context.Context, rec BatchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("batch id required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.batches.Set(rec.ID, rec, ttlcache.DefaultTTL)
	return nil
}

func (s *memoryStore) GetBatch(_ context.Context, id string) (BatchRecord, error) {
	item := s.batches.Get(id)
	if item == nil {
		return BatchRecord{}, ErrNotFound
	}
	return item.Value(), nil
}

func (s *memoryStore) Stats(context.Context) (map[string]any, error) {
	return map[string]any{
		"type":    DriverMemory,
		"images":  s.images.Len(),
		"batches": s.batches.Len(),
		"ttl":     int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	s.stop.Do(s.batches.Stop)
	return nil
}
