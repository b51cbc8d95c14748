package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"image-pipeline-server/internal/platform/config"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed manifest store and pings the server.
func NewRedis(cfg config.ManifestConfig) (Store, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "pipeline:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (s *redisStore) imageKey(sourceURL string) string {
	return s.prefix + "image:" + sourceURL
}

func (s *redisStore) batchKey(id string) string {
	return s.prefix + "batch:" + id
}

func (s *redisStore) SaveImage(ctx context.Context, rec ImageRecord) error {
	if rec.SourceURL == "" {
		return fmt.Errorf("source url required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// image records never expire, matching the stored artifacts
	return s.client.Set(ctx, s.imageKey(rec.SourceURL), data, 0).Err()
}

func (s *redisStore) GetImage(ctx context.Context, sourceURL string) (ImageRecord, error) {
	var rec ImageRecord
	if err := s.get(ctx, s.imageKey(sourceURL), &rec); err != nil {
		return ImageRecord{}, err
	}
	return rec, nil
}

func (s *redisStore) SaveBatch(ctx context.Context, rec BatchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("batch id required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.batchKey(rec.ID), data, s.ttl).Err()
}

func (s *redisStore) GetBatch(ctx context.Context, id string) (BatchRecord, error) {
	var rec BatchRecord
	if err := s.get(ctx, s.batchKey(id), &rec); err != nil {
		return BatchRecord{}, err
	}
	return rec, nil
}

func (s *redisStore) get(ctx context.Context, key string, out any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	size, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  DriverRedis,
		"total": size,
		"ttl":   int(s.ttl.Seconds()),
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
