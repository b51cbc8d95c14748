package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"image-pipeline-server/internal/platform/config"
	"image-pipeline-server/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a SQLite-backed manifest store on a migrated database.
func NewSQLite(db *gorm.DB, cfg config.ManifestConfig) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{
		db:  db,
		ttl: cfg.TTL,
	}, nil
}

func (s *sqliteStore) SaveImage(ctx context.Context, rec ImageRecord) error {
	if rec.SourceURL == "" {
		return fmt.Errorf("source url required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	outputs, err := json.Marshal(rec.Outputs)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_url = ?", rec.SourceURL).Delete(&storage.ImageManifest{}).Error; err != nil {
			return err
		}
		return tx.Create(&storage.ImageManifest{
			SourceURL: rec.SourceURL,
			Stage:     rec.Stage,
			Error:     rec.Error,
			Outputs:   outputs,
			UpdatedAt: rec.UpdatedAt,
		}).Error
	})
}

func (s *sqliteStore) GetImage(ctx context.Context, sourceURL string) (ImageRecord, error) {
	var row storage.ImageManifest
	err := s.db.WithContext(ctx).Where("source_url = ?", sourceURL).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ImageRecord{}, ErrNotFound
	}
	if err != nil {
		return ImageRecord{}, err
	}

	rec := ImageRecord{
		SourceURL: row.SourceURL,
		Stage:     row.Stage,
		Error:     row.Error,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Outputs) > 0 {
		if err := json.Unmarshal(row.Outputs, &rec.Outputs); err != nil {
			return ImageRecord{}, fmt.Errorf("decode outputs for %s: %w", sourceURL, err)
		}
	}
	return rec, nil
}

func (s *sqliteStore) SaveBatch(ctx context.Context, rec BatchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("batch id required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}
	row := &storage.BatchReport{
		ID:        rec.ID,
		Succeeded: rec.Succeeded,
		Failed:    rec.Failed,
		Items:     items,
		CreatedAt: rec.CreatedAt,
	}
	if s.ttl > 0 {
		exp := rec.CreatedAt.Add(s.ttl)
		row.ExpiresAt = &exp
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", rec.ID).Delete(&storage.BatchReport{}).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
}

func (s *sqliteStore) GetBatch(ctx context.Context, id string) (BatchRecord, error) {
	var row storage.BatchReport
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BatchRecord{}, ErrNotFound
	}
	if err != nil {
		return BatchRecord{}, err
	}
	if row.ExpiresAt != nil && time.Now().After(*row.ExpiresAt) {
		_ = s.db.WithContext(ctx).Where("id = ?", id).Delete(&storage.BatchReport{}).Error
		return BatchRecord{}, ErrNotFound
	}

	rec := BatchRecord{
		ID:        row.ID,
		Succeeded: row.Succeeded,
		Failed:    row.Failed,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Items, &rec.Items); err != nil {
		return BatchRecord{}, fmt.Errorf("decode batch %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var images, batches int64
	if err := s.db.WithContext(ctx).Model(&storage.ImageManifest{}).Count(&images).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&storage.BatchReport{}).Count(&batches).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":    DriverSQLite,
		"images":  images,
		"batches": batches,
		"ttl":     int(s.ttl.Seconds()),
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}
