package manifest

import (
	"context"
	"errors"
	"time"

	"image-pipeline-server/internal/domain/eventbus"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("manifest: record not found")

// ImageRecord is the last known state of one canonical source URL.
type ImageRecord struct {
	SourceURL string            `json:"source_url"`
	Stage     string            `json:"stage"`
	Error     string            `json:"error,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BatchRecord is a stored batch report.
type BatchRecord struct {
	ID        string               `json:"id"`
	Items     []eventbus.BatchItem `json:"items"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store persists manifests. Saving an image record replaces the previous one
// for the same source URL.
type Store interface {
	SaveImage(ctx context.Context, rec ImageRecord) error
	GetImage(ctx context.Context, sourceURL string) (ImageRecord, error)
	SaveBatch(ctx context.Context, rec BatchRecord) error
	GetBatch(ctx context.Context, id string) (BatchRecord, error)
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

const defaultTTL = 24 * time.Hour
