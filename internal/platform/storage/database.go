package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"image-pipeline-server/internal/platform/storage/migrations"
)

// Open connects to the sqlite database at dsn and applies all migrations.
// File DSNs get their parent directory created; "file:" URIs are used verbatim.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	manager := NewMigrationManager(db,
		&migrations.Migration001ImageManifests{},
		&migrations.Migration002BatchReports{},
	)
	if err := manager.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ImageManifest is the last known output map for one canonical source URL.
type ImageManifest struct {
	ID        uint           `gorm:"primaryKey"`
	SourceURL string         `gorm:"column:source_url;uniqueIndex;not null" json:"source_url"`
	Stage     string         `gorm:"not null"                               json:"stage"`
	Error     string         `                                              json:"error,omitempty"`
	Outputs   datatypes.JSON `                                              json:"outputs,omitempty"`
	UpdatedAt time.Time      `                                              json:"updated_at"`
}

// BatchReport is a persisted batch report.
type BatchReport struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Succeeded int            `                                   json:"succeeded"`
	Failed    int            `                                   json:"failed"`
	Items     datatypes.JSON `gorm:"not null"                    json:"items"`
	CreatedAt time.Time      `                                   json:"created_at"`
	ExpiresAt *time.Time     `                                   json:"expires_at,omitempty"`
}
