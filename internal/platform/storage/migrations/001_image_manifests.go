package migrations

import (
	"gorm.io/gorm"
)

// Migration001ImageManifests creates the per-source manifest table.
type Migration001ImageManifests struct{}

func (m *Migration001ImageManifests) Version() string {
	return "001_image_manifests"
}

func (m *Migration001ImageManifests) Description() string {
	return "Create image manifest table keyed by canonical source URL"
}

func (m *Migration001ImageManifests) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS image_manifests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_url VARCHAR(2048) NOT NULL UNIQUE,
			stage VARCHAR(64) NOT NULL,
			error TEXT,
			outputs JSON,
			updated_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_image_manifests_updated_at ON image_manifests(updated_at)`).Error
}

func (m *Migration001ImageManifests) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS image_manifests`).Error
}
