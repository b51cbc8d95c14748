package migrations

import (
	"gorm.io/gorm"
)

// Migration002BatchReports stores batch outcomes for later lookup.
type Migration002BatchReports struct{}

func (m *Migration002BatchReports) Version() string {
	return "002_batch_reports"
}

func (m *Migration002BatchReports) Description() string {
	return "Create batch report table"
}

func (m *Migration002BatchReports) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS batch_reports (
			id VARCHAR(64) PRIMARY KEY,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			items JSON NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME
		)
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_batch_reports_expires_at ON batch_reports(expires_at)`).Error
}

func (m *Migration002BatchReports) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS batch_reports`).Error
}
