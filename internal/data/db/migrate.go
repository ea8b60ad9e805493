package db

import (
	"fmt"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.UserProfile{},
		&types.Report{},
		&types.JobRun{},
	)
}

// EnsureReportIndexes adds the composite and partial indexes AutoMigrate cannot express.
func EnsureReportIndexes(db *gorm.DB) error {
	// Newest-first listing per owner.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_report_owner_created
		ON report (owner_user_id, created_at DESC)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_report_owner_created: %w", err)
	}

	// Sweeper scan.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_report_processing_updated
		ON report (updated_at)
		WHERE status = 'processing' AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_report_processing_updated: %w", err)
	}

	// Reusable markschemes.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_report_owner_markscheme_new
		ON report (owner_user_id, created_at DESC)
		WHERE markscheme_type = 'new' AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_report_owner_markscheme_new: %w", err)
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	// Claim scan: oldest runnable first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run (status, created_at)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_entity
		ON job_run (entity_type, entity_id, job_type);
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_entity: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureReportIndexes(s.db); err != nil {
		s.log.Error("Report index migration failed", "error", err)
		return err
	}
	if err := EnsureJobIndexes(s.db); err != nil {
		s.log.Error("Job index migration failed", "error", err)
		return err
	}
	return nil
}
