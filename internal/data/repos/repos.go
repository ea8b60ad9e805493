package repos

import (
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos/jobs"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos/reports"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos/user"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type ReportRepo = reports.ReportRepo
type UserProfileRepo = user.UserProfileRepo
type JobRunRepo = jobs.JobRunRepo

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return reports.NewReportRepo(db, baseLog)
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return user.NewUserProfileRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
