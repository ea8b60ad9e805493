package app

import (
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/repos"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type Repos struct {
	Report  repos.ReportRepo
	Profile repos.UserProfileRepo
	JobRun  repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Report:  repos.NewReportRepo(db, log),
		Profile: repos.NewUserProfileRepo(db, log),
		JobRun:  repos.NewJobRunRepo(db, log),
	}
}
