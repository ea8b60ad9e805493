package app

import (
	"gorm.io/gorm"

	httpH "github.com/checkyourpaper/checkyourpaper-backend/internal/http/handlers"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

type Handlers struct {
	Auth       *httpH.AuthHandler
	User       *httpH.UserHandler
	Report     *httpH.ReportHandler
	Upload     *httpH.UploadHandler
	Admin      *httpH.AdminHandler
	Navigation *httpH.NavigationHandler
	Realtime   *httpH.RealtimeHandler
	Health     *httpH.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services, hub *realtime.SSEHub) (Handlers, error) {
	log.Info("Wiring handlers...")
	sqlDB, err := db.DB()
	if err != nil {
		return Handlers{}, err
	}
	return Handlers{
		Auth:       httpH.NewAuthHandler(serviceset.Auth),
		User:       httpH.NewUserHandler(serviceset.Profile),
		Report:     httpH.NewReportHandler(serviceset.Report),
		Upload:     httpH.NewUploadHandler(serviceset.Upload),
		Admin:      httpH.NewAdminHandler(serviceset.Admin),
		Navigation: httpH.NewNavigationHandler(serviceset.Profile),
		Realtime:   httpH.NewRealtimeHandler(log, hub, serviceset.Profile),
		Health:     httpH.NewHealthHandler(sqlDB),
	}, nil
}
