package app

import (
	apphttp "github.com/checkyourpaper/checkyourpaper-backend/internal/http"
	httpMW "github.com/checkyourpaper/checkyourpaper-backend/internal/http/middleware"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, serviceset Services, handlerset Handlers) *apphttp.Server {
	log.Info("Wiring router...")
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:         log,
		ServiceName: cfg.ServiceName,
		CORSOrigins: cfg.CORSOrigins,

		AuthMiddleware: httpMW.NewAuthMiddleware(log, serviceset.Auth, serviceset.Profile),

		AuthHandler:       handlerset.Auth,
		UserHandler:       handlerset.User,
		ReportHandler:     handlerset.Report,
		UploadHandler:     handlerset.Upload,
		AdminHandler:      handlerset.Admin,
		NavigationHandler: handlerset.Navigation,
		RealtimeHandler:   handlerset.Realtime,
		HealthHandler:     handlerset.Health,
	})
}
