package app

import (
	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/grading"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type Services struct {
	Emitter services.SSEEmitter

	JobNotifier     services.JobNotifier
	ReportNotifier  services.ReportNotifier
	ProfileNotifier services.ProfileNotifier

	Jobs    services.JobService
	Profile services.ProfileService
	Auth    services.AuthService
	Admin   services.AdminService
	Upload  services.UploadService
	Report  services.ReportService
	Grading services.GradingService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, hub *realtime.SSEHub) Services {
	log.Info("Wiring services...")

	var emit services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emit = &services.RedisEmitter{Bus: clients.SSEBus, Fallback: emit}
	}

	jobNotify := services.NewJobNotifier(emit)
	reportNotify := services.NewReportNotifier(emit)
	profileNotify := services.NewProfileNotifier(emit)

	var starter services.WorkflowStarter
	if cfg.JobDispatch == DispatchTemporal && clients.Temporal != nil {
		starter = clients.Temporal
	}
	jobs := services.NewJobService(log, reposet.JobRun, jobNotify, starter, cfg.Temporal.TaskQueue)

	profiles := services.NewProfileService(log, reposet.Profile, profileNotify, cfg.AdminEmail)

	var model services.ModelClient
	if clients.Gemini != nil {
		model = clients.Gemini
	}
	fetcher := grading.NewFetcher(clients.HTTP, cfg.FetchTimeout, cfg.FetchMaxBytes)

	return Services{
		Emitter:         emit,
		JobNotifier:     jobNotify,
		ReportNotifier:  reportNotify,
		ProfileNotifier: profileNotify,

		Jobs:    jobs,
		Profile: profiles,
		Auth:    services.NewAuthService(log, clients.Verifier, profiles, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Admin:   services.NewAdminService(log, reposet.Profile, profiles, profileNotify),
		Upload:  services.NewUploadService(log, clients.Store, cfg.UploadMaxBytes),
		Report:  services.NewReportService(db, log, reposet.Report, jobs, clients.Store, reportNotify),
		Grading: services.NewGradingService(
			log,
			reposet.Report,
			model,
			fetcher,
			grading.MustLoadDispatch(),
			reportNotify,
			cfg.GradingModelTimeout,
		),
	}
}
