package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/data/db"
	apphttp "github.com/checkyourpaper/checkyourpaper-backend/internal/http"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/observability"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
)

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Cfg        Config
	Repos      Repos
	Clients    Clients
	Services   Services
	Background Background
	Server     *apphttp.Server
	SSEHub     *realtime.SSEHub

	pg           *db.PostgresService
	shutdownOTel func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	shutdownOTel := observability.InitOTel(ctx, log, observability.LoadOtelConfig(cfg.ServiceName, cfg.Environment, cfg.Version))

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewSSEHub(log)
	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, hub)

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		SSEHub:       hub,
		pg:           pg,
		shutdownOTel: shutdownOTel,
	}

	if cfg.RunWorker {
		bg, err := wireBackground(theDB, log, cfg, reposet, clients, serviceset)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("wire job runtime: %w", err)
		}
		a.Background = bg
	}

	if cfg.RunServer {
		handlerset, err := wireHandlers(theDB, log, serviceset, hub)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("wire handlers: %w", err)
		}
		a.Server = wireServer(log, cfg, serviceset, handlerset)
	}
	return a, nil
}

// Start launches background loops. API processes also forward bus messages
// into the local hub so clients on this replica see events from workers.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Cfg.RunServer && a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			a.Log.Error("SSE bus forwarder failed to start", "error", err)
		}
	}
	if a.Cfg.RunWorker {
		a.Background.Start(ctx, a.Log)
	}
}

// Run blocks until ctx is cancelled. Without an HTTP server it just waits.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil {
		<-ctx.Done()
		return nil
	}
	a.Log.Info("Server listening", "address", a.Cfg.Address)
	err := a.Server.Run(ctx, a.Cfg.Address)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Background.Wait()
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.shutdownOTel != nil {
		_ = a.shutdownOTel(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
