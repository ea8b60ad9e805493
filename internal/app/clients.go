package app

import (
	"context"
	"fmt"
	"net/http"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/gemini"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/objectstore"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime/bus"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/temporalx"
)

type Clients struct {
	Store    objectstore.Store
	Gemini   *gemini.Client
	SSEBus   bus.Bus
	Temporal temporalsdkclient.Client
	Verifier services.IDTokenVerifier
	HTTP     *http.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("object storage config: %w", err)
	}
	store, err := resolveObjectStore(ctx, log, storeCfg)
	if err != nil {
		return Clients{}, err
	}
	out.Store = store

	// Redis
	if cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.SSEBus = b
	}

	// Gemini
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewClient(ctx, log, cfg.GeminiAPIKey)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init gemini client: %w", err)
		}
		out.Gemini = g
	}

	// Google sign-in
	if cfg.GoogleClientID != "" {
		v, err := services.NewGoogleIDTokenVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init id token verifier: %w", err)
		}
		out.Verifier = v
	}

	// Temporal
	if cfg.JobDispatch == DispatchTemporal {
		tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		out.Temporal = tc
	}

	out.HTTP = &http.Client{Timeout: cfg.FetchTimeout}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Gemini != nil {
		_ = c.Gemini.Close()
	}
	if closer, ok := c.Store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
