package app

import (
	"strings"
	"time"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/envutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/temporalx"
)

const (
	DispatchWorker   = "worker"
	DispatchTemporal = "temporal"
)

type Config struct {
	Environment string
	Version     string
	ServiceName string
	Address     string

	RunServer bool
	RunWorker bool

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	GoogleClientID string
	AdminEmail     string

	CORSOrigins    string
	UploadMaxBytes int64

	RedisAddr    string
	RedisChannel string

	GeminiAPIKey        string
	GradingModelTimeout time.Duration
	FetchTimeout        time.Duration
	FetchMaxBytes       int64

	// JobDispatch is "worker" (DB poll loop) or "temporal".
	JobDispatch string
	Temporal    temporalx.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		ServiceName: envutil.String("SERVICE_NAME", "checkyourpaper-api"),
		Address:     envutil.String("ADDR", ":"+envutil.String("PORT", "8080")),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", 24*time.Hour),
		GoogleClientID: envutil.String("GOOGLE_OIDC_CLIENT_ID", ""),
		AdminEmail:     strings.ToLower(envutil.String("ADMIN_EMAIL", "")),

		CORSOrigins:    envutil.String("CORS_ALLOWED_ORIGINS", ""),
		UploadMaxBytes: int64(envutil.Int("UPLOAD_MAX_BYTES", 20<<20)),

		RedisAddr:    envutil.String("REDIS_ADDR", ""),
		RedisChannel: envutil.String("REDIS_SSE_CHANNEL", "checkyourpaper:sse"),

		GeminiAPIKey:        envutil.String("GEMINI_API_KEY", envutil.String("GOOGLE_API_KEY", "")),
		GradingModelTimeout: envutil.Duration("GRADING_MODEL_TIMEOUT", services.DefaultModelTimeout),
		FetchTimeout:        envutil.Duration("GRADING_FETCH_TIMEOUT", 30*time.Second),
		FetchMaxBytes:       int64(envutil.Int("GRADING_FETCH_MAX_BYTES", 50<<20)),

		JobDispatch: strings.ToLower(envutil.String("JOB_DISPATCH", DispatchWorker)),
		Temporal:    temporalx.LoadConfig(),
	}
	if cfg.JobDispatch != DispatchTemporal {
		cfg.JobDispatch = DispatchWorker
	}
	if cfg.JobDispatch == DispatchTemporal && !cfg.Temporal.Enabled() {
		log.Warn("JOB_DISPATCH=temporal without TEMPORAL_ADDRESS; falling back to the poll worker")
		cfg.JobDispatch = DispatchWorker
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; using an insecure development secret")
		cfg.JWTSecretKey = "dev-secret-change-me"
	}
	if cfg.GoogleClientID == "" {
		log.Warn("GOOGLE_OIDC_CLIENT_ID not set; Google sign-in is disabled")
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set; reports will fail with a configuration error")
	}
	if cfg.AdminEmail == "" {
		log.Warn("ADMIN_EMAIL not set; no account will be promoted to admin on sign-in")
	}
	return cfg
}
