package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/checkyourpaper/checkyourpaper-backend/internal/http/handlers"
	httpMW "github.com/checkyourpaper/checkyourpaper-backend/internal/http/middleware"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins string

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	UserHandler       *httpH.UserHandler
	ReportHandler     *httpH.ReportHandler
	UploadHandler     *httpH.UploadHandler
	AdminHandler      *httpH.AdminHandler
	NavigationHandler *httpH.NavigationHandler
	RealtimeHandler   *httpH.RealtimeHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "checkyourpaper-api"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	am := cfg.AuthMiddleware

	// Public
	if cfg.AuthHandler != nil {
		api.POST("/auth/google", cfg.AuthHandler.GoogleSignIn)
	}
	if cfg.NavigationHandler != nil && am != nil {
		api.GET("/navigation/resolve", am.OptionalAuth(), cfg.NavigationHandler.Resolve)
	}
	if am == nil {
		return r
	}

	// Signed in, any status: waitlisted users still see their own profile and live updates.
	signedIn := api.Group("/")
	signedIn.Use(am.RequireAuth())
	{
		if cfg.UserHandler != nil {
			signedIn.GET("/me", cfg.UserHandler.GetMe)
			signedIn.PATCH("/me", cfg.UserHandler.UpdateMe)
		}
		if cfg.RealtimeHandler != nil {
			signedIn.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	approved := api.Group("/")
	approved.Use(am.RequireAuth(), am.RequireApproved())
	{
		if cfg.ReportHandler != nil {
			approved.POST("/reports", cfg.ReportHandler.Create)
			approved.GET("/reports", cfg.ReportHandler.List)
			approved.GET("/reports/:id", cfg.ReportHandler.Get)
			approved.PATCH("/reports/:id", cfg.ReportHandler.Rename)
			approved.DELETE("/reports/:id", cfg.ReportHandler.Delete)
			approved.GET("/markschemes", cfg.ReportHandler.ListMarkschemes)
		}
		if cfg.UploadHandler != nil {
			approved.POST("/uploads", cfg.UploadHandler.Upload)
		}
	}

	admin := api.Group("/admin")
	admin.Use(am.RequireAuth(), am.RequireAdmin())
	{
		if cfg.AdminHandler != nil {
			admin.GET("/users", cfg.AdminHandler.ListUsers)
			admin.POST("/users/:id/approve", cfg.AdminHandler.Approve)
			admin.POST("/users/:id/reject", cfg.AdminHandler.Reject)
		}
	}

	return r
}
