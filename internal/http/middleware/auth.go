package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/access"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

const viewerKey = "viewer"

type AuthMiddleware struct {
	log      *logger.Logger
	auth     services.AuthService
	profiles services.ProfileService
}

func NewAuthMiddleware(log *logger.Logger, auth services.AuthService, profiles services.ProfileService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), auth: auth, profiles: profiles}
}

// RequireAuth rejects requests without a valid access token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid token"))
			return
		}
		ctx, err := am.auth.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		if rd := ctxutil.GetRequestData(ctx); rd == nil || rd.UserID == uuid.Nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("token carries no user"))
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through untouched.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if ctx, err := am.auth.SetContextFromToken(c.Request.Context(), tokenString); err == nil {
				c.Request = c.Request.WithContext(ctx)
			} else {
				am.log.Debug("Ignoring invalid token on optional route", "error", err)
			}
		}
		c.Next()
	}
}

// RequireApproved keeps pending and rejected users on the waitlist. Must run after RequireAuth.
func (am *AuthMiddleware) RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := am.loadViewer(c)
		if !ok {
			return
		}
		if d := access.Decide("/", v); !d.Allow {
			response.AbortError(c, http.StatusForbidden, "waitlisted", errors.New("account is awaiting approval"))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := am.loadViewer(c)
		if !ok {
			return
		}
		if v.Status != user.StatusAdmin {
			response.AbortError(c, http.StatusForbidden, "admin_only", errors.New("admin access required"))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) loadViewer(c *gin.Context) (*access.Viewer, bool) {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(*access.Viewer); ok && viewer != nil {
			return viewer, true
		}
	}
	viewer, err := am.profiles.Viewer(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		c.Abort()
		return nil, false
	}
	if viewer == nil {
		response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("no profile for token"))
		return nil, false
	}
	c.Set(viewerKey, viewer)
	return viewer, true
}

// ViewerFrom returns the viewer a previous middleware loaded, if any.
func ViewerFrom(c *gin.Context) *access.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(*access.Viewer); ok {
			return viewer
		}
	}
	return nil
}

// extractToken reads the bearer header, falling back to ?token= for EventSource clients.
func extractToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
