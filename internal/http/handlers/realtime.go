package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/middleware"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/ctxutil"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/realtime"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	profiles services.ProfileService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, profiles services.ProfileService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, profiles: profiles}
}

// GET /api/sse/stream
// Waitlisted users may stream too, so they see their approval arrive. Every
// stream joins the user's channel; admins also join the admin channel.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	client := h.hub.NewSSEClient(rd.UserID)
	client.Logger = h.log.With("sse_client_id", client.ID)
	h.hub.AddChannel(client, rd.UserID.String())
	if h.isAdmin(c) {
		h.hub.AddChannel(client, realtime.AdminChannel)
	}
	h.log.Debug("SSE stream open", "user_id", rd.UserID, "session_id", rd.SessionID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
	h.hub.CloseClient(client)
}

func (h *RealtimeHandler) isAdmin(c *gin.Context) bool {
	v := middleware.ViewerFrom(c)
	if v == nil && h.profiles != nil {
		var err error
		if v, err = h.profiles.Viewer(c.Request.Context()); err != nil {
			h.log.Warn("Viewer lookup failed for SSE stream", "error", err)
			return false
		}
	}
	return v != nil && v.Status == user.StatusAdmin
}
