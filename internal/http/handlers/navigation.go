package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/access"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type NavigationHandler struct {
	profiles services.ProfileService
}

func NewNavigationHandler(profiles services.ProfileService) *NavigationHandler {
	return &NavigationHandler{profiles: profiles}
}

// GET /api/navigation/resolve?path=
// Works with or without a token; a token whose profile no longer exists is anonymous.
func (h *NavigationHandler) Resolve(c *gin.Context) {
	viewer, err := h.profiles.Viewer(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	p := access.Normalize(c.DefaultQuery("path", "/"))
	d := access.Decide(p, viewer)
	out := gin.H{"path": p, "allow": d.Allow, "authenticated": viewer != nil}
	if d.Redirect != "" {
		out["redirect"] = d.Redirect
	}
	if viewer != nil {
		out["status"] = viewer.Status
	}
	response.RespondOK(c, out)
}
