package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type UserHandler struct {
	profiles services.ProfileService
}

func NewUserHandler(profiles services.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// GET /api/me
func (h *UserHandler) GetMe(c *gin.Context) {
	p, err := h.profiles.Me(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}

type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// PATCH /api/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("malformed JSON body"))
		return
	}
	p, err := h.profiles.Update(c.Request.Context(), services.UpdateProfileInput{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": p})
}
