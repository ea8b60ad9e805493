package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type googleSignInRequest struct {
	IDToken string `json:"id_token"`
}

// POST /api/auth/google
func (h *AuthHandler) GoogleSignIn(c *gin.Context) {
	var req googleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("id_token is required"))
		return
	}
	res, err := h.auth.SignInWithGoogle(c.Request.Context(), strings.TrimSpace(req.IDToken))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
