package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type AdminHandler struct {
	admin services.AdminService
}

func NewAdminHandler(admin services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// GET /api/admin/users?status=pending
func (h *AdminHandler) ListUsers(c *gin.Context) {
	status := strings.TrimSpace(c.DefaultQuery("status", string(user.StatusPending)))
	if status != string(user.StatusPending) {
		response.RespondError(c, http.StatusBadRequest, "invalid_status", fmt.Errorf("only status=pending can be listed"))
		return
	}
	rows, err := h.admin.ListPending(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"users": rows})
}

// POST /api/admin/users/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.admin.Approve(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": p})
}

// POST /api/admin/users/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	p, err := h.admin.Reject(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": p})
}
