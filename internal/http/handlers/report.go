package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/reports
// Answers 202 once the report and its grading job are stored; the result
// arrives later over SSE or by polling GET /api/reports/:id.
func (h *ReportHandler) Create(c *gin.Context) {
	var in services.CreateReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("malformed JSON body"))
		return
	}
	rep, err := h.reports.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"report": rep})
}

// GET /api/reports?q=
func (h *ReportHandler) List(c *gin.Context) {
	rows, err := h.reports.List(c.Request.Context(), strings.TrimSpace(c.Query("q")))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reports": rows})
}

// GET /api/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	rep, err := h.reports.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": rep})
}

type renameRequest struct {
	Title string `json:"title"`
}

// PATCH /api/reports/:id
func (h *ReportHandler) Rename(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("malformed JSON body"))
		return
	}
	rep, err := h.reports.Rename(c.Request.Context(), id, req.Title)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": rep})
}

// DELETE /api/reports/:id
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/markschemes
func (h *ReportHandler) ListMarkschemes(c *gin.Context) {
	rows, err := h.reports.ListMarkschemes(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"markschemes": rows})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}
