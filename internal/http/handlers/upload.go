package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/http/response"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/services"
)

// Room for multipart boundaries and the kind field on top of the file itself.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	uploads services.UploadService
}

func NewUploadHandler(uploads services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// POST /api/uploads (multipart: file, kind)
func (h *UploadHandler) Upload(c *gin.Context) {
	max := h.uploads.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", fmt.Errorf("file exceeds %d bytes", max))
			return
		}
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("multipart field \"file\" is required"))
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !services.AllowedUploadType(contentType) {
		response.RespondError(c, http.StatusBadRequest, "unsupported_content_type", fmt.Errorf("content type %q is not allowed", contentType))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	res, err := h.uploads.Upload(c.Request.Context(), services.UploadInput{
		Kind:        services.UploadKind(c.PostForm("kind")),
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
