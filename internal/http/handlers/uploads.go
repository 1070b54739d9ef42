package handlers

import (
	"net/http"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// UploadHandler menyimpan file lebih dulu; referensinya lalu dikirim lewat send_message.
type UploadHandler struct {
	Intake *chat.Intake
	Limits attachments.Limits
}

func (h *UploadHandler) Upload(c *gin.Context) {
	limits := h.Limits
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(limits.MaxFiles)*limits.MaxBytes+formSlack)

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, apperr.Validation("invalid multipart body"))
		return
	}
	fhs := form.File["files"]
	if len(fhs) == 0 {
		respondError(c, apperr.Validation("no files"))
		return
	}

	uploads := make([]attachments.Upload, 0, len(fhs))
	for _, fh := range fhs {
		uploads = append(uploads, attachments.FromMultipart(fh))
	}
	atts, err := h.Intake.PreUpload(c.Request.Context(), middleware.MustIdentity(c), uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": atts})
}
