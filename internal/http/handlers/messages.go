package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// formSlack: ruang untuk field non-file di body multipart.
const formSlack = 1 << 20

type MessageHandler struct {
	Messages *chat.Service
	Intake   *chat.Intake
	Limits   attachments.Limits
}

type messageReq struct {
	Content   *string `json:"content"`
	ReplyToID *uint   `json:"replyToId"`
}

type messageForm struct {
	content   *string
	replyToID *uint
	files     []attachments.Upload
}

// readMessage menerima multipart (content, replyToId, files) atau JSON.
func (h *MessageHandler) readMessage(c *gin.Context) (messageForm, error) {
	var out messageForm

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req messageReq
		if err := c.ShouldBindJSON(&req); err != nil {
			return out, apperr.Validation("invalid body")
		}
		out.content = req.Content
		out.replyToID = req.ReplyToID
		return out, nil
	}

	limit := int64(h.Limits.MaxFiles)*h.Limits.MaxBytes + formSlack
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		return out, apperr.Validation("invalid multipart body")
	}

	if v, ok := form.Value["content"]; ok && len(v) > 0 {
		out.content = &v[0]
	}
	if v := c.PostForm("replyToId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return out, apperr.Validation("invalid replyToId")
		}
		rid := uint(id)
		out.replyToID = &rid
	}
	for _, fh := range form.File["files"] {
		out.files = append(out.files, attachments.FromMultipart(fh))
	}
	return out, nil
}

// Create adalah jalur A: HTTP, boleh membawa file.
func (h *MessageHandler) Create(c *gin.Context) {
	taskID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	in, err := h.readMessage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var content string
	if in.content != nil {
		content = *in.content
	}
	msg, err := h.Intake.FromUpload(c.Request.Context(), middleware.MustIdentity(c), chat.UploadMessage{
		TaskID:    taskID,
		Content:   content,
		ReplyToID: in.replyToID,
		Files:     in.files,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

func (h *MessageHandler) List(c *gin.Context) {
	taskID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.Messages.ListMessages(c.Request.Context(), taskID, queryInt(c, "page", 1), queryInt(c, "limit", chat.DefaultPageSize))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *MessageHandler) Thread(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	th, err := h.Messages.Thread(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": th})
}

func (h *MessageHandler) Update(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	in, err := h.readMessage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	msg, err := h.Messages.UpdateMessage(c.Request.Context(), middleware.MustIdentity(c), id, in.content, in.files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msg})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Messages.DeleteMessage(c.Request.Context(), middleware.MustIdentity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) RemoveAttachment(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	msg, err := h.Messages.RemoveAttachment(c.Request.Context(), middleware.MustIdentity(c), id, c.Param("attachmentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msg})
}
