package handlers

import (
	"net/http"

	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"
	"github.com/adityaraj-09/faff-assign/internal/models"

	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	Reviews *chat.ReviewService
}

func (h *ReviewHandler) Request(c *gin.Context) {
	messageID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	rev, err := h.Reviews.Request(c.Request.Context(), middleware.MustIdentity(c), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": rev})
}

func (h *ReviewHandler) List(c *gin.Context) {
	messageID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	rs, err := h.Reviews.List(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rs})
}

func (h *ReviewHandler) Auto(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	rev, err := h.Reviews.Auto(c.Request.Context(), middleware.MustIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rev})
}

type decideReq struct {
	Status   models.ReviewStatus `json:"status" binding:"required"`
	Feedback string              `json:"feedback"`
}

func (h *ReviewHandler) Decide(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req decideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}
	rev, err := h.Reviews.Decide(c.Request.Context(), middleware.MustIdentity(c), id, req.Status, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rev})
}
