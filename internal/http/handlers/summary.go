package handlers

import (
	"net/http"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/chat"

	"github.com/gin-gonic/gin"
)

type SummaryHandler struct {
	Summaries *chat.SummaryService
}

func (h *SummaryHandler) Get(c *gin.Context) {
	taskID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	sum, err := h.Summaries.Get(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sum})
}

// Regenerate: kalau generator gagal, summary degraded tetap dikirim bersama kind upstream_unavailable.
func (h *SummaryHandler) Regenerate(c *gin.Context) {
	taskID, err := paramID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	sum, err := h.Summaries.Regenerate(c.Request.Context(), taskID)
	if err != nil {
		if sum != nil && apperr.Is(err, apperr.KindUpstreamUnavailable) {
			c.JSON(apperr.HTTPStatus(apperr.KindUpstreamUnavailable), gin.H{
				"kind":    apperr.KindUpstreamUnavailable,
				"message": apperr.Message(err),
				"data":    sum,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sum})
}
