package handlers

import (
	"strconv"

	"github.com/adityaraj-09/faff-assign/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError menulis {"kind","message"}; error internal dicatat lewat c.Error
// supaya RequestLogger ikut me-log detailnya.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"kind": kind, "message": apperr.Message(err)})
}

func invalidBody(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(apperr.KindValidationFailed), gin.H{
		"kind":    apperr.KindValidationFailed,
		"message": "invalid body",
		"error":   err.Error(),
	})
}

func paramID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return uint(v), nil
}

func queryInt(c *gin.Context, name string, def int) int {
	if v := c.Query(name); v != "" {
		if x, err := strconv.Atoi(v); err == nil {
			return x
		}
	}
	return def
}
