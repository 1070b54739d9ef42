package middleware

import (
	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Auth memverifikasi bearer token dan menaruh auth.Identity di context.
func Auth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.Unauthenticated("missing token"))
			return
		}

		id, err := v.Verify(tokenStr)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"kind": kind, "message": apperr.Message(err)})
}

func MustIdentity(c *gin.Context) auth.Identity {
	return c.MustGet(identityKey).(auth.Identity)
}
