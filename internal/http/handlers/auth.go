package handlers

import (
	"net/http"
	"strings"

	"github.com/adityaraj-09/faff-assign/internal/apperr"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/http/middleware"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	Store    *store.Store
	Verifier *auth.Verifier
}

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.Store.FindUserByEmail(c.Request.Context(), email); err == nil {
		respondError(c, apperr.Validation("email already registered"))
		return
	} else if !apperr.Is(err, apperr.KindNotFound) {
		respondError(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	u := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		// registrasi publik selalu operator; admin di-set lewat `migrate --promote-admin`
		Role: models.RoleOperator,
	}
	if err := h.Store.CreateUser(c.Request.Context(), &u); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": u})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	u, err := h.Store.FindUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			respondError(c, apperr.Unauthenticated("wrong email/password"))
			return
		}
		respondError(c, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		respondError(c, apperr.Unauthenticated("wrong email/password"))
		return
	}

	tokenStr, err := h.Verifier.Issue(u)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": tokenStr,
		"user":         u,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id := middleware.MustIdentity(c)
	u, err := h.Store.FindUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	id := middleware.MustIdentity(c)
	u, err := h.Store.FindUser(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		respondError(c, apperr.Validation("old password does not match"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Store.UpdatePasswordHash(c.Request.Context(), u.ID, hash); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
