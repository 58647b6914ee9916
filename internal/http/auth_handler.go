package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/auth"
)

// AuthHandler issues the caregiver/therapist sessions that gate ingestion
// and experience authoring, following UserHandler's register/login/refresh
// shape.
type AuthHandler struct {
	logger *zap.Logger
	svc    *auth.Service
}

func NewAuthHandler(logger *zap.Logger, svc *auth.Service) *AuthHandler {
	return &AuthHandler{logger: logger, svc: svc}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		DisplayName string `json:"display_name" binding:"required"`
		Password    string `json:"password" binding:"required"`
		Role        string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	caregiver, err := h.svc.Register(c.Request.Context(), req.Email, req.DisplayName, req.Password, auth.Role(req.Role))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"caregiver_id": caregiver.ID, "email": caregiver.Email})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, tokenPairFields(pair))
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, tokenPairFields(pair))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, authed := GetAuthClaims(c)
	if !authed {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "unauthorized", "detail": "missing claims"})
		return
	}
	if err := h.svc.Logout(c.Request.Context(), claims.CaregiverID); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func tokenPairFields(pair auth.TokenPair) gin.H {
	return gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	}
}
