package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	"github.com/studymate/study-mate-backend/internal/auth"
	"github.com/studymate/study-mate-backend/internal/auth/domain"
)

// Register creates a password account
func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	res, err := h.authService.Register(c.Request.Context(), domain.RegisterRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{Success: true, Token: res.Token, User: res.User})
}

// Login exchanges email and password for a session token
func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Success: true, Token: res.Token, User: res.User})
}

// FirebaseLogin exchanges a Firebase ID token for a session token
func (h *Handler) FirebaseLogin(c *gin.Context) {
	var body firebaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	res, err := h.authService.FirebaseLogin(c.Request.Context(), body.IDToken)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Success: true, Token: res.Token, User: res.User})
}

// GetProfile returns the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	user, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// UpdateProfile applies a partial profile update
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, domain.UpdateProfileRequest{
		Name:      body.Name,
		Bio:       body.Bio,
		Location:  body.Location,
		Phone:     body.Phone,
		PhotoURL:  body.PhotoURL,
		Interests: body.Interests,
	})
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// DeleteProfile removes the current user's account
func (h *Handler) DeleteProfile(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	if err := h.authService.DeleteProfile(c.Request.Context(), userID); err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "User deleted"})
}
