package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	"github.com/studymate/study-mate-backend/internal/auth"
	"github.com/studymate/study-mate-backend/internal/partners/domain"
)

// ListPartners returns the whole directory
func (h *Handler) ListPartners(c *gin.Context) {
	partners, err := h.partnerService.List(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, listResponse{Success: true, Count: len(partners), Data: partners})
}

// GetPartner returns one directory entry
func (h *Handler) GetPartner(c *gin.Context) {
	p, err := h.partnerService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, partnerResponse{Success: true, Data: p})
}

// CreatePartner adds a directory entry
func (h *Handler) CreatePartner(c *gin.Context) {
	var body createPartnerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	req := domain.CreatePartnerRequest{
		Email:        body.Email,
		Image:        body.Image,
		Name:         body.Name,
		Subject:      body.Subject,
		Level:        body.Level,
		ActiveStatus: body.ActiveStatus,
		About:        body.About,
		Location:     body.Location,
		Availability: body.Availability,
	}
	if body.Rating != nil {
		req.Rating = *body.Rating
	}

	p, err := h.partnerService.Create(c.Request.Context(), req)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, partnerResponse{Success: true, Msg: "Partner created successfully", Data: p})
}

// UpdatePartner lets the owner edit their entry
func (h *Handler) UpdatePartner(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	var body updatePartnerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	p, err := h.partnerService.Update(c.Request.Context(), userID, c.Param("id"), domain.UpdatePartnerRequest{
		Image:        body.Image,
		Name:         body.Name,
		Subject:      body.Subject,
		Level:        body.Level,
		ActiveStatus: body.ActiveStatus,
		About:        body.About,
		Location:     body.Location,
		Availability: body.Availability,
	})
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, partnerResponse{Success: true, Msg: "Partner profile updated successfully", Data: p})
}
