package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studymate/study-mate-backend/internal/apperrors"
	"github.com/studymate/study-mate-backend/internal/auth"
	"github.com/studymate/study-mate-backend/internal/connections/domain"
)

// target reads :targetId and the optional ?kind=partner|user|auto
func target(c *gin.Context) (domain.Target, error) {
	kind, ok := domain.ParseTargetKind(c.Query("kind"))
	if !ok {
		return domain.Target{}, apperrors.InvalidArgument("kind must be partner, user or auto")
	}
	return domain.Target{Kind: kind, ID: strings.TrimSpace(c.Param("targetId"))}, nil
}

// SendRequest sends a connection request to the target
func (h *Handler) SendRequest(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	t, err := target(c)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	res, err := h.engine.SendRequest(c.Request.Context(), userID, t)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	if res.AlreadySent {
		c.JSON(http.StatusOK, sendResponse{
			Success:    true,
			Msg:        "Request already sent",
			RequestID:  res.RequestID,
			ReceiverID: res.ReceiverID,
		})
		return
	}

	c.JSON(http.StatusCreated, sendResponse{
		Success:    true,
		Msg:        "Request sent successfully",
		RequestID:  res.RequestID,
		ReceiverID: res.ReceiverID,
	})
}

// CancelRequest withdraws a pending request to the target
func (h *Handler) CancelRequest(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	t, err := target(c)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	if err := h.engine.CancelRequest(c.Request.Context(), userID, t); err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Request cancelled successfully"})
}

// RespondRequest accepts or rejects a request addressed to the caller
func (h *Handler) RespondRequest(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	var body respondBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apperrors.Respond(c, h.log, apperrors.InvalidArgument("invalid request body"))
		return
	}

	action := domain.Action(strings.ToLower(strings.TrimSpace(body.Action)))
	req, err := h.engine.RespondRequest(c.Request.Context(), userID, c.Param("requestId"), action)
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Request " + string(req.Status), "data": req})
}

// ListRequests lists the caller's requests filtered by ?type=sent|received|all
func (h *Handler) ListRequests(c *gin.Context) {
	userID := auth.UserID(c)
	if userID == "" {
		apperrors.Respond(c, h.log, apperrors.Unauthorized("user not authenticated"))
		return
	}

	views, err := h.engine.ListRequests(c.Request.Context(), userID, c.Query("type"))
	if err != nil {
		apperrors.Respond(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, listResponse{Success: true, Count: len(views), Data: views})
}
