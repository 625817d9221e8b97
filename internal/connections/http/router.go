package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the request routes; rg must run the session middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/request/send/:targetId", h.SendRequest)
	rg.DELETE("/request/cancel/:targetId", h.CancelRequest)
	rg.PUT("/request/respond/:requestId", h.RespondRequest)
	rg.GET("/requests", h.ListRequests)
}
