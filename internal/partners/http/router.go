package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the directory reads and creation on public and the
// owner-only update on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("", h.ListPartners)
	public.GET("/:id", h.GetPartner)
	public.POST("", h.CreatePartner)

	protected.PUT("/:id", h.UpdatePartner)
}
