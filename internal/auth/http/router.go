package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the credential routes on public and the profile
// routes on protected, which must already run the session middleware.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)
	public.POST("/firebase", h.FirebaseLogin)

	protected.GET("/me", h.GetProfile)
	protected.PUT("/me", h.UpdateProfile)
	protected.DELETE("/me", h.DeleteProfile)
}
