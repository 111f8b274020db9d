package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers availability and inventory administration routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, managerMiddleware gin.HandlerFunc) {
	g.GET("/availability", authMiddleware, h.Availability)

	group := g.Group("/inventory")
	group.Use(authMiddleware)
	{
		group.GET("/days", h.Days)
		group.PUT("/overrides", managerMiddleware, h.SetOverride)
	}
}
