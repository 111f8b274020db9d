package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers room and housekeeping routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, managerMiddleware gin.HandlerFunc) {
	group := g.Group("/rooms")
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.POST("", managerMiddleware, h.Create)

		// Housekeeping
		group.POST("/:id/housekeeping", h.CompleteHousekeeping)
		group.POST("/:id/dirty", h.MarkDirty)

		// Maintenance and out-of-order blocks
		group.POST("/:id/block", h.Block)
		group.POST("/:id/unblock", h.Unblock)
	}
}
