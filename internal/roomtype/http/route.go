package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers room-type and rate-plan routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, managerMiddleware gin.HandlerFunc) {
	group := g.Group("/room-types")
	group.Use(authMiddleware)
	{
		group.GET("", h.List)    // List room types
		group.GET("/:id", h.Get) // Get room type details

		group.POST("", managerMiddleware, h.Create)                        // Create room type
		group.PATCH("/:id", managerMiddleware, h.Update)                   // Update room type
		group.POST("/:id/rate-plans", managerMiddleware, h.CreateRatePlan) // Create rate plan
	}

	plans := g.Group("/rate-plans")
	plans.Use(authMiddleware)
	{
		plans.GET("", h.ListRatePlans)
	}
}
