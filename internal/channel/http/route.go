package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers channel administration, webhook and conflict routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, managerMiddleware gin.HandlerFunc) {
	group := g.Group("/channels")
	{
		// Webhook: authenticated by channel secret
		group.POST("/:id/bookings", h.SyncBooking)

		group.GET("", authMiddleware, h.List)
		group.GET("/:id", authMiddleware, h.Get)
		group.POST("", authMiddleware, managerMiddleware, h.Register)
		group.POST("/:id/poll", authMiddleware, managerMiddleware, h.Poll)
	}

	conflicts := g.Group("/channel-conflicts")
	conflicts.Use(authMiddleware)
	{
		conflicts.GET("", h.ListConflicts)
		conflicts.GET("/:id", h.GetConflict)
		conflicts.POST("/:id/resolve", managerMiddleware, h.ResolveConflict)
	}
}
