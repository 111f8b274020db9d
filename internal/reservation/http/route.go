package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers reservation lifecycle routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, managerMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.GET("/by-code/:code", h.GetByCode)
		group.GET("/:id/folio", h.Folio)

		// Lifecycle transitions
		group.POST("/:id/assign-room", h.AssignRoom)
		group.POST("/:id/check-in", h.CheckIn)
		group.POST("/:id/check-out", h.CheckOut)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/no-show", h.MarkNoShow)
		group.POST("/:id/payment", h.RecordPayment)

		group.POST("/no-show-sweep", managerMiddleware, h.SweepNoShows)
	}

	g.POST("/night-audit", authMiddleware, managerMiddleware, h.NightAudit)
}
