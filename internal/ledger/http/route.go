package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers folio routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/folios")
	group.Use(authMiddleware)
	{
		group.GET("/:id", h.Get)
		group.POST("/:id/transactions", h.Post)
	}
}
