package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *AvailabilityHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/photographers/:id")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("/availability", h.Query)
		group.POST("/availability/rebuild", h.Rebuild)

		group.GET("/slots", h.ListSlots)
		group.POST("/slots", h.DeclareSlot)
		group.DELETE("/slots/:slotId", h.RemoveSlot)

		group.GET("/vacations", h.ListVacations)
		group.POST("/vacations", h.AddVacation)
		group.DELETE("/vacations/:vacationId", h.RemoveVacation)
	}
}
