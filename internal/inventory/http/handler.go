package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

type Handler struct {
	calendar *inventory.Calendar
}

func NewHandler(calendar *inventory.Calendar) *Handler {
	return &Handler{calendar: calendar}
}

func (h *Handler) Availability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	in, out, err := req.Dates()
	if err != nil {
		response.BadRequest(c, err.Error(), nil)
		return
	}

	av, err := h.calendar.Query(c.Request.Context(), req.RoomTypeID, in, out)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAvailabilityResponse(av))
}

func (h *Handler) SetOverride(c *gin.Context) {
	var body OverrideRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	days, err := h.calendar.SetOverride(c.Request.Context(), body.RoomTypeID, body.From, body.Through, inventory.Override{
		ClosedToArrival:      body.ClosedToArrival,
		ClosedToDeparture:    body.ClosedToDeparture,
		MinLOS:               body.MinLOS,
		MaxLOS:               body.MaxLOS,
		OverbookingAllowance: body.OverbookingAllowance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]DayResponse, len(days))
	for i, d := range days {
		items[i] = NewDayResponse(d)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Days(c *gin.Context) {
	var req DaysRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	from, err := bizdate.Parse(req.From)
	if err != nil {
		response.BadRequest(c, "from must be YYYY-MM-DD", nil)
		return
	}
	to, err := bizdate.Parse(req.To)
	if err != nil {
		response.BadRequest(c, "to must be YYYY-MM-DD", nil)
		return
	}

	days, err := h.calendar.Days(req.RoomTypeID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]DayResponse, len(days))
	for i, d := range days {
		items[i] = NewDayResponse(d)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
