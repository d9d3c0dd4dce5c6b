package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/booking"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/response"
)

type BookingHandler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) respond(c *gin.Context, status int, b *booking.Booking) {
	views := h.service.Views(c.Request.Context(), []*booking.Booking{b})
	c.JSON(status, NewBookingResponse(views[0]))
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	actor := auth.GetActor(c)
	b, err := h.service.Create(c.Request.Context(), actor, req.ToDomain(actor.UserID))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, http.StatusCreated, b)
}

func (h *BookingHandler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	filter, err := req.Filter()
	if err != nil {
		response.Error(c, err)
		return
	}

	bookings, total, err := h.service.List(c.Request.Context(), auth.GetActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := h.service.Views(c.Request.Context(), bookings)
	items := make([]BookingResponse, len(views))
	for i, v := range views {
		items[i] = NewBookingResponse(v)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, filter.Page, filter.PageSize, total))
}

func (h *BookingHandler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), auth.GetActor(c), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, http.StatusOK, b)
}

// Transition applies confirm, cancel, complete or reschedule to a booking.
func (h *BookingHandler) Transition(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	b, err := h.service.Transition(c.Request.Context(), auth.GetActor(c), uri.ID, booking.Action(req.Action), req.Payload())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.respond(c, http.StatusOK, b)
}
