package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/availability"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/response"
)

type AvailabilityHandler struct {
	service availability.Service
}

func NewHandler(service availability.Service) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Query lists the photographer's declared slots in the range with their free/booked/vacation state.
func (h *AvailabilityHandler) Query(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	r, err := q.Validate()
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Query(c.Request.Context(), uri.ID, r)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]AvailabilityResponse, len(result))
	for i, a := range result {
		items[i] = NewAvailabilityResponse(a)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}

func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	r, err := q.Validate()
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := h.service.ListSlots(c.Request.Context(), uri.ID, r)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}

func (h *AvailabilityHandler) DeclareSlot(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var body DeclareSlotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	slot, err := h.service.DeclareSlot(c.Request.Context(), auth.GetActor(c), availability.DeclareSlotRequest{
		PhotographerID: uri.ID,
		Date:           body.Date,
		StartTime:      body.StartTime,
		EndTime:        body.EndTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewSlotResponse(slot))
}

func (h *AvailabilityHandler) RemoveSlot(c *gin.Context) {
	var uri SlotURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.RemoveSlot(c.Request.Context(), auth.GetActor(c), uri.ID, uri.SlotID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AvailabilityHandler) ListVacations(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var q RangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	r, err := q.Validate()
	if err != nil {
		response.Error(c, err)
		return
	}

	vacations, err := h.service.ListVacations(c.Request.Context(), uri.ID, r)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]VacationResponse, len(vacations))
	for i, v := range vacations {
		items[i] = NewVacationResponse(v)
	}
	c.JSON(http.StatusOK, response.NewListResponse(items))
}

func (h *AvailabilityHandler) AddVacation(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}
	var body AddVacationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	v, err := h.service.AddVacation(c.Request.Context(), auth.GetActor(c), availability.AddVacationRequest{
		PhotographerID: uri.ID,
		StartDate:      body.StartDate,
		EndDate:        body.EndDate,
		Reason:         body.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewVacationResponse(v))
}

func (h *AvailabilityHandler) RemoveVacation(c *gin.Context) {
	var uri VacationURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.RemoveVacation(c.Request.Context(), auth.GetActor(c), uri.ID, uri.VacationID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Rebuild recomputes the slot markers from bookings.
func (h *AvailabilityHandler) Rebuild(c *gin.Context) {
	var uri PhotographerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	n, err := h.service.Rebuild(c.Request.Context(), auth.GetActor(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": n})
}
