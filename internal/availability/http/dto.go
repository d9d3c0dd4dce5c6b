package http

import (
	"time"

	"github.com/nekogravitycat/studio-booking-backend/internal/availability"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

// PhotographerURI binds the :id path parameter.
type PhotographerURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// SlotURI binds /photographers/:id/slots/:slotId.
type SlotURI struct {
	PhotographerURI
	SlotID string `uri:"slotId" binding:"required,uuid"`
}

// VacationURI binds /photographers/:id/vacations/:vacationId.
type VacationURI struct {
	PhotographerURI
	VacationID string `uri:"vacationId" binding:"required,uuid"`
}

// RangeQuery is the optional from/to filter shared by the calendar endpoints.
type RangeQuery struct {
	request.DateRangeParams
}

// Validate checks the bounds order and returns the parsed range.
func (q *RangeQuery) Validate() (schedule.DateRange, error) {
	r, err := schedule.NewDateRange(q.From, q.To)
	if err != nil {
		return schedule.DateRange{}, availability.ErrInvalidInput.WithDetail("%v", err)
	}
	return r, nil
}

type DeclareSlotBody struct {
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime   string `json:"end_time" binding:"required,datetime=15:04"`
}

type AddVacationBody struct {
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" binding:"max=500"`
}

type SlotResponse struct {
	ID             string    `json:"id"`
	PhotographerID string    `json:"photographer_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	Booked         bool      `json:"booked"`
	BookingID      string    `json:"booking_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewSlotResponse(s *availability.Slot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		PhotographerID: s.PhotographerID,
		Date:           s.Date,
		StartTime:      s.StartTime.String(),
		EndTime:        s.EndTime.String(),
		Booked:         s.Booked,
		BookingID:      s.BookingID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// AvailabilityResponse is one slot as seen by someone looking for a free time.
type AvailabilityResponse struct {
	SlotID    string `json:"slot_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	State     string `json:"state"`
	BookingID string `json:"booking_id,omitempty"`
}

func NewAvailabilityResponse(a availability.SlotAvailability) AvailabilityResponse {
	return AvailabilityResponse{
		SlotID:    a.Slot.ID,
		Date:      a.Slot.Date,
		StartTime: a.Slot.StartTime.String(),
		EndTime:   a.Slot.EndTime.String(),
		State:     string(a.State),
		BookingID: a.BookingID,
	}
}

type VacationResponse struct {
	ID             string    `json:"id"`
	PhotographerID string    `json:"photographer_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewVacationResponse(v *availability.Vacation) VacationResponse {
	return VacationResponse{
		ID:             v.ID,
		PhotographerID: v.PhotographerID,
		StartDate:      v.StartDate,
		EndDate:        v.EndDate,
		Reason:         v.Reason,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}
