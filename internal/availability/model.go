package availability

import (
	"context"
	"net/http"
	"time"

	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

var (
	ErrSlotNotFound         = apperror.New(http.StatusNotFound, "slot not found")
	ErrVacationNotFound     = apperror.New(http.StatusNotFound, "vacation not found")
	ErrPhotographerNotFound = apperror.New(http.StatusNotFound, "photographer not found")
	ErrSlotOverlap          = apperror.New(http.StatusConflict, "slot overlaps an existing slot")
	ErrSlotBooked           = apperror.New(http.StatusConflict, "slot is committed to a booking")
	ErrInvalidInput         = apperror.New(http.StatusBadRequest, "invalid input parameters")
	ErrPermissionDenied     = apperror.New(http.StatusForbidden, "permission denied")
)

// Slot is a photographer-declared open interval. Booked is set while a
// confirmed or completed booking consumes it.
type Slot struct {
	ID             string         `json:"id"`
	PhotographerID string         `json:"photographer_id"`
	Date           string         `json:"date"`
	StartTime      schedule.Clock `json:"start_time"`
	EndTime        schedule.Clock `json:"end_time"`
	Booked         bool           `json:"booked"`
	BookingID      string         `json:"booking_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (s *Slot) Interval() schedule.Interval {
	return schedule.Interval{Date: s.Date, Start: s.StartTime, End: s.EndTime}
}

// Vacation blacks out every day in [StartDate, EndDate].
type Vacation struct {
	ID             string    `json:"id"`
	PhotographerID string    `json:"photographer_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (v *Vacation) Range() schedule.DateRange {
	return schedule.DateRange{From: v.StartDate, To: v.EndDate}
}

func (v *Vacation) Blackout() conflict.Blackout {
	return conflict.Blackout{ID: v.ID, PhotographerID: v.PhotographerID, Range: v.Range()}
}

type State string

const (
	StateFree     State = "free"
	StateBooked   State = "booked"
	StateVacation State = "vacation"
)

// SlotAvailability is one declared slot together with its computed state.
// BookingID names the booking holding the slot when State is booked.
type SlotAvailability struct {
	Slot      Slot
	State     State
	BookingID string
}

// ReservationSource supplies the bookings of a photographer that fall in a date range.
type ReservationSource interface {
	Reservations(ctx context.Context, photographerID string, r schedule.DateRange) ([]conflict.Reservation, error)
}
