package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

var (
	ErrNotFound               = apperror.New(http.StatusNotFound, "booking not found")
	ErrClientNotFound         = apperror.New(http.StatusNotFound, "client not found")
	ErrPhotographerNotFound   = apperror.New(http.StatusNotFound, "photographer not found")
	ErrValidation             = apperror.New(http.StatusBadRequest, "invalid booking request")
	ErrPermissionDenied       = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidTransition      = apperror.New(http.StatusConflict, "invalid status transition")
	ErrSchedulingConflict     = apperror.New(http.StatusConflict, "scheduling conflict")
	ErrConcurrentModification = apperror.New(http.StatusConflict, "booking was modified concurrently, retry")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active bookings hold their interval against other bookings.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Committed bookings consume the photographer's declared slots.
func (s Status) Committed() bool {
	return s == StatusConfirmed || s == StatusCompleted
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Booking is a commitment between one client and one photographer.
// Money amounts are in minor currency units. Bookings are never deleted;
// cancellation is a status.
type Booking struct {
	ID             string         `json:"id"`
	ClientID       string         `json:"client_id"`
	PhotographerID string         `json:"photographer_id"`
	Date           string         `json:"date"`
	StartTime      schedule.Clock `json:"start_time"`
	EndTime        schedule.Clock `json:"end_time"`
	Type           string         `json:"type,omitempty"`
	Location       string         `json:"location,omitempty"`
	Price          int64          `json:"price"`
	Deposit        int64          `json:"deposit"`
	IsPaid         bool           `json:"is_paid"`
	Notes          string         `json:"notes,omitempty"`
	Status         Status         `json:"status"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CancelledAt    *time.Time     `json:"cancelled_at,omitempty"`
}

func (b *Booking) Interval() schedule.Interval {
	return schedule.Interval{Date: b.Date, Start: b.StartTime, End: b.EndTime}
}

func (b *Booking) Reservation() conflict.Reservation {
	return conflict.Reservation{
		ID:             b.ID,
		PhotographerID: b.PhotographerID,
		Interval:       b.Interval(),
		Active:         b.Status.Active(),
		Committed:      b.Status.Committed(),
	}
}

// View is a booking joined with the display names of its parties.
// Names are looked up on read and never stored.
type View struct {
	*Booking
	ClientName       string
	PhotographerName string
}

type Filter struct {
	PhotographerID string
	ClientID       string
	Status         Status
	Dates          schedule.DateRange
	Page           int
	PageSize       int
}
