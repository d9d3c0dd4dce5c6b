package http

import (
	"time"

	"github.com/nekogravitycat/studio-booking-backend/internal/booking"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

// CreateBookingRequest is the body of POST /bookings.
// ClientID defaults to the caller.
type CreateBookingRequest struct {
	ClientID       string `json:"client_id" binding:"omitempty,uuid"`
	PhotographerID string `json:"photographer_id" binding:"required,uuid"`
	Date           string `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime      string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime        string `json:"end_time" binding:"required,datetime=15:04"`
	Type           string `json:"type" binding:"max=100"`
	Location       string `json:"location" binding:"max=200"`
	Price          int64  `json:"price" binding:"gte=0"`
	Deposit        int64  `json:"deposit" binding:"gte=0"`
	IsPaid         bool   `json:"is_paid"`
	Notes          string `json:"notes" binding:"max=2000"`
	Confirm        bool   `json:"confirm"`
}

func (r *CreateBookingRequest) ToDomain(actorID string) booking.CreateRequest {
	clientID := r.ClientID
	if clientID == "" {
		clientID = actorID
	}
	return booking.CreateRequest{
		ClientID:       clientID,
		PhotographerID: r.PhotographerID,
		Date:           r.Date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Type:           r.Type,
		Location:       r.Location,
		Price:          r.Price,
		Deposit:        r.Deposit,
		IsPaid:         r.IsPaid,
		Notes:          r.Notes,
		Confirm:        r.Confirm,
	}
}

// TransitionRequest is the body of POST /bookings/:id/transitions.
type TransitionRequest struct {
	Action          string `json:"action" binding:"required,oneof=confirm cancel complete reschedule"`
	Reason          string `json:"reason" binding:"max=500"`
	Date            string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	StartTime       string `json:"start_time" binding:"omitempty,datetime=15:04"`
	EndTime         string `json:"end_time" binding:"omitempty,datetime=15:04"`
	ExpectedVersion int64  `json:"expected_version" binding:"gte=0"`
}

func (r *TransitionRequest) Payload() booking.TransitionPayload {
	return booking.TransitionPayload{
		Reason:          r.Reason,
		Date:            r.Date,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		ExpectedVersion: r.ExpectedVersion,
	}
}

type ListBookingsRequest struct {
	request.ListParams
	request.DateRangeParams
	PhotographerID string `form:"photographer_id" binding:"omitempty,uuid"`
	ClientID       string `form:"client_id" binding:"omitempty,uuid"`
	Status         string `form:"status" binding:"omitempty,oneof=pending confirmed completed cancelled"`
}

// Filter converts the query into a repository filter. Page defaults are applied here
// so the response echoes what was actually served.
func (r *ListBookingsRequest) Filter() (booking.Filter, error) {
	dates, err := schedule.NewDateRange(r.From, r.To)
	if err != nil {
		return booking.Filter{}, booking.ErrValidation.WithDetail("%v", err)
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	return booking.Filter{
		PhotographerID: r.PhotographerID,
		ClientID:       r.ClientID,
		Status:         booking.Status(r.Status),
		Dates:          dates,
		Page:           r.Page,
		PageSize:       r.PageSize,
	}, nil
}

type UserTag struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

type BookingResponse struct {
	ID           string     `json:"id"`
	Client       UserTag    `json:"client"`
	Photographer UserTag    `json:"photographer"`
	Date         string     `json:"date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Type         string     `json:"type,omitempty"`
	Location     string     `json:"location,omitempty"`
	Price        int64      `json:"price"`
	Deposit      int64      `json:"deposit"`
	IsPaid       bool       `json:"is_paid"`
	Notes        string     `json:"notes,omitempty"`
	Status       string     `json:"status"`
	Version      int64      `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func NewBookingResponse(v booking.View) BookingResponse {
	b := v.Booking
	return BookingResponse{
		ID:           b.ID,
		Client:       UserTag{ID: b.ClientID, DisplayName: v.ClientName},
		Photographer: UserTag{ID: b.PhotographerID, DisplayName: v.PhotographerName},
		Date:         b.Date,
		StartTime:    b.StartTime.String(),
		EndTime:      b.EndTime.String(),
		Type:         b.Type,
		Location:     b.Location,
		Price:        b.Price,
		Deposit:      b.Deposit,
		IsPaid:       b.IsPaid,
		Notes:        b.Notes,
		Status:       string(b.Status),
		Version:      b.Version,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		CompletedAt:  b.CompletedAt,
		CancelledAt:  b.CancelledAt,
	}
}
