// Package notify delivers the side effects of booking transitions: user
// notifications and audit records. Delivery happens after the transition is
// durable and never feeds back into it.
package notify

import "time"

// Kind is the notification kind understood by the notification service.
type Kind string

const (
	KindBookingCreated   Kind = "booking_created"
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindBookingCompleted Kind = "booking_completed"
)

// Event describes one accepted transition. From is empty for a newly created booking.
type Event struct {
	BookingID      string
	Action         string
	From           string
	To             string
	ActorID        string
	ClientID       string
	PhotographerID string
	Date           string
	StartTime      string
	EndTime        string
	Reason         string
	OccurredAt     time.Time
}

// KindFor maps a lifecycle action to the notification it triggers.
// Reschedules are audited but not notified.
func KindFor(action string) (Kind, bool) {
	switch action {
	case "create":
		return KindBookingCreated, true
	case "confirm":
		return KindBookingConfirmed, true
	case "cancel":
		return KindBookingCancelled, true
	case "complete":
		return KindBookingCompleted, true
	}
	return "", false
}

// Recipients returns the distinct, non-empty parties of the booking.
func (e Event) Recipients() []string {
	out := make([]string, 0, 2)
	if e.ClientID != "" {
		out = append(out, e.ClientID)
	}
	if e.PhotographerID != "" && e.PhotographerID != e.ClientID {
		out = append(out, e.PhotographerID)
	}
	return out
}

// Payload is the structured body shared by notifications and audit records.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"booking_id":      e.BookingID,
		"action":          e.Action,
		"from":            e.From,
		"to":              e.To,
		"actor_id":        e.ActorID,
		"client_id":       e.ClientID,
		"photographer_id": e.PhotographerID,
		"date":            e.Date,
		"start_time":      e.StartTime,
		"end_time":        e.EndTime,
		"occurred_at":     e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}
