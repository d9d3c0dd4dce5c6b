// Package conflict decides whether a proposed booking interval collides with
// an existing reservation or a photographer's blackout window.
package conflict

import (
	"fmt"

	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

type Kind string

const (
	KindBooking  Kind = "booking"
	KindVacation Kind = "vacation"
)

// Reservation is the scheduling view of a booking.
// Active is true for bookings that still hold their interval (pending or confirmed).
// Committed is true for bookings that consume declared slots (confirmed or completed).
type Reservation struct {
	ID             string
	PhotographerID string
	Interval       schedule.Interval
	Active         bool
	Committed      bool
}

// Blackout is an inclusive date range during which a photographer takes no bookings.
type Blackout struct {
	ID             string
	PhotographerID string
	Range          schedule.DateRange
}

// Candidate is the interval being proposed. ExcludeID skips one reservation,
// which lets a booking be rescheduled over its own current interval.
type Candidate struct {
	PhotographerID string
	Interval       schedule.Interval
	ExcludeID      string
}

// Conflict describes the first thing a candidate collided with.
type Conflict struct {
	Kind     Kind
	ID       string
	Interval schedule.Interval
	Range    schedule.DateRange
}

func (c *Conflict) String() string {
	switch c.Kind {
	case KindVacation:
		return fmt.Sprintf("photographer is on vacation from %s to %s (%s)", c.Range.From, c.Range.To, c.ID)
	default:
		return fmt.Sprintf("overlaps booking %s at %s", c.ID, c.Interval)
	}
}

// Check returns nil when cand is free, otherwise the first blackout or active
// reservation it collides with. Blackouts are reported ahead of reservations.
// Intervals are half-open, so back-to-back bookings never conflict.
func Check(cand Candidate, reservations []Reservation, blackouts []Blackout) *Conflict {
	for _, b := range blackouts {
		if b.PhotographerID != cand.PhotographerID {
			continue
		}
		if b.Range.Contains(cand.Interval.Date) {
			return &Conflict{Kind: KindVacation, ID: b.ID, Range: b.Range}
		}
	}

	for _, r := range reservations {
		if !r.Active || r.PhotographerID != cand.PhotographerID {
			continue
		}
		if cand.ExcludeID != "" && r.ID == cand.ExcludeID {
			continue
		}
		if r.Interval.Overlaps(cand.Interval) {
			return &Conflict{Kind: KindBooking, ID: r.ID, Interval: r.Interval}
		}
	}

	return nil
}
