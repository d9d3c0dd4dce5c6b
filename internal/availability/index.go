package availability

import (
	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
)

// Index answers "is this slot free" for one photographer. Reservations and
// vacation days are bucketed by date so evaluating a slot only looks at its own day.
type Index struct {
	reservations map[string][]conflict.Reservation
	blackouts    map[string]bool
}

// NewIndex builds an index from the active reservations and vacations of a
// photographer. Inactive reservations are dropped.
func NewIndex(reservations []conflict.Reservation, vacations []*Vacation) *Index {
	ix := &Index{
		reservations: make(map[string][]conflict.Reservation),
		blackouts:    make(map[string]bool),
	}
	for _, r := range reservations {
		if r.Active {
			ix.reservations[r.Interval.Date] = append(ix.reservations[r.Interval.Date], r)
		}
	}
	for _, v := range vacations {
		for day := v.StartDate; day <= v.EndDate; {
			ix.blackouts[day] = true
			next := schedule.AddDays(day, 1)
			if next <= day {
				break
			}
			day = next
		}
	}
	return ix
}

// Evaluate computes the state of one slot. A booked marker or an active
// booking wins over a vacation covering the same day.
func (ix *Index) Evaluate(s *Slot) SlotAvailability {
	if s.Booked {
		return SlotAvailability{Slot: *s, State: StateBooked, BookingID: s.BookingID}
	}

	iv := s.Interval()
	for _, r := range ix.reservations[s.Date] {
		if r.Interval.Overlaps(iv) {
			return SlotAvailability{Slot: *s, State: StateBooked, BookingID: r.ID}
		}
	}

	if ix.blackouts[s.Date] {
		return SlotAvailability{Slot: *s, State: StateVacation}
	}

	return SlotAvailability{Slot: *s, State: StateFree}
}

// EvaluateAll computes the state of every slot, preserving order.
func (ix *Index) EvaluateAll(slots []*Slot) []SlotAvailability {
	out := make([]SlotAvailability, 0, len(slots))
	for _, s := range slots {
		out = append(out, ix.Evaluate(s))
	}
	return out
}
