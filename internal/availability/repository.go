package availability

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/storage"
)

// Repository persists slots and vacations.
type Repository interface {
	ListSlots(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Slot, error)
	// CreateSlot rejects a slot overlapping another slot of the same photographer.
	CreateSlot(ctx context.Context, s *Slot) error
	// DeleteSlot refuses to delete a booked slot.
	DeleteSlot(ctx context.Context, photographerID, id string) error

	// SyncSlots recomputes the booked marker of the photographer's slots dated in dr
	// from the committed reservations of source, read inside the slots critical section.
	// It returns how many slots changed.
	SyncSlots(ctx context.Context, photographerID string, dr schedule.DateRange, source ReservationSource, at time.Time) (int, error)

	ListVacations(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Vacation, error)
	CreateVacation(ctx context.Context, v *Vacation) error
	DeleteVacation(ctx context.Context, photographerID, id string) error
}

type storeRepository struct {
	slots     storage.Collection[Slot]
	vacations storage.Collection[Vacation]
}

// NewStoreRepository creates a Repository over the slots and vacations collections.
func NewStoreRepository(slots storage.Collection[Slot], vacations storage.Collection[Vacation]) Repository {
	return &storeRepository{
		slots:     slots,
		vacations: vacations,
	}
}

func (r *storeRepository) ListSlots(ctx context.Context, photographerID string, dr schedule.DateRange) ([]*Slot, error) {
	all, err := r.slots.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Slot
	for i := range all {
		s := &all[i]
		if s.PhotographerID == photographerID && dr.Contains(s.Date) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b *Slot) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (r *storeRepository) CreateSlot(ctx context.Context, s *Slot) error {
	return r.slots.Update(ctx, func(all []Slot) ([]Slot, error) {
		iv := s.Interval()
		for i := range all {
			other := &all[i]
			if other.PhotographerID == s.PhotographerID && other.Interval().Overlaps(iv) {
				return nil, ErrSlotOverlap.WithDetail("slot %s covers %s", other.ID, other.Interval())
			}
		}
		return append(all, *s), nil
	})
}

func (r *storeRepository) DeleteSlot(ctx context.Context, photographerID, id string) error {
	return r.slots.Update(ctx, func(all []Slot) ([]Slot, error) {
		idx := slices.IndexFunc(all, func(s Slot) bool {
			return s.ID == id && s.PhotographerID == photographerID
		})
		if idx < 0 {
			return nil, ErrSlotNotFound
		}
		if all[idx].Booked {
			return nil, ErrSlotBooked.WithDetail("held by booking %s", all[idx].BookingID)
		}
		return slices.Delete(all, idx, idx+1), nil
	})
}

func (r *storeRepository) SyncSlots(ctx context.Context, photographerID string, dr schedule.DateRange, source ReservationSource, at time.Time) (int, error) {
	// Bookings are read while the slots are held; a bookings Load never waits on a gate.
	rctx := context.WithoutCancel(ctx)
	return storage.Mutate(ctx, r.slots, func(all []Slot) ([]Slot, int, error) {
		reservations, err := source.Reservations(rctx, photographerID, dr)
		if err != nil {
			return nil, 0, err
		}
		committed := make(map[string][]conflict.Reservation)
		for _, c := range reservations {
			if c.Committed && c.PhotographerID == photographerID {
				committed[c.Interval.Date] = append(committed[c.Interval.Date], c)
			}
		}

		changed := 0
		for i := range all {
			s := &all[i]
			if s.PhotographerID != photographerID || !dr.Contains(s.Date) {
				continue
			}

			holder := holderOf(s, committed[s.Date])
			if s.BookingID == holder && s.Booked == (holder != "") {
				continue
			}
			s.Booked = holder != ""
			s.BookingID = holder
			s.UpdatedAt = at
			changed++
		}
		return all, changed, nil
	})
}

// holderOf picks the committed reservation consuming s. The current holder is
// kept while it still overlaps; otherwise the first overlapping one wins.
func holderOf(s *Slot, committed []conflict.Reservation) string {
	iv := s.Interval()
	holder := ""
	for _, c := range committed {
		if !c.Interval.Overlaps(iv) {
			continue
		}
		if c.ID == s.BookingID {
			return c.ID
		}
		if holder == "" {
			holder = c.ID
		}
	}
	return holder
}

func (r *storeRepository) ListVacations(ctx context.Context, photographerID string, dr schedule.DateRange) ([]*Vacation, error) {
	all, err := r.vacations.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Vacation
	for i := range all {
		v := &all[i]
		if v.PhotographerID == photographerID && dr.Intersects(v.Range()) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b *Vacation) int {
		return cmp.Or(cmp.Compare(a.StartDate, b.StartDate), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *storeRepository) CreateVacation(ctx context.Context, v *Vacation) error {
	return r.vacations.Update(ctx, func(all []Vacation) ([]Vacation, error) {
		return append(all, *v), nil
	})
}

func (r *storeRepository) DeleteVacation(ctx context.Context, photographerID, id string) error {
	return r.vacations.Update(ctx, func(all []Vacation) ([]Vacation, error) {
		idx := slices.IndexFunc(all, func(v Vacation) bool {
			return v.ID == id && v.PhotographerID == photographerID
		})
		if idx < 0 {
			return nil, ErrVacationNotFound
		}
		return slices.Delete(all, idx, idx+1), nil
	})
}
