package booking

import (
	"cmp"
	"context"
	"slices"

	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/storage"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)

	// Create appends b after check accepts the current bookings.
	// check runs inside the collection's critical section.
	Create(ctx context.Context, b *Booking, check func(existing []Booking) error) error

	// Modify applies fn to booking id inside the collection's critical section
	// and returns the stored result. Nothing is written when fn fails.
	Modify(ctx context.Context, id string, fn func(b *Booking, all []Booking) error) (*Booking, error)

	// Reservations lists the photographer's bookings dated inside r.
	Reservations(ctx context.Context, photographerID string, r schedule.DateRange) ([]conflict.Reservation, error)
}

type storeRepository struct {
	bookings storage.Collection[Booking]
}

// NewStoreRepository creates a Repository over the bookings collection.
func NewStoreRepository(bookings storage.Collection[Booking]) Repository {
	return &storeRepository{bookings: bookings}
}

func (r *storeRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	all, err := r.bookings.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(all, func(b Booking) bool { return b.ID == id })
	if idx < 0 {
		return nil, ErrNotFound
	}
	return &all[idx], nil
}

func (r *storeRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	all, err := r.bookings.Load(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []*Booking
	for i := range all {
		b := &all[i]
		if filter.PhotographerID != "" && b.PhotographerID != filter.PhotographerID {
			continue
		}
		if filter.ClientID != "" && b.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if !filter.Dates.Contains(b.Date) {
			continue
		}
		matched = append(matched, b)
	}

	// IDs are UUIDv7, so the final key falls back to creation order.
	slices.SortFunc(matched, func(a, b *Booking) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.ID, b.ID),
		)
	})

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	total := len(matched)
	start := min((filter.Page-1)*filter.PageSize, total)
	end := min(start+filter.PageSize, total)

	return matched[start:end], total, nil
}

func (r *storeRepository) Create(ctx context.Context, b *Booking, check func(existing []Booking) error) error {
	return r.bookings.Update(ctx, func(all []Booking) ([]Booking, error) {
		if err := check(all); err != nil {
			return nil, err
		}
		return append(all, *b), nil
	})
}

func (r *storeRepository) Modify(ctx context.Context, id string, fn func(b *Booking, all []Booking) error) (*Booking, error) {
	return storage.Mutate(ctx, r.bookings, func(all []Booking) ([]Booking, *Booking, error) {
		idx := slices.IndexFunc(all, func(b Booking) bool { return b.ID == id })
		if idx < 0 {
			return nil, nil, ErrNotFound
		}

		next := all[idx]
		if err := fn(&next, all); err != nil {
			return nil, nil, err
		}
		all[idx] = next

		result := next
		return all, &result, nil
	})
}

func (r *storeRepository) Reservations(ctx context.Context, photographerID string, dr schedule.DateRange) ([]conflict.Reservation, error) {
	all, err := r.bookings.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []conflict.Reservation
	for i := range all {
		b := &all[i]
		if b.PhotographerID == photographerID && dr.Contains(b.Date) {
			out = append(out, b.Reservation())
		}
	}
	return out, nil
}

// reservationsOf converts stored bookings for the conflict detector.
func reservationsOf(all []Booking) []conflict.Reservation {
	out := make([]conflict.Reservation, 0, len(all))
	for i := range all {
		out = append(out, all[i].Reservation())
	}
	return out
}
