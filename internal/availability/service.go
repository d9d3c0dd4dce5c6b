package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

type DeclareSlotRequest struct {
	PhotographerID string
	Date           string
	StartTime      string
	EndTime        string
}

type AddVacationRequest struct {
	PhotographerID string
	StartDate      string
	EndDate        string
	Reason         string
}

type Service interface {
	DeclareSlot(ctx context.Context, actor auth.Actor, req DeclareSlotRequest) (*Slot, error)
	RemoveSlot(ctx context.Context, actor auth.Actor, photographerID, slotID string) error
	ListSlots(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Slot, error)

	AddVacation(ctx context.Context, actor auth.Actor, req AddVacationRequest) (*Vacation, error)
	RemoveVacation(ctx context.Context, actor auth.Actor, photographerID, vacationID string) error
	ListVacations(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Vacation, error)

	// Query returns every declared slot in r with its computed state.
	Query(ctx context.Context, photographerID string, r schedule.DateRange) ([]SlotAvailability, error)

	// Blackouts returns the vacations of a photographer intersecting r.
	Blackouts(ctx context.Context, photographerID string, r schedule.DateRange) ([]conflict.Blackout, error)

	// CommitSlots and ReleaseSlots bring the markers of iv's day in line with the
	// bookings as they are now. A commit for a booking that is no longer confirmed
	// marks nothing, and a release hands a slot over to any other committed booking.
	CommitSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error
	ReleaseSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error

	// Rebuild recomputes the booked markers of a photographer's slots from
	// confirmed and completed bookings and returns how many slots changed.
	Rebuild(ctx context.Context, actor auth.Actor, photographerID string) (int, error)
}

type service struct {
	repo         Repository
	users        user.Service
	reservations ReservationSource
	log          *slog.Logger
	now          func() time.Time
}

func NewService(repo Repository, users user.Service, reservations ReservationSource, log *slog.Logger) Service {
	return &service{
		repo:         repo,
		users:        users,
		reservations: reservations,
		log:          log.With("component", "availability"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// authorize allows admins and the photographer managing their own calendar.
func authorize(actor auth.Actor, photographerID string) error {
	if actor.IsAdmin() || actor.IsPhotographer(photographerID) {
		return nil
	}
	return ErrPermissionDenied
}

func (s *service) requirePhotographer(ctx context.Context, photographerID string) error {
	if _, err := s.users.Require(ctx, photographerID, user.RolePhotographer); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrPhotographerNotFound
		}
		return err
	}
	return nil
}

func (s *service) DeclareSlot(ctx context.Context, actor auth.Actor, req DeclareSlotRequest) (*Slot, error) {
	if err := authorize(actor, req.PhotographerID); err != nil {
		return nil, err
	}

	iv, err := schedule.NewInterval(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}

	if err := s.requirePhotographer(ctx, req.PhotographerID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate slot id: %w", err)
	}

	now := s.now()
	slot := &Slot{
		ID:             id.String(),
		PhotographerID: req.PhotographerID,
		Date:           iv.Date,
		StartTime:      iv.Start,
		EndTime:        iv.End,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *service) RemoveSlot(ctx context.Context, actor auth.Actor, photographerID, slotID string) error {
	if err := authorize(actor, photographerID); err != nil {
		return err
	}
	return s.repo.DeleteSlot(ctx, photographerID, slotID)
}

func (s *service) ListSlots(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Slot, error) {
	return s.repo.ListSlots(ctx, photographerID, r)
}

func (s *service) AddVacation(ctx context.Context, actor auth.Actor, req AddVacationRequest) (*Vacation, error) {
	if err := authorize(actor, req.PhotographerID); err != nil {
		return nil, err
	}

	r, err := schedule.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, ErrInvalidInput.WithDetail("%v", err)
	}
	if r.From == "" || r.To == "" {
		return nil, ErrInvalidInput.WithDetail("start_date and end_date are required")
	}

	if err := s.requirePhotographer(ctx, req.PhotographerID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate vacation id: %w", err)
	}

	now := s.now()
	v := &Vacation{
		ID:             id.String(),
		PhotographerID: req.PhotographerID,
		StartDate:      r.From,
		EndDate:        r.To,
		Reason:         req.Reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateVacation(ctx, v); err != nil {
		return nil, err
	}

	// Existing bookings inside the window are left alone; the window only blocks new ones.
	s.log.Info("vacation added", "photographer_id", v.PhotographerID, "from", v.StartDate, "to", v.EndDate)
	return v, nil
}

func (s *service) RemoveVacation(ctx context.Context, actor auth.Actor, photographerID, vacationID string) error {
	if err := authorize(actor, photographerID); err != nil {
		return err
	}
	return s.repo.DeleteVacation(ctx, photographerID, vacationID)
}

func (s *service) ListVacations(ctx context.Context, photographerID string, r schedule.DateRange) ([]*Vacation, error) {
	return s.repo.ListVacations(ctx, photographerID, r)
}

func (s *service) Query(ctx context.Context, photographerID string, r schedule.DateRange) ([]SlotAvailability, error) {
	slots, err := s.repo.ListSlots(ctx, photographerID, r)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return []SlotAvailability{}, nil
	}

	reservations, err := s.reservations.Reservations(ctx, photographerID, r)
	if err != nil {
		return nil, err
	}
	vacations, err := s.repo.ListVacations(ctx, photographerID, r)
	if err != nil {
		return nil, err
	}

	return NewIndex(reservations, vacations).EvaluateAll(slots), nil
}

func (s *service) Blackouts(ctx context.Context, photographerID string, r schedule.DateRange) ([]conflict.Blackout, error) {
	vacations, err := s.repo.ListVacations(ctx, photographerID, r)
	if err != nil {
		return nil, err
	}
	out := make([]conflict.Blackout, 0, len(vacations))
	for _, v := range vacations {
		out = append(out, v.Blackout())
	}
	return out, nil
}

func (s *service) CommitSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error {
	return s.syncDay(ctx, "commit", photographerID, iv.Date, bookingID)
}

func (s *service) ReleaseSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error {
	return s.syncDay(ctx, "release", photographerID, iv.Date, bookingID)
}

func (s *service) syncDay(ctx context.Context, op, photographerID, date, bookingID string) error {
	day := schedule.DateRange{From: date, To: date}
	n, err := s.repo.SyncSlots(ctx, photographerID, day, s.reservations, s.now())
	if err != nil {
		return err
	}
	s.log.Debug("slots synced", "op", op, "booking_id", bookingID, "date", date, "changed", n)
	return nil
}

func (s *service) Rebuild(ctx context.Context, actor auth.Actor, photographerID string) (int, error) {
	if err := authorize(actor, photographerID); err != nil {
		return 0, err
	}

	n, err := s.repo.SyncSlots(ctx, photographerID, schedule.DateRange{}, s.reservations, s.now())
	if err != nil {
		return 0, err
	}
	s.log.Info("slot markers rebuilt", "photographer_id", photographerID, "changed", n)
	return n, nil
}
