package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/conflict"
	"github.com/nekogravitycat/studio-booking-backend/internal/notify"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

type CreateRequest struct {
	ClientID       string `validate:"required"`
	PhotographerID string `validate:"required"`
	Date           string `validate:"required,datetime=2006-01-02"`
	StartTime      string `validate:"required,datetime=15:04"`
	EndTime        string `validate:"required,datetime=15:04"`
	Type           string `validate:"max=100"`
	Location       string `validate:"max=200"`
	Price          int64  `validate:"gte=0"`
	Deposit        int64  `validate:"gte=0,ltefield=Price"`
	IsPaid         bool
	Notes          string `validate:"max=2000"`
	// Confirm creates the booking already confirmed. Admins and the photographer only.
	Confirm bool
}

// TransitionPayload carries the action-specific inputs of a transition.
type TransitionPayload struct {
	// Reason is appended to the notes on cancel.
	Reason string `validate:"max=500"`

	// Date, StartTime and EndTime are the new interval on reschedule.
	Date      string `validate:"omitempty,datetime=2006-01-02"`
	StartTime string `validate:"omitempty,datetime=15:04"`
	EndTime   string `validate:"omitempty,datetime=15:04"`

	// ExpectedVersion, when non-zero, must match the stored version. A mismatch
	// is reported immediately instead of being retried.
	ExpectedVersion int64 `validate:"gte=0"`
}

// Calendar is the slice of the availability service the lifecycle needs.
type Calendar interface {
	Blackouts(ctx context.Context, photographerID string, r schedule.DateRange) ([]conflict.Blackout, error)
	CommitSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error
	ReleaseSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error
}

// Emitter receives accepted transitions.
type Emitter interface {
	Emit(e notify.Event) bool
}

type Config struct {
	// HorizonDays bounds how far ahead a booking may be placed.
	HorizonDays int
	// MaxRetries is how many times a transition is retried after a concurrent modification.
	MaxRetries int
	// Location is the studio's time zone, used to decide what "today" is.
	Location *time.Location
}

type Service interface {
	Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Booking, error)
	Transition(ctx context.Context, actor auth.Actor, id string, action Action, payload TransitionPayload) (*Booking, error)
	GetByID(ctx context.Context, actor auth.Actor, id string) (*Booking, error)
	List(ctx context.Context, actor auth.Actor, filter Filter) ([]*Booking, int, error)
	Views(ctx context.Context, bookings []*Booking) []View
}

type service struct {
	repo     Repository
	users    user.Service
	calendar Calendar
	events   Emitter
	validate *validator.Validate
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, users user.Service, calendar Calendar, events Emitter, log *slog.Logger, cfg Config) Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 365
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &service{
		repo:     repo,
		users:    users,
		calendar: calendar,
		events:   events,
		validate: validator.New(),
		log:      log.With("component", "booking"),
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// checkInterval parses the interval and rejects dates outside [today, today+HorizonDays].
func (s *service) checkInterval(date, start, end string) (schedule.Interval, error) {
	iv, err := schedule.NewInterval(date, start, end)
	if err != nil {
		return schedule.Interval{}, ErrValidation.WithDetail("%v", err)
	}
	window := schedule.Window(s.now(), s.cfg.Location, s.cfg.HorizonDays)
	if !window.Contains(iv.Date) {
		return schedule.Interval{}, ErrValidation.WithDetail("date %s is outside the booking window %s to %s", iv.Date, window.From, window.To)
	}
	return iv, nil
}

func (s *service) validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return ErrValidation.WithDetail("%s", strings.Join(fields, "; "))
	}
	return ErrValidation.WithCause(err)
}

// resolveParty checks that id is an active user with role. Missing users map to notFound.
func (s *service) resolveParty(ctx context.Context, party, id string, role user.Role, notFound error) error {
	_, err := s.users.Require(ctx, id, role)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, user.ErrNotFound):
		return notFound
	case errors.Is(err, user.ErrInactiveUser), errors.Is(err, user.ErrRoleMismatch):
		return ErrValidation.WithDetail("%s %s: %v", party, id, err)
	default:
		return err
	}
}

func canCreate(actor auth.Actor, req CreateRequest) bool {
	if actor.IsAdmin() || actor.IsPhotographer(req.PhotographerID) {
		return true
	}
	return !req.Confirm && actor.Role == user.RoleClient && actor.UserID == req.ClientID
}

func (s *service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (*Booking, error) {
	// 1. Validate Input
	if err := s.validate.Struct(req); err != nil {
		return nil, s.validationError(err)
	}
	iv, err := s.checkInterval(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	// 2. Permission Check
	if !canCreate(actor, req) {
		return nil, ErrPermissionDenied
	}

	// 3. Validate Parties Exist
	if err := s.resolveParty(ctx, "client", req.ClientID, "", ErrClientNotFound); err != nil {
		return nil, err
	}
	if err := s.resolveParty(ctx, "photographer", req.PhotographerID, user.RolePhotographer, ErrPhotographerNotFound); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate booking id: %w", err)
	}

	now := s.now()
	status := StatusPending
	if req.Confirm {
		status = StatusConfirmed
	}
	b := &Booking{
		ID:             id.String(),
		ClientID:       req.ClientID,
		PhotographerID: req.PhotographerID,
		Date:           iv.Date,
		StartTime:      iv.Start,
		EndTime:        iv.End,
		Type:           req.Type,
		Location:       req.Location,
		Price:          req.Price,
		Deposit:        req.Deposit,
		IsPaid:         req.IsPaid,
		Notes:          req.Notes,
		Status:         status,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 4. Check for Conflicts and Persist
	wctx := context.WithoutCancel(ctx)
	err = s.repo.Create(ctx, b, func(existing []Booking) error {
		return s.detect(wctx, conflict.Candidate{PhotographerID: b.PhotographerID, Interval: iv}, existing)
	})
	if err != nil {
		return nil, err
	}

	if status == StatusConfirmed {
		s.commitSlots(ctx, b)
	}
	s.emit(actor, b, actionCreate, "", "")

	return b, nil
}

// detect runs the conflict detector against the stored bookings and the photographer's vacations.
func (s *service) detect(ctx context.Context, cand conflict.Candidate, existing []Booking) error {
	day := schedule.DateRange{From: cand.Interval.Date, To: cand.Interval.Date}
	blackouts, err := s.calendar.Blackouts(ctx, cand.PhotographerID, day)
	if err != nil {
		return err
	}
	if c := conflict.Check(cand, reservationsOf(existing), blackouts); c != nil {
		return ErrSchedulingConflict.WithDetail("%s", c)
	}
	return nil
}

func authorizeTransition(actor auth.Actor, b *Booking, a Action) error {
	if actor.IsAdmin() || actor.IsPhotographer(b.PhotographerID) {
		return nil
	}
	// Clients may withdraw or move their own booking, nothing else.
	if actor.UserID == b.ClientID && (a == ActionCancel || a == ActionReschedule) {
		return nil
	}
	return ErrPermissionDenied
}

func (s *service) Transition(ctx context.Context, actor auth.Actor, id string, action Action, p TransitionPayload) (*Booking, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, s.validationError(err)
	}

	var target schedule.Interval
	if action == ActionReschedule {
		iv, err := s.checkInterval(p.Date, p.StartTime, p.EndTime)
		if err != nil {
			return nil, err
		}
		target = iv
	}

	for attempt := 0; ; attempt++ {
		before, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		to, err := Next(before.Status, action)
		if err != nil {
			return nil, err
		}
		if err := authorizeTransition(actor, before, action); err != nil {
			return nil, err
		}
		if p.ExpectedVersion != 0 && p.ExpectedVersion != before.Version {
			return nil, ErrConcurrentModification.WithDetail("expected version %d, found %d", p.ExpectedVersion, before.Version)
		}

		after, err := s.apply(ctx, before, action, to, target, p)
		if errors.Is(err, ErrConcurrentModification) && p.ExpectedVersion == 0 && attempt < s.cfg.MaxRetries {
			s.log.Debug("retrying transition", "booking_id", id, "action", string(action), "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.syncSlots(ctx, before, after, action)
		s.emit(actor, after, string(action), before.Status, p.Reason)
		return after, nil
	}
}

// apply commits one transition if the booking still matches what before observed.
func (s *service) apply(ctx context.Context, before *Booking, action Action, to Status, target schedule.Interval, p TransitionPayload) (*Booking, error) {
	wctx := context.WithoutCancel(ctx)
	return s.repo.Modify(ctx, before.ID, func(b *Booking, all []Booking) error {
		if b.Status != before.Status || b.Version != before.Version {
			return ErrConcurrentModification.WithDetail("booking is now %s at version %d", b.Status, b.Version)
		}

		now := s.now()
		switch action {
		case ActionReschedule:
			cand := conflict.Candidate{PhotographerID: b.PhotographerID, Interval: target, ExcludeID: b.ID}
			if err := s.detect(wctx, cand, all); err != nil {
				return err
			}
			b.Date = target.Date
			b.StartTime = target.Start
			b.EndTime = target.End
		case ActionCancel:
			b.CancelledAt = &now
			if reason := strings.TrimSpace(p.Reason); reason != "" {
				b.Notes = appendNote(b.Notes, "Cancelled: "+reason)
			}
		case ActionComplete:
			b.CompletedAt = &now
		}

		b.Status = to
		b.Version++
		b.UpdatedAt = now
		return nil
	})
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

// syncSlots brings the slot markers touched by a committed transition in line
// with the bookings. The markers are recomputed from the stored bookings, so a
// sync that lands after a later transition still ends in the later state.
// Failures are logged; Rebuild repairs the markers from the bookings.
func (s *service) syncSlots(ctx context.Context, before, after *Booking, action Action) {
	switch action {
	case ActionConfirm:
		s.commitSlots(ctx, after)
	case ActionCancel:
		if before.Status.Committed() {
			s.releaseSlots(ctx, after)
		}
	case ActionReschedule:
		if after.Status.Committed() {
			s.releaseSlots(ctx, before)
			s.commitSlots(ctx, after)
		}
	}
}

func (s *service) commitSlots(ctx context.Context, b *Booking) {
	if err := s.calendar.CommitSlots(ctx, b.PhotographerID, b.Interval(), b.ID); err != nil {
		s.log.Warn("commit slots failed", "booking_id", b.ID, "error", err)
	}
}

func (s *service) releaseSlots(ctx context.Context, b *Booking) {
	if err := s.calendar.ReleaseSlots(ctx, b.PhotographerID, b.Interval(), b.ID); err != nil {
		s.log.Warn("release slots failed", "booking_id", b.ID, "error", err)
	}
}

func (s *service) emit(actor auth.Actor, b *Booking, action string, from Status, reason string) {
	s.events.Emit(notify.Event{
		BookingID:      b.ID,
		Action:         action,
		From:           string(from),
		To:             string(b.Status),
		ActorID:        actor.UserID,
		ClientID:       b.ClientID,
		PhotographerID: b.PhotographerID,
		Date:           b.Date,
		StartTime:      b.StartTime.String(),
		EndTime:        b.EndTime.String(),
		Reason:         reason,
		OccurredAt:     b.UpdatedAt,
	})
}

func canView(actor auth.Actor, b *Booking) bool {
	return actor.IsAdmin() || actor.UserID == b.ClientID || actor.IsPhotographer(b.PhotographerID)
}

func (s *service) GetByID(ctx context.Context, actor auth.Actor, id string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, b) {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, filter Filter) ([]*Booking, int, error) {
	// Non-admins only ever see their own bookings.
	switch {
	case actor.IsAdmin():
	case actor.Role == user.RolePhotographer:
		filter.PhotographerID = actor.UserID
	default:
		filter.ClientID = actor.UserID
	}
	return s.repo.List(ctx, filter)
}

func (s *service) Views(ctx context.Context, bookings []*Booking) []View {
	ids := make([]string, 0, 2*len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ClientID, b.PhotographerID)
	}

	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		s.log.Warn("display name lookup failed", "error", err)
	}

	views := make([]View, len(bookings))
	for i, b := range bookings {
		views[i] = View{
			Booking:          b,
			ClientName:       names[b.ClientID],
			PhotographerName: names[b.PhotographerID],
		}
	}
	return views
}
