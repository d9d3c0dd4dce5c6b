package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/studio-booking-backend/internal/auth"
	"github.com/nekogravitycat/studio-booking-backend/internal/availability"
	"github.com/nekogravitycat/studio-booking-backend/internal/notify"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/logger"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/schedule"
	"github.com/nekogravitycat/studio-booking-backend/internal/pkg/storage"
	"github.com/nekogravitycat/studio-booking-backend/internal/user"
)

const (
	adminID         = "01960000-0000-7000-8000-00000000000a"
	clientID        = "01960000-0000-7000-8000-0000000000c1"
	otherClientID   = "01960000-0000-7000-8000-0000000000c2"
	photographerID  = "01960000-0000-7000-8000-0000000000f1"
	photographer2ID = "01960000-0000-7000-8000-0000000000f2"
	retiredID       = "01960000-0000-7000-8000-0000000000f3"
)

var (
	adminActor        = auth.Actor{UserID: adminID, Role: user.RoleAdmin}
	clientActor       = auth.Actor{UserID: clientID, Role: user.RoleClient}
	otherClientActor  = auth.Actor{UserID: otherClientID, Role: user.RoleClient}
	photographerActor = auth.Actor{UserID: photographerID, Role: user.RolePhotographer}

	fixedNow = time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
)

func name(s string) *string { return &s }

func seedUsers() []user.User {
	return []user.User{
		{ID: adminID, Email: "admin@studio.test", Role: user.RoleAdmin, IsActive: true},
		{ID: clientID, Email: "ada@example.com", DisplayName: name("Ada Client"), Role: user.RoleClient, IsActive: true},
		{ID: otherClientID, Email: "bob@example.com", Role: user.RoleClient, IsActive: true},
		{ID: photographerID, Email: "pat@studio.test", DisplayName: name("Pat Lens"), Role: user.RolePhotographer, IsActive: true},
		{ID: photographer2ID, Email: "sam@studio.test", Role: user.RolePhotographer, IsActive: true},
		{ID: retiredID, Email: "old@studio.test", Role: user.RolePhotographer, IsActive: false},
	}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingEmitter) Emit(e notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc      Service
	repo     Repository
	users    user.Service
	avail    availability.Service
	bookings *storage.MemoryCollection[Booking]
	events   *recordingEmitter
}

func newFixture(t *testing.T, emitter Emitter) *fixture {
	t.Helper()

	users := user.NewService(user.NewCollectionRepository(storage.NewMemoryCollection("users", seedUsers()...)))
	bookings := storage.NewMemoryCollection[Booking]("bookings")
	repo := NewStoreRepository(bookings)

	avail := availability.NewService(
		availability.NewStoreRepository(
			storage.NewMemoryCollection[availability.Slot]("slots"),
			storage.NewMemoryCollection[availability.Vacation]("vacations"),
		),
		users,
		repo,
		logger.Discard(),
	)

	events := &recordingEmitter{}
	if emitter == nil {
		emitter = events
	}

	svc := NewService(repo, users, avail, emitter, logger.Discard(), Config{HorizonDays: 365, MaxRetries: 3})
	svc.(*service).now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, repo: repo, users: users, avail: avail, bookings: bookings, events: events}
}

func newRequest(date, start, end string) CreateRequest {
	return CreateRequest{
		ClientID:       clientID,
		PhotographerID: photographerID,
		Date:           date,
		StartTime:      start,
		EndTime:        end,
		Type:           "portrait",
		Location:       "Studio A",
		Price:          20000,
		Deposit:        5000,
	}
}

func (f *fixture) create(t *testing.T, actor auth.Actor, req CreateRequest) *Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), actor, req)
	require.NoError(t, err)
	return b
}

func TestCreateAdjacentAndOverlapping(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))
	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	_, err := f.svc.Create(ctx, clientActor, newRequest("2025-05-01", "11:00", "13:00"))
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	adjacent := f.create(t, clientActor, newRequest("2025-05-01", "12:00", "14:00"))
	assert.Equal(t, StatusPending, adjacent.Status)

	// Another photographer is not affected.
	other := newRequest("2025-05-01", "09:00", "12:00")
	other.PhotographerID = photographer2ID
	f.create(t, clientActor, other)

	stored, err := f.bookings.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	e := f.events.last()
	assert.Equal(t, "create", e.Action)
	assert.Empty(t, e.From)
	assert.Equal(t, "pending", e.To)
}

func TestConfirmCompleteThenCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	confirmed, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.CompletedAt)
	assert.Nil(t, confirmed.CancelledAt)
	assert.Equal(t, int64(2), confirmed.Version)

	completed, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionComplete, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, fixedNow, *completed.CompletedAt)
	assert.Nil(t, completed.CancelledAt)

	_, err = f.svc.Transition(ctx, adminActor, b.ID, ActionCancel, TransitionPayload{Reason: "too late"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.False(t, stored.CreatedAt.After(stored.UpdatedAt))
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]notify.Kind
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, kind notify.Kind, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[userID] = append(n.sent[userID], kind)
	return nil
}

func TestCancelNotifiesBothParties(t *testing.T) {
	notifier := &recordingNotifier{sent: map[string][]notify.Kind{}}
	dispatcher := notify.NewDispatcher(notifier, notify.NewLogAuditRecorder(logger.Discard()), logger.Discard(),
		notify.DispatcherConfig{Workers: 1, QueueSize: 16, Timeout: time.Second})
	dispatcher.Start()

	f := newFixture(t, dispatcher)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	cancelled, err := f.svc.Transition(ctx, clientActor, b.ID, ActionCancel, TransitionPayload{Reason: "client unavailable"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.CompletedAt)
	assert.Contains(t, cancelled.Notes, "client unavailable")

	require.NoError(t, dispatcher.Close(ctx))
	assert.Equal(t, []notify.Kind{notify.KindBookingCreated, notify.KindBookingCancelled}, notifier.sent[clientID])
	assert.Equal(t, []notify.Kind{notify.KindBookingCreated, notify.KindBookingCancelled}, notifier.sent[photographerID])

	// Cancelling again is rejected, not silently accepted.
	_, err = f.svc.Transition(ctx, clientActor, b.ID, ActionCancel, TransitionPayload{Reason: "again"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRescheduleIntoConflictLeavesBookingUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	morning := f.create(t, adminActor, withConfirm(newRequest("2025-05-01", "09:00", "12:00")))
	afternoon := f.create(t, adminActor, withConfirm(newRequest("2025-05-01", "13:00", "15:00")))

	before, err := f.repo.GetByID(ctx, afternoon.ID)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, photographerActor, afternoon.ID, ActionReschedule, TransitionPayload{
		Date: "2025-05-01", StartTime: "11:00", EndTime: "14:00",
	})
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.Contains(t, err.Error(), morning.ID)

	after, err := f.repo.GetByID(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func withConfirm(r CreateRequest) CreateRequest {
	r.Confirm = true
	return r
}

func TestRescheduleOverOwnInterval(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	moved, err := f.svc.Transition(ctx, clientActor, b.ID, ActionReschedule, TransitionPayload{
		Date: "2025-05-01", StartTime: "10:00", EndTime: "13:00",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, moved.Status)
	assert.Equal(t, "2025-05-01 10:00-13:00", moved.Interval().String())
	assert.Equal(t, int64(2), moved.Version)

	_, err = f.svc.Transition(ctx, clientActor, b.ID, ActionReschedule, TransitionPayload{
		Date: "2025-05-01", StartTime: "13:00", EndTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrValidation)

	e := f.events.last()
	assert.Equal(t, "reschedule", e.Action)
	assert.Equal(t, "pending", e.From)
	assert.Equal(t, "pending", e.To)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  auth.Actor
		mutate func(r *CreateRequest)
		want   error
	}{
		{"start equals end", clientActor, func(r *CreateRequest) { r.EndTime = r.StartTime }, ErrValidation},
		{"start after end", clientActor, func(r *CreateRequest) { r.StartTime, r.EndTime = "12:00", "09:00" }, ErrValidation},
		{"malformed date", clientActor, func(r *CreateRequest) { r.Date = "01/05/2025" }, ErrValidation},
		{"malformed time", clientActor, func(r *CreateRequest) { r.StartTime = "9am" }, ErrValidation},
		{"in the past", clientActor, func(r *CreateRequest) { r.Date = "2025-04-19" }, ErrValidation},
		{"beyond horizon", clientActor, func(r *CreateRequest) { r.Date = "2026-04-21" }, ErrValidation},
		{"deposit above price", clientActor, func(r *CreateRequest) { r.Deposit = r.Price + 1 }, ErrValidation},
		{"missing photographer", clientActor, func(r *CreateRequest) { r.PhotographerID = "" }, ErrValidation},
		{"unknown photographer", clientActor, func(r *CreateRequest) { r.PhotographerID = "01960000-0000-7000-8000-0000000000ff" }, ErrPhotographerNotFound},
		{"photographer is a client", clientActor, func(r *CreateRequest) { r.PhotographerID = otherClientID }, ErrValidation},
		{"inactive photographer", clientActor, func(r *CreateRequest) { r.PhotographerID = retiredID }, ErrValidation},
		{"unknown client", adminActor, func(r *CreateRequest) { r.ClientID = "01960000-0000-7000-8000-0000000000ee" }, ErrClientNotFound},
		{"client books for someone else", otherClientActor, func(r *CreateRequest) {}, ErrPermissionDenied},
		{"client asks for confirmation", clientActor, func(r *CreateRequest) { r.Confirm = true }, ErrPermissionDenied},
		{"other photographer confirms", auth.Actor{UserID: photographer2ID, Role: user.RolePhotographer}, func(r *CreateRequest) { r.Confirm = true }, ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest("2025-05-01", "09:00", "12:00")
			tt.mutate(&req)
			_, err := f.svc.Create(ctx, tt.actor, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Boundaries of the window are accepted.
	f.create(t, clientActor, newRequest("2025-04-20", "09:00", "10:00"))
	f.create(t, clientActor, newRequest("2026-04-20", "09:00", "10:00"))

	stored, err := f.bookings.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestVacationBlocksBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.avail.AddVacation(ctx, photographerActor, availability.AddVacationRequest{
		PhotographerID: photographerID, StartDate: "2025-06-01", EndDate: "2025-06-07",
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, clientActor, newRequest("2025-06-03", "09:00", "10:00"))
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.Contains(t, err.Error(), "vacation")

	b := f.create(t, clientActor, newRequest("2025-06-08", "09:00", "10:00"))
	_, err = f.svc.Transition(ctx, clientActor, b.ID, ActionReschedule, TransitionPayload{
		Date: "2025-06-07", StartTime: "09:00", EndTime: "10:00",
	})
	assert.ErrorIs(t, err, ErrSchedulingConflict)
}

func TestTransitionPermissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	_, err := f.svc.Transition(ctx, clientActor, b.ID, ActionConfirm, TransitionPayload{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.Transition(ctx, otherClientActor, b.ID, ActionCancel, TransitionPayload{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.svc.Transition(ctx, adminActor, "01960000-0000-7000-8000-000000000404", ActionConfirm, TransitionPayload{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetByID(ctx, otherClientActor, b.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	got, err := f.svc.GetByID(ctx, photographerActor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestExpectedVersionMismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	_, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{ExpectedVersion: 7})
	assert.ErrorIs(t, err, ErrConcurrentModification)

	confirmed, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{ExpectedVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), confirmed.Version)
}

// staleRepository always reports an outdated version, so every optimistic check fails.
type staleRepository struct {
	Repository
	mu    sync.Mutex
	reads int
}

func (r *staleRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()

	b, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Version--
	return b, nil
}

func TestConcurrentModificationRetriesThenSurfaces(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

	stale := &staleRepository{Repository: f.repo}
	s := f.svc.(*service)
	s.repo = stale

	_, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{})
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 1+s.cfg.MaxRetries, stale.reads)

	stored, err := f.repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCanceledContextAbortsBeforeMutation(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Create(ctx, clientActor, newRequest("2025-05-01", "09:00", "12:00"))
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := f.bookings.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAvailabilityFollowsTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	day := schedule.DateRange{From: "2025-05-01", To: "2025-05-01"}

	slot, err := f.avail.DeclareSlot(ctx, photographerActor, availability.DeclareSlotRequest{
		PhotographerID: photographerID, Date: "2025-05-01", StartTime: "09:00", EndTime: "12:00",
	})
	require.NoError(t, err)

	stateOf := func() availability.SlotAvailability {
		t.Helper()
		got, err := f.avail.Query(ctx, photographerID, day)
		require.NoError(t, err)
		require.Len(t, got, 1)
		return got[0]
	}
	assert.Equal(t, availability.StateFree, stateOf().State)

	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))
	assert.Equal(t, availability.StateBooked, stateOf().State, "pending bookings hold the slot")
	assert.False(t, stateOf().Slot.Booked)

	_, err = f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{})
	require.NoError(t, err)
	got := stateOf()
	assert.Equal(t, availability.StateBooked, got.State)
	assert.True(t, got.Slot.Booked)
	assert.Equal(t, b.ID, got.Slot.BookingID)

	// A committed slot cannot be withdrawn.
	assert.ErrorIs(t, f.avail.RemoveSlot(ctx, photographerActor, photographerID, slot.ID), availability.ErrSlotBooked)

	_, err = f.svc.Transition(ctx, clientActor, b.ID, ActionCancel, TransitionPayload{Reason: "rain"})
	require.NoError(t, err)
	got = stateOf()
	assert.Equal(t, availability.StateFree, got.State)
	assert.False(t, got.Slot.Booked)
}

// heldCalendar parks the first CommitSlots call until release is closed.
type heldCalendar struct {
	Calendar
	entered chan struct{}
	release chan struct{}
}

func (h *heldCalendar) CommitSlots(ctx context.Context, photographerID string, iv schedule.Interval, bookingID string) error {
	select {
	case h.entered <- struct{}{}:
		<-h.release
	default:
	}
	return h.Calendar.CommitSlots(ctx, photographerID, iv, bookingID)
}

func TestLateSlotCommitAfterCancelLeavesSlotFree(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	day := schedule.DateRange{From: "2025-05-01", To: "2025-05-01"}

	_, err := f.avail.DeclareSlot(ctx, photographerActor, availability.DeclareSlotRequest{
		PhotographerID: photographerID, Date: "2025-05-01", StartTime: "09:00", EndTime: "10:00",
	})
	require.NoError(t, err)

	held := &heldCalendar{Calendar: f.avail, entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewService(f.repo, f.users, held, f.events, logger.Discard(), Config{HorizonDays: 365, MaxRetries: 3})
	svc.(*service).now = func() time.Time { return fixedNow }

	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "10:00"))

	confirmed := make(chan error, 1)
	go func() {
		_, err := svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{})
		confirmed <- err
	}()

	// The confirm is stored; its slot commit has not run yet.
	<-held.entered
	cancelled, err := svc.Transition(ctx, clientActor, b.ID, ActionCancel, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	close(held.release)
	require.NoError(t, <-confirmed)

	got, err := f.avail.Query(ctx, photographerID, day)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, availability.StateFree, got[0].State)
	assert.False(t, got[0].Slot.Booked)
	assert.Empty(t, got[0].Slot.BookingID)
}

func TestCancelKeepsSlotForOtherConfirmedBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	slot, err := f.avail.DeclareSlot(ctx, photographerActor, availability.DeclareSlotRequest{
		PhotographerID: photographerID, Date: "2025-05-01", StartTime: "09:00", EndTime: "12:00",
	})
	require.NoError(t, err)

	first := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "10:00"))
	req := newRequest("2025-05-01", "10:00", "11:00")
	req.ClientID = otherClientID
	second := f.create(t, otherClientActor, req)
	for _, b := range []*Booking{first, second} {
		_, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionConfirm, TransitionPayload{})
		require.NoError(t, err)
	}

	_, err = f.svc.Transition(ctx, clientActor, first.ID, ActionCancel, TransitionPayload{})
	require.NoError(t, err)

	slots, err := f.avail.ListSlots(ctx, photographerID, schedule.DateRange{})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Booked)
	assert.Equal(t, second.ID, slots[0].BookingID)
	assert.ErrorIs(t, f.avail.RemoveSlot(ctx, photographerActor, photographerID, slot.ID), availability.ErrSlotBooked)
}

func TestRescheduleMovesCommittedSlots(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, span := range [][2]string{{"09:00", "10:00"}, {"13:00", "14:00"}} {
		_, err := f.avail.DeclareSlot(ctx, photographerActor, availability.DeclareSlotRequest{
			PhotographerID: photographerID, Date: "2025-05-01", StartTime: span[0], EndTime: span[1],
		})
		require.NoError(t, err)
	}

	b := f.create(t, photographerActor, withConfirm(newRequest("2025-05-01", "09:00", "10:00")))
	_, err := f.svc.Transition(ctx, photographerActor, b.ID, ActionReschedule, TransitionPayload{
		Date: "2025-05-01", StartTime: "13:00", EndTime: "14:00",
	})
	require.NoError(t, err)

	slots, err := f.avail.ListSlots(ctx, photographerID, schedule.DateRange{})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.False(t, slots[0].Booked)
	assert.True(t, slots[1].Booked)
	assert.Equal(t, b.ID, slots[1].BookingID)
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const callers = 30
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			from := schedule.Clock(9*60 + 30*(i%6))
			req := newRequest("2025-05-01", from.String(), (from + 90).String())
			_, errs[i] = f.svc.Create(ctx, clientActor, req)
		}(i)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, ErrSchedulingConflict)
	}
	assert.GreaterOrEqual(t, accepted, 1)

	stored, err := f.bookings.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, accepted)
	assertNoOverlap(t, stored)
}

func TestConcurrentReschedulesNeverDoubleBook(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var ids []string
	for _, start := range []string{"09:00", "11:00", "13:00", "15:00"} {
		c, _ := schedule.ParseClock(start)
		b := f.create(t, clientActor, newRequest("2025-05-02", start, (c + 60).String()))
		ids = append(ids, b.ID)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Transition(ctx, clientActor, id, ActionReschedule, TransitionPayload{
				Date: "2025-05-03", StartTime: "10:00", EndTime: "12:00",
			})
		}(i, id)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, ErrSchedulingConflict)
	}
	assert.Equal(t, 1, accepted)

	stored, err := f.bookings.Load(ctx)
	require.NoError(t, err)
	assertNoOverlap(t, stored)
}

func TestConcurrentTransitionsOnSameBooking(t *testing.T) {
	t.Run("expected version", func(t *testing.T) {
		f := newFixture(t, nil)
		b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

		errs := runConcurrently(2, func() error {
			_, err := f.svc.Transition(context.Background(), photographerActor, b.ID, ActionConfirm, TransitionPayload{ExpectedVersion: 1})
			return err
		})

		assertOneSuccess(t, errs, ErrConcurrentModification)
	})

	t.Run("retried against new state", func(t *testing.T) {
		f := newFixture(t, nil)
		b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "12:00"))

		errs := runConcurrently(2, func() error {
			_, err := f.svc.Transition(context.Background(), clientActor, b.ID, ActionCancel, TransitionPayload{Reason: "x"})
			return err
		})

		assertOneSuccess(t, errs, ErrInvalidTransition)

		stored, err := f.repo.GetByID(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)
	})
}

func runConcurrently(n int, fn func() error) []error {
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

// assertOneSuccess expects exactly one nil error. The loser may fail with
// want, or with ErrInvalidTransition when it was retried against the new state.
func assertOneSuccess(t *testing.T, errs []error, want error) {
	t.Helper()
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, want) || errors.Is(err, ErrInvalidTransition), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
}

func assertNoOverlap(t *testing.T, stored []Booking) {
	t.Helper()
	for i := range stored {
		for j := i + 1; j < len(stored); j++ {
			a, b := stored[i], stored[j]
			if !a.Status.Active() || !b.Status.Active() || a.PhotographerID != b.PhotographerID {
				continue
			}
			assert.False(t, a.Interval().Overlaps(b.Interval()), "%s overlaps %s", a.Interval(), b.Interval())
		}
	}
}

func TestListScopesAndPaginates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.create(t, clientActor, newRequest("2025-05-02", "09:00", "10:00"))
	f.create(t, clientActor, newRequest("2025-05-01", "09:00", "10:00"))
	other := newRequest("2025-05-01", "11:00", "12:00")
	other.ClientID = otherClientID
	f.create(t, otherClientActor, other)
	second := newRequest("2025-05-01", "09:00", "10:00")
	second.PhotographerID = photographer2ID
	f.create(t, clientActor, second)

	mine, total, err := f.svc.List(ctx, clientActor, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, mine, 3)
	assert.Equal(t, "2025-05-01", mine[0].Date)
	assert.Equal(t, "2025-05-02", mine[2].Date)

	// A client cannot widen the filter to someone else's bookings.
	mine, total, err = f.svc.List(ctx, clientActor, Filter{ClientID: otherClientID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, b := range mine {
		assert.Equal(t, clientID, b.ClientID)
	}

	shoots, total, err := f.svc.List(ctx, photographerActor, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, b := range shoots {
		assert.Equal(t, photographerID, b.PhotographerID)
	}

	page, total, err := f.svc.List(ctx, adminActor, Filter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, page, 1)

	day, total, err := f.svc.List(ctx, adminActor, Filter{Dates: schedule.DateRange{From: "2025-05-02", To: "2025-05-02"}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "2025-05-02", day[0].Date)

	confirmed, total, err := f.svc.List(ctx, adminActor, Filter{Status: StatusConfirmed})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, confirmed)
}

func TestViewsJoinDisplayNames(t *testing.T) {
	f := newFixture(t, nil)
	b := f.create(t, clientActor, newRequest("2025-05-01", "09:00", "10:00"))

	views := f.svc.Views(context.Background(), []*Booking{b})
	require.Len(t, views, 1)
	assert.Equal(t, "Ada Client", views[0].ClientName)
	assert.Equal(t, "Pat Lens", views[0].PhotographerName)
	assert.Equal(t, b.ID, views[0].ID)
}
