package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"tourly/internal/ledger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubRepo is an in-memory stand-in for the booking repository. Each
// method records calls so tests can assert on the service's batch logic
// without a database.
type stubRepo struct {
	created []Booking

	expired  []Booking
	expireFn func(b *Booking) (bool, error)

	confirmResult bool
	confirmErr    error

	maturable []Booking
	matureFn  func(b *Booking, rate float64) (float64, bool, error)

	failures    map[uuid.UUID]int
	maxFailures int

	slotDeparture time.Time
}

func newStubRepo() *stubRepo {
	return &stubRepo{failures: make(map[uuid.UUID]int)}
}

func (s *stubRepo) CreateBooking(ctx context.Context, booking *Booking) error {
	s.created = append(s.created, *booking)
	return nil
}

func (s *stubRepo) CreateBookingWithCapacityCheck(ctx context.Context, booking *Booking) error {
	s.created = append(s.created, *booking)
	return nil
}

func (s *stubRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	for i := range s.created {
		if s.created[i].ID == id {
			return &s.created[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) GetSlotDeparture(ctx context.Context, slotID uuid.UUID) (time.Time, error) {
	if s.slotDeparture.IsZero() {
		return time.Time{}, gorm.ErrRecordNotFound
	}
	return s.slotDeparture, nil
}

func (s *stubRepo) ConfirmBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return s.confirmResult, s.confirmErr
}

func (s *stubRepo) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	return s.expired, nil
}

func (s *stubRepo) ExpireReservation(ctx context.Context, booking *Booking, now time.Time) (bool, error) {
	if s.expireFn != nil {
		return s.expireFn(booking)
	}
	return true, nil
}

func (s *stubRepo) GetMaturable(ctx context.Context, departureCutoff time.Time, limit int) ([]Booking, error) {
	return s.maturable, nil
}

func (s *stubRepo) MatureRevenue(ctx context.Context, booking *Booking, commissionRate float64, now time.Time) (float64, bool, error) {
	if s.matureFn != nil {
		return s.matureFn(booking, commissionRate)
	}
	return booking.RevenueHold * (1 - commissionRate), true, nil
}

func (s *stubRepo) RecordTransferFailure(ctx context.Context, id uuid.UUID, maxFailures int) (bool, error) {
	s.failures[id]++
	s.maxFailures = maxFailures
	return s.failures[id] >= maxFailures, nil
}

func (s *stubRepo) GetConfirmedByOperationTx(tx *gorm.DB, operationID uuid.UUID) ([]Booking, error) {
	return nil, nil
}

func (s *stubRepo) CancelByCompanyTx(tx *gorm.DB, id uuid.UUID, now time.Time, reason string) (bool, error) {
	return false, nil
}

func (s *stubRepo) ClearHoldTx(tx *gorm.DB, id uuid.UUID) error {
	return nil
}

type stubTourInfo struct {
	title string
}

func (s *stubTourInfo) GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error) {
	return s.title, nil
}

type transferNotice struct {
	bookingID uuid.UUID
	title     string
	net       float64
}

type stubNotifier struct {
	transfers []transferNotice
}

func (s *stubNotifier) NotifyRevenueTransferred(ctx context.Context, operatorID, bookingID uuid.UUID, tourTitle string, netAmount float64, completedAt time.Time) error {
	s.transfers = append(s.transfers, transferNotice{bookingID: bookingID, title: tourTitle, net: netAmount})
	return nil
}

func newTestService(repo *stubRepo, notifier *stubNotifier) Service {
	return NewService(repo, &stubTourInfo{title: "Alpine Glacier Hike"}, notifier, &ServiceConfig{
		ReservationTTL:        15 * time.Minute,
		MaturationDelay:       3 * 24 * time.Hour,
		CommissionRate:        0.10,
		BatchSize:             50,
		MaturationMaxFailures: 5,
	}, nil)
}

func TestCreateReservation(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	req := CreateReservationRequest{
		OperationID: uuid.New(),
		SlotID:      uuid.New(),
		OperatorID:  uuid.New(),
		GuestCount:  4,
		TotalPrice:  120_000,
	}

	before := time.Now().UTC()
	booking, err := svc.CreateReservation(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, booking.Status)
	assert.Equal(t, req.SlotID, booking.SlotID)
	assert.Equal(t, 4, booking.GuestCount)
	require.NotNil(t, booking.ReservedUntil)
	assert.WithinDuration(t, before.Add(15*time.Minute), *booking.ReservedUntil, time.Second)
	assert.Len(t, repo.created, 1)
}

func TestCreateReservation_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(newStubRepo(), nil)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, CreateReservationRequest{GuestCount: 0, TotalPrice: 100})
	assert.Error(t, err)

	_, err = svc.CreateReservation(ctx, CreateReservationRequest{GuestCount: 2, TotalPrice: 0})
	assert.Error(t, err)
}

func TestConfirmPayment(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, nil)

	repo.confirmResult = true
	assert.NoError(t, svc.ConfirmPayment(context.Background(), uuid.New()))

	// Guard miss: the reservation lapsed or the booking was not pending
	repo.confirmResult = false
	assert.Error(t, svc.ConfirmPayment(context.Background(), uuid.New()))
}

func TestReleaseExpiredReservations_IsolatesFailures(t *testing.T) {
	now := time.Now().UTC()
	lapsed := now.Add(-time.Hour)

	failing := Booking{ID: uuid.New(), Status: StatusPending, ReservedUntil: &lapsed, GuestCount: 2}
	raced := Booking{ID: uuid.New(), Status: StatusPending, ReservedUntil: &lapsed, GuestCount: 3}
	reapable := Booking{ID: uuid.New(), Status: StatusPending, ReservedUntil: &lapsed, GuestCount: 4}

	repo := newStubRepo()
	repo.expired = []Booking{failing, raced, reapable}
	repo.expireFn = func(b *Booking) (bool, error) {
		switch b.ID {
		case failing.ID:
			return false, errors.New("deadlock detected")
		case raced.ID:
			// Paid between query and update, guard matched no row
			return false, nil
		default:
			return true, nil
		}
	}

	svc := newTestService(repo, nil)
	processed, err := svc.ReleaseExpiredReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestMatureHeldRevenue_TransfersNetOfCommission(t *testing.T) {
	slotID := uuid.New()
	booking := Booking{
		ID:          uuid.New(),
		OperationID: uuid.New(),
		SlotID:      slotID,
		OperatorID:  uuid.New(),
		Status:      StatusCompleted,
		RevenueHold: 900_000,
	}

	repo := newStubRepo()
	repo.maturable = []Booking{booking}
	repo.slotDeparture = time.Now().UTC().Add(-3 * 24 * time.Hour)

	notifier := &stubNotifier{}
	svc := newTestService(repo, notifier)

	processed, err := svc.MatureHeldRevenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	require.Len(t, notifier.transfers, 1)
	assert.Equal(t, booking.ID, notifier.transfers[0].bookingID)
	assert.Equal(t, "Alpine Glacier Hike", notifier.transfers[0].title)
	assert.InDelta(t, 810_000, notifier.transfers[0].net, 1e-6)
}

func TestMatureHeldRevenue_GuardMissIsNotAFailure(t *testing.T) {
	booking := Booking{ID: uuid.New(), Status: StatusCompleted, RevenueHold: 500_000}

	repo := newStubRepo()
	repo.maturable = []Booking{booking}
	repo.matureFn = func(b *Booking, rate float64) (float64, bool, error) {
		// Transferred by an earlier tick between query and update
		return 0, false, nil
	}

	notifier := &stubNotifier{}
	svc := newTestService(repo, notifier)

	processed, err := svc.MatureHeldRevenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Empty(t, notifier.transfers)
	assert.Empty(t, repo.failures)
}

func TestMatureHeldRevenue_RecordsTransferFailures(t *testing.T) {
	booking := Booking{ID: uuid.New(), OperatorID: uuid.New(), Status: StatusCompleted, RevenueHold: 250_000}

	repo := newStubRepo()
	repo.maturable = []Booking{booking}
	repo.matureFn = func(b *Booking, rate float64) (float64, bool, error) {
		return 0, false, ledger.ErrInsufficientHold
	}

	svc := newTestService(repo, &stubNotifier{})

	processed, err := svc.MatureHeldRevenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	assert.Equal(t, 1, repo.failures[booking.ID])
	assert.Equal(t, 5, repo.maxFailures)
}
