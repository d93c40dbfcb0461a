package operations

import (
	"context"
	"errors"
	"testing"
	"time"

	"tourly/internal/bookings"
	"tourly/internal/pricing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOpsRepo serves canned candidates to the sweep and records which
// operations it was asked to cancel
type stubOpsRepo struct {
	operations map[uuid.UUID]*TourOperation
	candidates []TourOperation

	cancelled  []uuid.UUID
	cancelErr  map[uuid.UUID]error
	raceLosers map[uuid.UUID]bool

	outcomes map[uuid.UUID]*CancellationOutcome
}

func newStubOpsRepo() *stubOpsRepo {
	return &stubOpsRepo{
		operations: make(map[uuid.UUID]*TourOperation),
		cancelErr:  make(map[uuid.UUID]error),
		raceLosers: make(map[uuid.UUID]bool),
		outcomes:   make(map[uuid.UUID]*CancellationOutcome),
	}
}

func (s *stubOpsRepo) CreateDetails(ctx context.Context, details *TourDetails) error { return nil }
func (s *stubOpsRepo) CreateSlot(ctx context.Context, slot *TourSlot) error          { return nil }
func (s *stubOpsRepo) CreateOperation(ctx context.Context, operation *TourOperation) error {
	s.operations[operation.ID] = operation
	return nil
}

func (s *stubOpsRepo) GetOperationByID(ctx context.Context, id uuid.UUID) (*TourOperation, error) {
	op, ok := s.operations[id]
	if !ok {
		return nil, errors.New("tour operation not found")
	}
	return op, nil
}

func (s *stubOpsRepo) GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error) {
	return "Coastal Kayak Expedition", nil
}

func (s *stubOpsRepo) GetCancellationCandidates(ctx context.Context, limit, offset int) ([]TourOperation, error) {
	if offset >= len(s.candidates) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.candidates) {
		end = len(s.candidates)
	}
	return s.candidates[offset:end], nil
}

func (s *stubOpsRepo) CancelOperationWithRefunds(ctx context.Context, operationID uuid.UUID, now time.Time, reason string, occupancyThreshold float64) (*CancellationOutcome, error) {
	if err := s.cancelErr[operationID]; err != nil {
		return nil, err
	}
	if s.raceLosers[operationID] {
		return nil, nil
	}
	s.cancelled = append(s.cancelled, operationID)
	if outcome, ok := s.outcomes[operationID]; ok {
		return outcome, nil
	}
	return &CancellationOutcome{}, nil
}

type cancelNotice struct {
	operationID    uuid.UUID
	reason         string
	guestsAffected int
	affected       []CancelledBookingInfo
}

type stubCancelNotifier struct {
	notices []cancelNotice
}

func (s *stubCancelNotifier) NotifyOperationCancelled(ctx context.Context, operatorID, operationID uuid.UUID, tourTitle, reason string, guestsAffected int, affected []CancelledBookingInfo) error {
	s.notices = append(s.notices, cancelNotice{
		operationID:    operationID,
		reason:         reason,
		guestsAffected: guestsAffected,
		affected:       affected,
	})
	return nil
}

func testServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		CancellationWindow: 2 * 24 * time.Hour,
		OccupancyThreshold: 0.5,
		BatchSize:          50,
		Pricing:            pricing.DefaultRules(),
	}
}

func candidate(current, max int, departureIn time.Duration) TourOperation {
	now := time.Now().UTC()
	id := uuid.New()
	return TourOperation{
		ID:              id,
		OperatorID:      uuid.New(),
		MaxGuests:       max,
		CurrentBookings: current,
		Status:          OperationStatusActive,
		TourDetails:     &TourDetails{Title: "Coastal Kayak Expedition", Status: DetailsStatusPublic},
		Slots:           []TourSlot{{ID: uuid.New(), OperationID: id, DepartureDate: now.Add(departureIn)}},
	}
}

func TestCancelUnderbookedOperations(t *testing.T) {
	repo := newStubOpsRepo()
	notifier := &stubCancelNotifier{}
	svc := NewService(repo, notifier, testServiceConfig(), nil)

	underbooked := candidate(9, 20, 24*time.Hour)
	healthy := candidate(10, 20, 24*time.Hour)
	farOut := candidate(2, 20, 72*time.Hour)
	repo.candidates = []TourOperation{underbooked, healthy, farOut}

	bookingID := uuid.New()
	repo.outcomes[underbooked.ID] = &CancellationOutcome{
		Operation: &underbooked,
		CancelledBookings: []bookings.Booking{
			{ID: bookingID, GuestCount: 4, RevenueHold: 120_000},
		},
		GuestsAffected: 4,
		RefundedTotal:  120_000,
	}

	processed, err := svc.CancelUnderbookedOperations(context.Background())
	require.NoError(t, err)

	// 9/20 = 0.45 cancels; 10/20 = 0.50 survives; far-out departure is
	// outside the decision window
	assert.Equal(t, 1, processed)
	assert.Equal(t, []uuid.UUID{underbooked.ID}, repo.cancelled)

	require.Len(t, notifier.notices, 1)
	notice := notifier.notices[0]
	assert.Equal(t, underbooked.ID, notice.operationID)
	assert.Equal(t, bookings.ReasonUnderBooked, notice.reason)
	assert.Equal(t, 4, notice.guestsAffected)
	require.Len(t, notice.affected, 1)
	assert.Equal(t, bookingID, notice.affected[0].BookingID)
	assert.Equal(t, 120_000.0, notice.affected[0].Refunded)
}

func TestCancelUnderbookedOperations_WindowBoundaries(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)

	atEdge := candidate(1, 20, 48*time.Hour)
	beyondEdge := candidate(1, 20, 48*time.Hour+time.Minute)
	departed := candidate(1, 20, -time.Hour)
	repo.candidates = []TourOperation{atEdge, beyondEdge, departed}

	processed, err := svc.CancelUnderbookedOperations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.Equal(t, []uuid.UUID{atEdge.ID}, repo.cancelled)
}

func TestCancelUnderbookedOperations_SkipsFailuresAndRaces(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)

	failing := candidate(3, 20, 24*time.Hour)
	raced := candidate(4, 20, 24*time.Hour)
	cancellable := candidate(5, 20, 24*time.Hour)
	repo.candidates = []TourOperation{failing, raced, cancellable}

	repo.cancelErr[failing.ID] = errors.New("deadlock detected")
	repo.raceLosers[raced.ID] = true

	processed, err := svc.CancelUnderbookedOperations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	assert.Equal(t, []uuid.UUID{cancellable.ID}, repo.cancelled)
}

func TestCancelUnderbookedOperations_PagesThroughCandidates(t *testing.T) {
	repo := newStubOpsRepo()
	cfg := testServiceConfig()
	cfg.BatchSize = 2
	svc := NewService(repo, nil, cfg, nil)

	for i := 0; i < 5; i++ {
		repo.candidates = append(repo.candidates, candidate(1, 20, 24*time.Hour))
	}

	processed, err := svc.CancelUnderbookedOperations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, processed)
	assert.Len(t, repo.cancelled, 5)
}

func TestIsEligibleForAutoCancel(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)
	ctx := context.Background()

	underbooked := candidate(9, 20, 24*time.Hour)
	repo.operations[underbooked.ID] = &underbooked

	eligible, err := svc.IsEligibleForAutoCancel(ctx, underbooked.ID)
	require.NoError(t, err)
	assert.True(t, eligible)

	healthy := candidate(10, 20, 24*time.Hour)
	repo.operations[healthy.ID] = &healthy

	eligible, err = svc.IsEligibleForAutoCancel(ctx, healthy.ID)
	require.NoError(t, err)
	assert.False(t, eligible)

	cancelled := candidate(1, 20, 24*time.Hour)
	cancelled.Status = OperationStatusCancelled
	repo.operations[cancelled.ID] = &cancelled

	eligible, err = svc.IsEligibleForAutoCancel(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.False(t, eligible)
}

func TestQuoteBooking_AppliesEarlyBirdDiscount(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)
	ctx := context.Background()

	now := time.Now().UTC()
	publishedAt := now.Add(-time.Hour)
	slotID := uuid.New()
	operation := &TourOperation{
		ID:          uuid.New(),
		OperatorID:  uuid.New(),
		MaxGuests:   20,
		Price:       30_000,
		Status:      OperationStatusActive,
		TourDetails: &TourDetails{Title: "Alpine Glacier Hike", Status: DetailsStatusPublic, PublishedAt: &publishedAt},
		Slots:       []TourSlot{{ID: slotID, DepartureDate: now.Add(60 * 24 * time.Hour)}},
	}
	repo.operations[operation.ID] = operation

	quote, err := svc.QuoteBooking(ctx, operation.ID, slotID, 4)
	require.NoError(t, err)

	assert.True(t, quote.PerGuest.Discounted)
	assert.Equal(t, 30_000.0, quote.PerGuest.OriginalPrice)
	assert.InDelta(t, 22_500.0, quote.PerGuest.FinalPrice, 0.001)
	assert.InDelta(t, 90_000.0, quote.TotalPrice, 0.001)
	assert.Equal(t, 4, quote.GuestCount)
}

func TestQuoteBooking_FullPriceNearDeparture(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)
	ctx := context.Background()

	now := time.Now().UTC()
	publishedAt := now.Add(-time.Hour)
	slotID := uuid.New()
	operation := &TourOperation{
		ID:          uuid.New(),
		OperatorID:  uuid.New(),
		MaxGuests:   20,
		Price:       30_000,
		Status:      OperationStatusActive,
		TourDetails: &TourDetails{Title: "Sunrise Ridge Traverse", Status: DetailsStatusPublic, PublishedAt: &publishedAt},
		Slots:       []TourSlot{{ID: slotID, DepartureDate: now.Add(5 * 24 * time.Hour)}},
	}
	repo.operations[operation.ID] = operation

	// Departure inside the 30-day advance floor pays full price even though
	// the booking lands inside the publication window
	quote, err := svc.QuoteBooking(ctx, operation.ID, slotID, 2)
	require.NoError(t, err)

	assert.False(t, quote.PerGuest.Discounted)
	assert.Equal(t, 30_000.0, quote.PerGuest.FinalPrice)
	assert.Equal(t, 60_000.0, quote.TotalPrice)
}

func TestQuoteBooking_RejectsBadInput(t *testing.T) {
	repo := newStubOpsRepo()
	svc := NewService(repo, nil, testServiceConfig(), nil)
	ctx := context.Background()

	now := time.Now().UTC()
	operation := &TourOperation{
		ID:         uuid.New(),
		OperatorID: uuid.New(),
		MaxGuests:  20,
		Price:      30_000,
		Status:     OperationStatusActive,
		Slots:      []TourSlot{{ID: uuid.New(), DepartureDate: now.Add(60 * 24 * time.Hour)}},
	}
	repo.operations[operation.ID] = operation

	_, err := svc.QuoteBooking(ctx, operation.ID, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, err = svc.QuoteBooking(ctx, operation.ID, operation.Slots[0].ID, 0)
	assert.Error(t, err)
}
