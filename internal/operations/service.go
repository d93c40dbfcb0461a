package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourly/internal/bookings"
	"tourly/internal/pricing"
	"tourly/pkg/logger"

	"github.com/google/uuid"
)

// ErrSlotNotFound means the requested slot does not belong to the operation
var ErrSlotNotFound = errors.New("tour slot not found")

// CancelledBookingInfo is the per-booking payload included in the operator
// notification after an auto-cancellation
type CancelledBookingInfo struct {
	BookingID  uuid.UUID `json:"booking_id"`
	GuestCount int       `json:"guest_count"`
	Refunded   float64   `json:"refunded"`
}

// NotificationService interface for operator notifications (to avoid circular dependency)
type NotificationService interface {
	NotifyOperationCancelled(ctx context.Context, operatorID, operationID uuid.UUID, tourTitle, reason string, guestsAffected int, affected []CancelledBookingInfo) error
}

// BookingQuote prices a prospective reservation against a slot, applying
// the early-bird window when it is active
type BookingQuote struct {
	OperationID uuid.UUID     `json:"operation_id"`
	SlotID      uuid.UUID     `json:"slot_id"`
	GuestCount  int           `json:"guest_count"`
	PerGuest    pricing.Quote `json:"per_guest"`
	TotalPrice  float64       `json:"total_price"`
}

// Service interface defines the contract for tour operation business logic
type Service interface {
	GetOperation(ctx context.Context, id uuid.UUID) (*TourOperation, error)
	GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error)
	IsEligibleForAutoCancel(ctx context.Context, id uuid.UUID) (bool, error)
	QuoteBooking(ctx context.Context, operationID, slotID uuid.UUID, guestCount int) (*BookingQuote, error)

	// Worker entry point
	CancelUnderbookedOperations(ctx context.Context) (int, error)
}

// ServiceConfig contains configuration for the operations service
type ServiceConfig struct {
	CancellationWindow time.Duration
	OccupancyThreshold float64
	BatchSize          int
	Pricing            pricing.Rules
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		CancellationWindow: 2 * 24 * time.Hour,
		OccupancyThreshold: 0.5,
		BatchSize:          50,
		Pricing:            pricing.DefaultRules(),
	}
}

// service implements the Service interface
type service struct {
	repo         Repository
	notification NotificationService
	config       *ServiceConfig
	log          *logger.Logger
}

// NewService creates a new operations service instance
func NewService(repo Repository, notification NotificationService, config *ServiceConfig, log *logger.Logger) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &service{
		repo:         repo,
		notification: notification,
		config:       config,
		log:          log,
	}
}

func (s *service) GetOperation(ctx context.Context, id uuid.UUID) (*TourOperation, error) {
	return s.repo.GetOperationByID(ctx, id)
}

func (s *service) GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error) {
	return s.repo.GetTourTitle(ctx, operationID)
}

// QuoteBooking prices guestCount seats on a slot. The early-bird window
// opens at the tour's publication date; an unpublished tour's window opens
// at creation.
func (s *service) QuoteBooking(ctx context.Context, operationID, slotID uuid.UUID, guestCount int) (*BookingQuote, error) {
	if guestCount <= 0 {
		return nil, errors.New("guest count must be positive")
	}

	operation, err := s.repo.GetOperationByID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	var slot *TourSlot
	for i := range operation.Slots {
		if operation.Slots[i].ID == slotID {
			slot = &operation.Slots[i]
			break
		}
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}

	publishDate := operation.CreatedAt
	if operation.TourDetails != nil && operation.TourDetails.PublishedAt != nil {
		publishDate = *operation.TourDetails.PublishedAt
	}

	quote, err := pricing.Evaluate(s.config.Pricing, operation.Price, slot.DepartureDate, publishDate, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return &BookingQuote{
		OperationID: operationID,
		SlotID:      slotID,
		GuestCount:  guestCount,
		PerGuest:    quote,
		TotalPrice:  quote.FinalPrice * float64(guestCount),
	}, nil
}

// IsEligibleForAutoCancel runs the same decision the sweep uses, on demand
func (s *service) IsEligibleForAutoCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	operation, err := s.repo.GetOperationByID(ctx, id)
	if err != nil {
		return false, err
	}
	if operation.Status != OperationStatusActive {
		return false, nil
	}

	now := time.Now().UTC()
	if operation.NextDepartureWithin(now, s.config.CancellationWindow) == nil {
		return false, nil
	}

	return IsUnderBooked(operation.CurrentBookings, operation.MaxGuests, s.config.OccupancyThreshold), nil
}

// CancelUnderbookedOperations sweeps active public operations departing
// inside the decision window and cancels the under-booked ones, refunding
// every confirmed booking's hold. Work is paged in fixed batches so no
// transaction outlives one operation; a failing operation is logged and
// skipped without blocking the rest of the sweep.
func (s *service) CancelUnderbookedOperations(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	processed := 0

	for offset := 0; ; offset += s.config.BatchSize {
		candidates, err := s.repo.GetCancellationCandidates(ctx, s.config.BatchSize, offset)
		if err != nil {
			if processed > 0 {
				// Earlier batches already committed; report what we did
				s.log.ErrorWithContext(ctx, "cancellation sweep aborted mid-page", err, map[string]interface{}{
					"offset": offset,
				})
				return processed, nil
			}
			return 0, fmt.Errorf("failed to query cancellation candidates: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		for i := range candidates {
			operation := &candidates[i]

			slot := operation.NextDepartureWithin(now, s.config.CancellationWindow)
			if slot == nil {
				continue
			}

			// Guest-count based rate, strict threshold
			if !IsUnderBooked(operation.CurrentBookings, operation.MaxGuests, s.config.OccupancyThreshold) {
				continue
			}

			outcome, err := s.repo.CancelOperationWithRefunds(ctx, operation.ID, now, bookings.ReasonUnderBooked, s.config.OccupancyThreshold)
			if err != nil {
				s.log.ErrorWithContext(ctx, "failed to auto-cancel operation", err, map[string]interface{}{
					"operation_id": operation.ID.String(),
				})
				continue
			}
			if outcome == nil {
				// Lost the race to a concurrent cancellation
				continue
			}

			s.log.LogOperationCancelled(ctx, operation.ID.String(), operation.OccupancyRate(),
				len(outcome.CancelledBookings), outcome.RefundedTotal)
			s.notifyCancellation(ctx, operation, outcome)
			processed++
		}

		if len(candidates) < s.config.BatchSize {
			break
		}
	}

	return processed, nil
}

func (s *service) notifyCancellation(ctx context.Context, operation *TourOperation, outcome *CancellationOutcome) {
	if s.notification == nil {
		return
	}

	title := ""
	if operation.TourDetails != nil {
		title = operation.TourDetails.Title
	}

	affected := make([]CancelledBookingInfo, 0, len(outcome.CancelledBookings))
	for i := range outcome.CancelledBookings {
		b := &outcome.CancelledBookings[i]
		affected = append(affected, CancelledBookingInfo{
			BookingID:  b.ID,
			GuestCount: b.GuestCount,
			Refunded:   b.RevenueHold,
		})
	}

	err := s.notification.NotifyOperationCancelled(ctx, operation.OperatorID, operation.ID,
		title, bookings.ReasonUnderBooked, outcome.GuestsAffected, affected)
	if err != nil {
		s.log.ErrorWithContext(ctx, "failed to send cancellation notification", err, map[string]interface{}{
			"operation_id": operation.ID.String(),
		})
	}
}
