package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourly/internal/ledger"
	"tourly/pkg/logger"

	"github.com/google/uuid"
)

// TourInfoService interface for operation lookups (to avoid circular dependency)
type TourInfoService interface {
	GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error)
}

// NotificationService interface for operator notifications (to avoid circular dependency).
// Delivery is fire-and-forget: failures are logged and never affect the
// financial mutation they follow.
type NotificationService interface {
	NotifyRevenueTransferred(ctx context.Context, operatorID, bookingID uuid.UUID, tourTitle string, netAmount float64, completedAt time.Time) error
}

// Service interface defines the contract for booking business logic
type Service interface {
	CreateReservation(ctx context.Context, req CreateReservationRequest) (*Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)

	// Worker entry points
	ReleaseExpiredReservations(ctx context.Context) (int, error)
	MatureHeldRevenue(ctx context.Context) (int, error)
}

// ServiceConfig contains configuration for the booking service
type ServiceConfig struct {
	ReservationTTL        time.Duration
	MaturationDelay       time.Duration
	CommissionRate        float64
	BatchSize             int
	MaturationMaxFailures int
}

// DefaultServiceConfig returns default service configuration
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ReservationTTL:        15 * time.Minute,
		MaturationDelay:       3 * 24 * time.Hour,
		CommissionRate:        0.10,
		BatchSize:             50,
		MaturationMaxFailures: 5,
	}
}

// CreateReservationRequest represents a new reservation
type CreateReservationRequest struct {
	OperationID uuid.UUID `json:"operation_id" binding:"required"`
	SlotID      uuid.UUID `json:"slot_id" binding:"required"`
	OperatorID  uuid.UUID `json:"operator_id" binding:"required"`
	GuestCount  int       `json:"guest_count" binding:"required,gt=0"`
	TotalPrice  float64   `json:"total_price" binding:"required,gt=0"`
}

// service implements the Service interface
type service struct {
	repo         Repository
	tourInfo     TourInfoService
	notification NotificationService
	config       *ServiceConfig
	log          *logger.Logger
}

// NewService creates a new booking service instance
func NewService(repo Repository, tourInfo TourInfoService, notification NotificationService, config *ServiceConfig, log *logger.Logger) Service {
	if config == nil {
		config = DefaultServiceConfig()
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &service{
		repo:         repo,
		tourInfo:     tourInfo,
		notification: notification,
		config:       config,
		log:          log,
	}
}

// CreateReservation creates a PENDING booking holding capacity until the
// payment deadline
func (s *service) CreateReservation(ctx context.Context, req CreateReservationRequest) (*Booking, error) {
	if req.GuestCount <= 0 {
		return nil, errors.New("guest count must be positive")
	}
	if req.TotalPrice <= 0 {
		return nil, errors.New("total price must be positive")
	}

	now := time.Now().UTC()
	reservedUntil := now.Add(s.config.ReservationTTL)

	booking := &Booking{
		ID:            uuid.New(),
		OperationID:   req.OperationID,
		SlotID:        req.SlotID,
		OperatorID:    req.OperatorID,
		GuestCount:    req.GuestCount,
		TotalPrice:    req.TotalPrice,
		Status:        StatusPending,
		ReservedUntil: &reservedUntil,
	}

	if err := s.repo.CreateBookingWithCapacityCheck(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return booking, nil
}

// ConfirmPayment moves a reserved booking to CONFIRMED and escrows its price
func (s *service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error {
	confirmed, err := s.repo.ConfirmBooking(ctx, bookingID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	if !confirmed {
		return errors.New("booking is not awaiting payment or its reservation expired")
	}
	return nil
}

// GetBooking retrieves a booking by ID
func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, bookingID)
}

// ReleaseExpiredReservations cancels PENDING bookings whose payment window
// lapsed and frees the capacity they held. Each booking gets its own
// transaction: a failing row is logged and skipped without touching its
// siblings, and the status guard retries it safely on the next tick.
func (s *service) ReleaseExpiredReservations(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.repo.GetExpiredPending(ctx, now, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired reservations: %w", err)
	}

	processed := 0
	for i := range expired {
		booking := &expired[i]

		released, err := s.repo.ExpireReservation(ctx, booking, now)
		if err != nil {
			s.log.ErrorWithContext(ctx, "failed to expire reservation", err, map[string]interface{}{
				"booking_id": booking.ID.String(),
			})
			continue
		}
		if !released {
			// Paid or reaped between query and update
			continue
		}

		s.log.LogReservationExpired(ctx, booking.ID.String(), booking.GuestCount)
		processed++
	}

	return processed, nil
}

// MatureHeldRevenue moves matured holds into operator wallets, net of
// commission. One transaction per booking; the revenue_transferred_at
// guard makes each transfer exactly-once. Chronic failures escalate to a
// manual-review flag instead of retrying forever.
func (s *service) MatureHeldRevenue(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	departureCutoff := now.Add(-s.config.MaturationDelay)

	eligible, err := s.repo.GetMaturable(ctx, departureCutoff, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query maturable bookings: %w", err)
	}

	processed := 0
	for i := range eligible {
		booking := &eligible[i]

		net, matched, err := s.repo.MatureRevenue(ctx, booking, s.config.CommissionRate, now)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientHold) {
				s.log.LogHoldIntegrityWarning(ctx, booking.OperatorID.String(), booking.RevenueHold)
			} else {
				s.log.ErrorWithContext(ctx, "failed to mature revenue", err, map[string]interface{}{
					"booking_id": booking.ID.String(),
				})
			}
			s.recordTransferFailure(ctx, booking.ID)
			continue
		}
		if !matched {
			// Already transferred by an earlier tick
			continue
		}

		s.log.LogRevenueTransferred(ctx, booking.ID.String(), booking.OperatorID.String(), booking.RevenueHold, net)
		s.notifyTransfer(ctx, booking, net)
		processed++
	}

	return processed, nil
}

func (s *service) recordTransferFailure(ctx context.Context, bookingID uuid.UUID) {
	flagged, err := s.repo.RecordTransferFailure(ctx, bookingID, s.config.MaturationMaxFailures)
	if err != nil {
		s.log.ErrorWithContext(ctx, "failed to record transfer failure", err, map[string]interface{}{
			"booking_id": bookingID.String(),
		})
		return
	}
	if flagged {
		s.log.WithFields(map[string]interface{}{
			"booking_id": bookingID.String(),
		}).WarnContext(ctx, "booking flagged for manual review after repeated transfer failures")
	}
}

func (s *service) notifyTransfer(ctx context.Context, booking *Booking, net float64) {
	if s.notification == nil {
		return
	}

	title := ""
	if s.tourInfo != nil {
		if t, err := s.tourInfo.GetTourTitle(ctx, booking.OperationID); err == nil {
			title = t
		}
	}

	completedAt := time.Now().UTC()
	if departure, err := s.repo.GetSlotDeparture(ctx, booking.SlotID); err == nil {
		completedAt = departure
	}

	if err := s.notification.NotifyRevenueTransferred(ctx, booking.OperatorID, booking.ID, title, net, completedAt); err != nil {
		s.log.ErrorWithContext(ctx, "failed to send transfer notification", err, map[string]interface{}{
			"booking_id": booking.ID.String(),
		})
	}
}
