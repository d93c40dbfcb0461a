package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourly/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Core booking operations
	CreateBooking(ctx context.Context, booking *Booking) error
	CreateBookingWithCapacityCheck(ctx context.Context, booking *Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetSlotDeparture(ctx context.Context, slotID uuid.UUID) (time.Time, error)

	// Payment confirmation (moves the price into escrow)
	ConfirmBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// Expiration reaper support
	GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]Booking, error)
	ExpireReservation(ctx context.Context, booking *Booking, now time.Time) (bool, error)

	// Revenue maturation support
	GetMaturable(ctx context.Context, departureCutoff time.Time, limit int) ([]Booking, error)
	MatureRevenue(ctx context.Context, booking *Booking, commissionRate float64, now time.Time) (float64, bool, error)
	RecordTransferFailure(ctx context.Context, id uuid.UUID, maxFailures int) (bool, error)

	// In-transaction helpers for the auto-cancellation sweep
	GetConfirmedByOperationTx(tx *gorm.DB, operationID uuid.UUID) ([]Booking, error)
	CancelByCompanyTx(tx *gorm.DB, id uuid.UUID, now time.Time, reason string) (bool, error)
	ClearHoldTx(tx *gorm.DB, id uuid.UUID) error
}

type repository struct {
	db         *gorm.DB
	ledgerRepo ledger.Repository
}

func NewRepository(db *gorm.DB, ledgerRepo ledger.Repository) Repository {
	return &repository{db: db, ledgerRepo: ledgerRepo}
}

func (r *repository) CreateBooking(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// CreateBookingWithCapacityCheck creates a booking atomically with capacity validation
func (r *repository) CreateBookingWithCapacityCheck(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the operation row for update to prevent race conditions
		var operation struct {
			ID              uuid.UUID `gorm:"column:id"`
			MaxGuests       int       `gorm:"column:max_guests"`
			CurrentBookings int       `gorm:"column:current_bookings"`
			Status          string    `gorm:"column:status"`
		}

		err := tx.Table("tour_operations").
			Select("id, max_guests, current_bookings, status").
			Where("id = ?", booking.OperationID).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&operation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("tour operation not found")
			}
			return fmt.Errorf("failed to lock tour operation: %w", err)
		}

		if operation.Status != "ACTIVE" {
			return errors.New("tour operation is not available for booking")
		}

		newGuestCount := operation.CurrentBookings + booking.GuestCount
		if newGuestCount > operation.MaxGuests {
			available := operation.MaxGuests - operation.CurrentBookings
			if available <= 0 {
				return errors.New("tour operation is fully booked")
			}
			return fmt.Errorf("insufficient capacity: only %d seats available, requested %d",
				available, booking.GuestCount)
		}

		if err := tx.Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		err = tx.Table("tour_operations").
			Where("id = ?", booking.OperationID).
			Update("current_bookings", newGuestCount).Error
		if err != nil {
			return fmt.Errorf("failed to update operation guest count: %w", err)
		}

		return nil
	})
}

func (r *repository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetSlotDeparture(ctx context.Context, slotID uuid.UUID) (time.Time, error) {
	var departure time.Time
	err := r.db.WithContext(ctx).
		Table("tour_slots").
		Select("departure_date").
		Where("id = ?", slotID).
		Scan(&departure).Error
	if err != nil {
		return time.Time{}, err
	}
	if departure.IsZero() {
		return time.Time{}, gorm.ErrRecordNotFound
	}
	return departure, nil
}

// ConfirmBooking moves a still-reserved PENDING booking to CONFIRMED and
// escrows its full price in the same transaction. Returns false when the
// reservation already lapsed or the booking is no longer pending.
func (r *repository) ConfirmBooking(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	confirmed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var booking Booking
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&booking).Error
		if err != nil {
			return err
		}

		if !booking.Status.CanTransitionTo(StatusConfirmed) {
			return nil
		}
		if booking.ReservedUntil == nil || booking.ReservedUntil.Before(now) {
			return nil
		}

		result := tx.Model(&Booking{}).
			Where("id = ? AND status = ?", id, StatusPending).
			Updates(map[string]interface{}{
				"status":       StatusConfirmed,
				"revenue_hold": booking.TotalPrice,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := r.ledgerRepo.AddToHoldTx(tx, booking.OperatorID, booking.TotalPrice, &booking.ID); err != nil {
			return fmt.Errorf("failed to escrow booking price: %w", err)
		}

		confirmed = true
		return nil
	})
	return confirmed, err
}

func (r *repository) GetExpiredPending(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	var expired []Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND reserved_until IS NOT NULL AND reserved_until < ?", StatusPending, now).
		Order("reserved_until ASC").
		Limit(limit).
		Find(&expired).Error
	return expired, err
}

// ExpireReservation cancels one lapsed PENDING booking and releases its
// guests back to the operation's capacity, in a single transaction. The
// status guard makes the call idempotent: a booking that was paid or
// already reaped between query and update matches no row and is skipped.
func (r *repository) ExpireReservation(ctx context.Context, booking *Booking, now time.Time) (bool, error) {
	expired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Booking{}).
			Where("id = ? AND status = ? AND reserved_until < ?", booking.ID, StatusPending, now).
			Updates(map[string]interface{}{
				"status":              StatusCancelledByCustomer,
				"cancelled_at":        now,
				"cancellation_reason": ReasonPaymentWindowExpired,
				"reserved_until":      nil,
				"updated_at":          now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		err := tx.Table("tour_operations").
			Where("id = ?", booking.OperationID).
			Updates(map[string]interface{}{
				"current_bookings": gorm.Expr("GREATEST(current_bookings - ?, 0)", booking.GuestCount),
				"updated_at":       now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to release capacity: %w", err)
		}

		expired = true
		return nil
	})
	return expired, err
}

// GetMaturable returns completed bookings whose hold is ready to move into
// the operator's wallet: departed at least the grace period ago, hold not
// yet transferred, and not flagged for manual review
func (r *repository) GetMaturable(ctx context.Context, departureCutoff time.Time, limit int) ([]Booking, error) {
	var eligible []Booking
	err := r.db.WithContext(ctx).
		Joins("JOIN tour_slots ON tour_slots.id = bookings.slot_id").
		Where("bookings.status = ?", StatusCompleted).
		Where("bookings.revenue_hold > 0").
		Where("bookings.revenue_transferred_at IS NULL").
		Where("bookings.needs_review = false").
		Where("tour_slots.departure_date <= ?", departureCutoff).
		Order("tour_slots.departure_date ASC").
		Limit(limit).
		Find(&eligible).Error
	return eligible, err
}

// MatureRevenue transfers one booking's hold into the operator's wallet,
// net of commission, in a single transaction. The revenue_transferred_at
// IS NULL guard means a booking matures at most once; a second call is a
// no-op and reports matched=false.
func (r *repository) MatureRevenue(ctx context.Context, booking *Booking, commissionRate float64, now time.Time) (float64, bool, error) {
	// A row already transferred or refunded would miss the guard below;
	// skip it without opening a transaction
	if !booking.HoldOutstanding() {
		return 0, false, nil
	}

	gross := booking.RevenueHold
	net := gross * (1 - commissionRate)

	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Booking{}).
			Where("id = ? AND status = ? AND revenue_transferred_at IS NULL AND revenue_hold = ?",
				booking.ID, StatusCompleted, gross).
			Updates(map[string]interface{}{
				"revenue_hold":           0,
				"revenue_transferred_at": now,
				"updated_at":             now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := r.ledgerRepo.TransferHoldToWalletTx(tx, booking.OperatorID, gross, net, &booking.ID); err != nil {
			return err
		}

		matched = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return net, matched, nil
}

// RecordTransferFailure bumps the booking's failure counter and flags it
// for manual review once the counter reaches maxFailures. Returns true
// when the booking was flagged on this call.
func (r *repository) RecordTransferFailure(ctx context.Context, id uuid.UUID, maxFailures int) (bool, error) {
	flagged := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Booking{}).
			Where("id = ?", id).
			Update("transfer_failures", gorm.Expr("transfer_failures + 1")).Error
		if err != nil {
			return err
		}

		result := tx.Model(&Booking{}).
			Where("id = ? AND transfer_failures >= ? AND needs_review = false", id, maxFailures).
			Update("needs_review", true)
		if result.Error != nil {
			return result.Error
		}
		flagged = result.RowsAffected > 0
		return nil
	})
	return flagged, err
}

func (r *repository) GetConfirmedByOperationTx(tx *gorm.DB, operationID uuid.UUID) ([]Booking, error) {
	var confirmed []Booking
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("operation_id = ? AND status = ?", operationID, StatusConfirmed).
		Order("created_at ASC").
		Find(&confirmed).Error
	return confirmed, err
}

// CancelByCompanyTx marks one CONFIRMED booking as cancelled by the
// company. The status guard prevents a double refund: a booking that was
// already cancelled matches no row.
func (r *repository) CancelByCompanyTx(tx *gorm.DB, id uuid.UUID, now time.Time, reason string) (bool, error) {
	result := tx.Model(&Booking{}).
		Where("id = ? AND status = ?", id, StatusConfirmed).
		Updates(map[string]interface{}{
			"status":              StatusCancelledByCompany,
			"cancelled_at":        now,
			"cancellation_reason": reason,
			"updated_at":          now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ClearHoldTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&Booking{}).
		Where("id = ?", id).
		Update("revenue_hold", 0).Error
}

// IsNotFound reports whether err is the store's missing-row error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
