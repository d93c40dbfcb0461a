package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourly/internal/bookings"
	"tourly/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CancellationOutcome reports what one auto-cancellation transaction did
type CancellationOutcome struct {
	Operation         *TourOperation
	CancelledBookings []bookings.Booking
	GuestsAffected    int
	RefundedTotal     float64
}

type Repository interface {
	CreateDetails(ctx context.Context, details *TourDetails) error
	CreateSlot(ctx context.Context, slot *TourSlot) error
	CreateOperation(ctx context.Context, operation *TourOperation) error

	GetOperationByID(ctx context.Context, id uuid.UUID) (*TourOperation, error)
	GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error)

	// Auto-cancellation sweep support
	GetCancellationCandidates(ctx context.Context, limit, offset int) ([]TourOperation, error)
	CancelOperationWithRefunds(ctx context.Context, operationID uuid.UUID, now time.Time, reason string, occupancyThreshold float64) (*CancellationOutcome, error)
}

type repository struct {
	db           *gorm.DB
	bookingsRepo bookings.Repository
	ledgerRepo   ledger.Repository
}

func NewRepository(db *gorm.DB, bookingsRepo bookings.Repository, ledgerRepo ledger.Repository) Repository {
	return &repository{db: db, bookingsRepo: bookingsRepo, ledgerRepo: ledgerRepo}
}

func (r *repository) CreateDetails(ctx context.Context, details *TourDetails) error {
	return r.db.WithContext(ctx).Create(details).Error
}

func (r *repository) CreateSlot(ctx context.Context, slot *TourSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *repository) CreateOperation(ctx context.Context, operation *TourOperation) error {
	return r.db.WithContext(ctx).Create(operation).Error
}

func (r *repository) GetOperationByID(ctx context.Context, id uuid.UUID) (*TourOperation, error) {
	var operation TourOperation
	err := r.db.WithContext(ctx).
		Preload("TourDetails").
		Preload("Slots").
		Where("id = ?", id).
		First(&operation).Error
	if err != nil {
		return nil, err
	}
	return &operation, nil
}

func (r *repository) GetTourTitle(ctx context.Context, operationID uuid.UUID) (string, error) {
	var title string
	err := r.db.WithContext(ctx).
		Table("tour_operations").
		Select("tour_details.title").
		Joins("JOIN tour_details ON tour_details.id = tour_operations.tour_details_id").
		Where("tour_operations.id = ?", operationID).
		Scan(&title).Error
	if err != nil {
		return "", err
	}
	if title == "" {
		return "", gorm.ErrRecordNotFound
	}
	return title, nil
}

// GetCancellationCandidates returns active, non-deleted operations whose
// tour is PUBLIC, with slots and details preloaded for the window and
// occupancy checks. Paged so one sweep never holds an unbounded result set.
func (r *repository) GetCancellationCandidates(ctx context.Context, limit, offset int) ([]TourOperation, error) {
	var candidates []TourOperation
	err := r.db.WithContext(ctx).
		Preload("TourDetails").
		Preload("Slots").
		Joins("JOIN tour_details ON tour_details.id = tour_operations.tour_details_id").
		Where("tour_operations.status = ?", OperationStatusActive).
		Where("tour_details.status = ?", DetailsStatusPublic).
		Where("tour_details.deleted_at IS NULL").
		Order("tour_operations.created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&candidates).Error
	return candidates, err
}

// CancelOperationWithRefunds cancels one under-booked operation and all of
// its CONFIRMED bookings, refunding each booking's outstanding hold, in a
// single transaction. Refunds are gated on the booking still being
// CONFIRMED, so invoking the cancellation twice never refunds twice; a
// second call finds the operation no longer ACTIVE and returns nil.
// Occupancy is re-evaluated on the locked row, so a reservation confirmed
// after the sweep's candidate query still saves the operation.
func (r *repository) CancelOperationWithRefunds(ctx context.Context, operationID uuid.UUID, now time.Time, reason string, occupancyThreshold float64) (*CancellationOutcome, error) {
	var outcome *CancellationOutcome

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var operation TourOperation
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", operationID).
			First(&operation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("tour operation not found")
			}
			return fmt.Errorf("failed to lock tour operation: %w", err)
		}

		if operation.Status != OperationStatusActive {
			return nil
		}
		if !IsUnderBooked(operation.CurrentBookings, operation.MaxGuests, occupancyThreshold) {
			return nil
		}

		err = tx.Model(&TourOperation{}).
			Where("id = ?", operationID).
			Updates(map[string]interface{}{
				"status":     OperationStatusCancelled,
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to cancel tour operation: %w", err)
		}

		confirmed, err := r.bookingsRepo.GetConfirmedByOperationTx(tx, operationID)
		if err != nil {
			return fmt.Errorf("failed to load confirmed bookings: %w", err)
		}

		result := &CancellationOutcome{Operation: &operation}
		for i := range confirmed {
			booking := &confirmed[i]

			cancelled, err := r.bookingsRepo.CancelByCompanyTx(tx, booking.ID, now, reason)
			if err != nil {
				return fmt.Errorf("failed to cancel booking %s: %w", booking.ID, err)
			}
			if !cancelled {
				continue
			}

			if booking.RevenueHold > 0 {
				if err := r.ledgerRepo.RefundFromHoldTx(tx, booking.OperatorID, booking.RevenueHold, &booking.ID); err != nil {
					return fmt.Errorf("failed to refund hold for booking %s: %w", booking.ID, err)
				}
				if err := r.bookingsRepo.ClearHoldTx(tx, booking.ID); err != nil {
					return fmt.Errorf("failed to clear hold on booking %s: %w", booking.ID, err)
				}
				result.RefundedTotal += booking.RevenueHold
			}

			result.CancelledBookings = append(result.CancelledBookings, *booking)
			result.GuestsAffected += booking.GuestCount
		}

		outcome = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}
