package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository mutates escrow balances. The *Tx methods operate on a
// caller-supplied transaction handle so a balance change always commits
// or rolls back together with the booking row it accompanies.
type Repository interface {
	GetAccountByOperatorID(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error)
	CreateAccount(ctx context.Context, account *EscrowAccount) error
	GetEntries(ctx context.Context, operatorID uuid.UUID, limit int) ([]LedgerEntry, error)

	AddToHoldTx(tx *gorm.DB, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error
	TransferHoldToWalletTx(tx *gorm.DB, operatorID uuid.UUID, gross, net float64, bookingID *uuid.UUID) error
	RefundFromHoldTx(tx *gorm.DB, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetAccountByOperatorID(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error) {
	var account EscrowAccount
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *EscrowAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) GetEntries(ctx context.Context, operatorID uuid.UUID, limit int) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// AddToHoldTx atomically increments the operator's hold balance
func (r *repository) AddToHoldTx(tx *gorm.DB, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result := tx.Model(&EscrowAccount{}).
		Where("operator_id = ?", operatorID).
		Updates(map[string]interface{}{
			"revenue_hold": gorm.Expr("revenue_hold + ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add to hold: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return r.appendEntry(tx, operatorID, bookingID, EntryTypeHoldAdded, amount, "revenue held in escrow")
}

// TransferHoldToWalletTx atomically moves a matured hold into the wallet.
// The hold drops by the full gross amount while the wallet gains only the
// net; the commission difference is retained by the platform.
func (r *repository) TransferHoldToWalletTx(tx *gorm.DB, operatorID uuid.UUID, gross, net float64, bookingID *uuid.UUID) error {
	if gross <= 0 || net <= 0 || net > gross {
		return ErrInvalidAmount
	}

	// Single guarded UPDATE: the revenue_hold >= gross predicate makes the
	// row-level lock the serialization point for concurrent workers.
	result := tx.Model(&EscrowAccount{}).
		Where("operator_id = ? AND revenue_hold >= ?", operatorID, gross).
		Updates(map[string]interface{}{
			"revenue_hold": gorm.Expr("revenue_hold - ?", gross),
			"wallet":       gorm.Expr("wallet + ?", net),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to transfer hold to wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyGuardMiss(tx, operatorID)
	}

	return r.appendEntry(tx, operatorID, bookingID, EntryTypeHoldTransferred, net, "revenue matured to wallet")
}

// RefundFromHoldTx atomically decrements the hold without crediting the
// wallet; refunded funds leave the platform
func (r *repository) RefundFromHoldTx(tx *gorm.DB, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	result := tx.Model(&EscrowAccount{}).
		Where("operator_id = ? AND revenue_hold >= ?", operatorID, amount).
		Updates(map[string]interface{}{
			"revenue_hold": gorm.Expr("revenue_hold - ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to refund from hold: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyGuardMiss(tx, operatorID)
	}

	return r.appendEntry(tx, operatorID, bookingID, EntryTypeHoldRefunded, amount, "hold refunded on cancellation")
}

// classifyGuardMiss distinguishes a missing account from an insufficient
// balance after a guarded update matched no row
func (r *repository) classifyGuardMiss(tx *gorm.DB, operatorID uuid.UUID) error {
	var count int64
	if err := tx.Model(&EscrowAccount{}).
		Where("operator_id = ?", operatorID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to inspect escrow account: %w", err)
	}
	if count == 0 {
		return ErrAccountNotFound
	}
	return ErrInsufficientHold
}

func (r *repository) appendEntry(tx *gorm.DB, operatorID uuid.UUID, bookingID *uuid.UUID, entryType EntryType, amount float64, note string) error {
	entry := LedgerEntry{
		ID:         uuid.New(),
		OperatorID: operatorID,
		BookingID:  bookingID,
		Type:       entryType,
		Amount:     amount,
		Note:       note,
		CreatedAt:  time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
