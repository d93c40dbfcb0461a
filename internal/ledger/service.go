package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service interface defines the contract for standalone ledger operations.
// Callers that mutate a booking row in the same transaction should use the
// repository's *Tx methods inside their own transaction instead.
type Service interface {
	GetAccount(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error)
	EnsureAccount(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error)
	GetRecentEntries(ctx context.Context, operatorID uuid.UUID, limit int) ([]LedgerEntry, error)

	AddToHold(ctx context.Context, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error
	TransferHoldToWallet(ctx context.Context, operatorID uuid.UUID, gross, net float64, bookingID *uuid.UUID) error
	RefundFromHold(ctx context.Context, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error
}

// service implements the Service interface
type service struct {
	db   *gorm.DB
	repo Repository
}

// NewService creates a new ledger service instance
func NewService(db *gorm.DB, repo Repository) Service {
	return &service{db: db, repo: repo}
}

func (s *service) GetAccount(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error) {
	return s.repo.GetAccountByOperatorID(ctx, operatorID)
}

// EnsureAccount returns the operator's account, creating an empty one when
// none exists yet
func (s *service) EnsureAccount(ctx context.Context, operatorID uuid.UUID) (*EscrowAccount, error) {
	account, err := s.repo.GetAccountByOperatorID(ctx, operatorID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	account = &EscrowAccount{
		ID:         uuid.New(),
		OperatorID: operatorID,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create escrow account: %w", err)
	}
	return account, nil
}

func (s *service) GetRecentEntries(ctx context.Context, operatorID uuid.UUID, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.GetEntries(ctx, operatorID, limit)
}

func (s *service) AddToHold(ctx context.Context, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.AddToHoldTx(tx, operatorID, amount, bookingID)
	})
}

func (s *service) TransferHoldToWallet(ctx context.Context, operatorID uuid.UUID, gross, net float64, bookingID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.TransferHoldToWalletTx(tx, operatorID, gross, net, bookingID)
	})
}

func (s *service) RefundFromHold(ctx context.Context, operatorID uuid.UUID, amount float64, bookingID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.RefundFromHoldTx(tx, operatorID, amount, bookingID)
	})
}
