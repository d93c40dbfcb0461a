package ledger

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryTypeHoldAdded       EntryType = "HOLD_ADDED"
	EntryTypeHoldTransferred EntryType = "HOLD_TRANSFERRED"
	EntryTypeHoldRefunded    EntryType = "HOLD_REFUNDED"
)

// EscrowAccount carries the two-tier balance for one tour operator.
// Wallet is spendable; RevenueHold aggregates the per-booking holds that
// have not yet matured or been refunded.
type EscrowAccount struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OperatorID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"operator_id"`
	Wallet      float64   `gorm:"not null;default:0" json:"wallet"`
	RevenueHold float64   `gorm:"not null;default:0" json:"revenue_hold"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LedgerEntry is an append-only audit row written in the same transaction
// as the balance mutation it records
type LedgerEntry struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OperatorID uuid.UUID  `gorm:"type:uuid;index;not null" json:"operator_id"`
	BookingID  *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	Type       EntryType  `gorm:"type:varchar(30);not null" json:"type"`
	Amount     float64    `gorm:"not null" json:"amount"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName sets the table name for EscrowAccount
func (EscrowAccount) TableName() string {
	return "escrow_accounts"
}

// TableName sets the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
