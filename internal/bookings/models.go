package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Cancellation reasons stamped by the background workers
const (
	ReasonPaymentWindowExpired = "payment window expired"
	ReasonUnderBooked          = "tour cancelled: not enough guests booked"
)

// Booking defines one customer reservation against a tour operation
type Booking struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OperationID uuid.UUID `gorm:"type:uuid;index;not null" json:"operation_id"`
	SlotID      uuid.UUID `gorm:"type:uuid;index;not null" json:"slot_id"`
	OperatorID  uuid.UUID `gorm:"type:uuid;index;not null" json:"operator_id"`
	GuestCount  int       `gorm:"not null" json:"guest_count"`
	TotalPrice  float64   `gorm:"not null" json:"total_price"`
	Status      Status    `gorm:"type:varchar(30);index;default:'PENDING'" json:"status"`

	// Payment reservation deadline; set while PENDING, cleared on expiry
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`

	// Escrow state. RevenueHold is the amount still owed to the operator's
	// hold balance for this booking; zero once transferred or refunded.
	RevenueHold          float64    `gorm:"not null;default:0" json:"revenue_hold"`
	RevenueTransferredAt *time.Time `json:"revenue_transferred_at,omitempty"`
	TransferFailures     int        `gorm:"not null;default:0" json:"transfer_failures"`
	NeedsReview          bool       `gorm:"not null;default:false" json:"needs_review"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelledByCustomer || b.Status == StatusCancelledByCompany
}

// HoldOutstanding reports whether escrowed funds are still attached to
// this booking (neither matured into the wallet nor refunded)
func (b *Booking) HoldOutstanding() bool {
	return b.RevenueHold > 0 && b.RevenueTransferredAt == nil
}
