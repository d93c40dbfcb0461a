package operations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperationStatus string

const (
	OperationStatusActive    OperationStatus = "ACTIVE"
	OperationStatusCancelled OperationStatus = "CANCELLED"
)

type DetailsStatus string

const (
	DetailsStatusDraft    DetailsStatus = "DRAFT"
	DetailsStatusPublic   DetailsStatus = "PUBLIC"
	DetailsStatusArchived DetailsStatus = "ARCHIVED"
)

// TourDetails is the published tour description owned by an operator.
// Only PUBLIC tours participate in the auto-cancellation sweep.
type TourDetails struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OperatorID  uuid.UUID      `gorm:"type:uuid;index;not null" json:"operator_id"`
	Title       string         `gorm:"not null" json:"title"`
	Status      DetailsStatus  `gorm:"type:varchar(20);index;default:'DRAFT'" json:"status"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TourSlot carries the departure date for a scheduled instance
type TourSlot struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OperationID   uuid.UUID `gorm:"type:uuid;index;not null" json:"operation_id"`
	DepartureDate time.Time `gorm:"index;not null" json:"departure_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// TourOperation is the capacity container for a scheduled tour instance.
// CurrentBookings counts guests, not booking rows.
type TourOperation struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TourDetailsID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"tour_details_id"`
	OperatorID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"operator_id"`
	MaxGuests       int             `gorm:"not null" json:"max_guests"`
	CurrentBookings int             `gorm:"not null;default:0" json:"current_bookings"`
	Price           float64         `gorm:"not null" json:"price"`
	Status          OperationStatus `gorm:"type:varchar(20);index;default:'ACTIVE'" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	TourDetails *TourDetails `json:"tour_details,omitempty" gorm:"foreignKey:TourDetailsID"`
	Slots       []TourSlot   `json:"slots,omitempty" gorm:"foreignKey:OperationID"`
}

// TableName sets the table name for TourDetails
func (TourDetails) TableName() string {
	return "tour_details"
}

// TableName sets the table name for TourSlot
func (TourSlot) TableName() string {
	return "tour_slots"
}

// TableName sets the table name for TourOperation
func (TourOperation) TableName() string {
	return "tour_operations"
}

// OccupancyRate returns booked guests over capacity; zero capacity rates as 0
func (o *TourOperation) OccupancyRate() float64 {
	if o.MaxGuests <= 0 {
		return 0
	}
	return float64(o.CurrentBookings) / float64(o.MaxGuests)
}

// NextDepartureWithin returns the earliest slot departing after now and no
// later than now+window, or nil when no slot falls inside the decision window
func (o *TourOperation) NextDepartureWithin(now time.Time, window time.Duration) *TourSlot {
	var next *TourSlot
	cutoff := now.Add(window)
	for i := range o.Slots {
		slot := &o.Slots[i]
		if !slot.DepartureDate.After(now) {
			continue
		}
		if slot.DepartureDate.After(cutoff) {
			continue
		}
		if next == nil || slot.DepartureDate.Before(next.DepartureDate) {
			next = slot
		}
	}
	return next
}
