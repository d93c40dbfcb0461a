package database

import (
	"tourly/internal/bookings"
	"tourly/internal/ledger"
	"tourly/internal/operations"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&operations.TourDetails{},
		&operations.TourSlot{},
		&operations.TourOperation{},
		&bookings.Booking{},
		&ledger.EscrowAccount{},
		&ledger.LedgerEntry{},
	)
}
