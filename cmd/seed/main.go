package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"tourly/internal/bookings"
	"tourly/internal/ledger"
	"tourly/internal/operations"
	"tourly/internal/shared/config"
	"tourly/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db *database.DB

	ledgerService ledger.Service
	bookingRepo   bookings.Repository
	operationRepo operations.Repository
}

func main() {
	fmt.Println("🌱 Starting Tourly Database Seeder...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ledgerRepo := ledger.NewRepository(db.GetPostgreSQL())
	bookingRepo := bookings.NewRepository(db.GetPostgreSQL(), ledgerRepo)

	seeder := &Seeder{
		db:            db,
		ledgerService: ledger.NewService(db.GetPostgreSQL(), ledgerRepo),
		bookingRepo:   bookingRepo,
		operationRepo: operations.NewRepository(db.GetPostgreSQL(), bookingRepo, ledgerRepo),
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"ledger_entries",
		"bookings",
		"tour_slots",
		"tour_operations",
		"tour_details",
		"escrow_accounts",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds two operators with fixtures that exercise every worker:
// an under-booked tour departing tomorrow for the auto-cancellation sweep,
// a lapsed pending reservation for the expiration reaper, and a completed
// booking with an outstanding hold for the maturation scheduler.
func (s *Seeder) SeedAll() error {
	ctx := context.Background()
	now := time.Now().UTC()

	alpineOperator := uuid.New()
	coastalOperator := uuid.New()

	for _, operatorID := range []uuid.UUID{alpineOperator, coastalOperator} {
		if _, err := s.ledgerService.EnsureAccount(ctx, operatorID); err != nil {
			return fmt.Errorf("failed to seed escrow account: %w", err)
		}
	}
	fmt.Println("  Seeded 2 operators with escrow accounts")

	// Under-booked tour departing tomorrow: 4 of 20 guests booked, one
	// confirmed booking holding revenue. The auto-cancellation sweep
	// should cancel it and refund the hold.
	underbooked, underbookedSlot, err := s.seedOperation(ctx, alpineOperator,
		"Alpine Glacier Hike", 20, now.Add(24*time.Hour))
	if err != nil {
		return err
	}
	if err := s.seedConfirmedBooking(ctx, underbooked, underbookedSlot, alpineOperator, 4, 120000); err != nil {
		return err
	}
	fmt.Println("  Seeded under-booked operation departing tomorrow")

	// Healthy tour departing tomorrow: 15 of 20 guests, should survive
	// the sweep untouched.
	healthy, healthySlot, err := s.seedOperation(ctx, alpineOperator,
		"Sunrise Ridge Traverse", 20, now.Add(36*time.Hour))
	if err != nil {
		return err
	}
	if err := s.seedConfirmedBooking(ctx, healthy, healthySlot, alpineOperator, 15, 450000); err != nil {
		return err
	}
	fmt.Println("  Seeded healthy operation departing tomorrow")

	// Lapsed pending reservation: payment deadline passed 30 minutes ago,
	// reaper should release it.
	pendingOp, pendingSlot, err := s.seedOperation(ctx, coastalOperator,
		"Coastal Kayak Expedition", 12, now.Add(10*24*time.Hour))
	if err != nil {
		return err
	}
	lapsed := now.Add(-30 * time.Minute)
	expiredBooking := &bookings.Booking{
		ID:            uuid.New(),
		OperationID:   pendingOp,
		SlotID:        pendingSlot,
		OperatorID:    coastalOperator,
		GuestCount:    3,
		TotalPrice:    90000,
		Status:        bookings.StatusPending,
		ReservedUntil: &lapsed,
	}
	if err := s.bookingRepo.CreateBookingWithCapacityCheck(ctx, expiredBooking); err != nil {
		return fmt.Errorf("failed to seed expired reservation: %w", err)
	}
	fmt.Println("  Seeded lapsed pending reservation")

	// Completed booking whose tour departed four days ago: past the grace
	// period, maturation should move the hold into the wallet.
	maturedOp, maturedSlot, err := s.seedOperation(ctx, coastalOperator,
		"Island Snorkel Safari", 10, now.Add(-4*24*time.Hour))
	if err != nil {
		return err
	}
	if err := s.seedCompletedBooking(ctx, maturedOp, maturedSlot, coastalOperator, 6, 900000); err != nil {
		return err
	}
	fmt.Println("  Seeded completed booking awaiting maturation")

	return nil
}

func (s *Seeder) seedOperation(ctx context.Context, operatorID uuid.UUID, title string, maxGuests int, departure time.Time) (uuid.UUID, uuid.UUID, error) {
	now := time.Now().UTC()

	details := &operations.TourDetails{
		ID:          uuid.New(),
		OperatorID:  operatorID,
		Title:       title,
		Status:      operations.DetailsStatusPublic,
		PublishedAt: &now,
	}
	if err := s.operationRepo.CreateDetails(ctx, details); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to seed tour details %q: %w", title, err)
	}

	operation := &operations.TourOperation{
		ID:            uuid.New(),
		TourDetailsID: details.ID,
		OperatorID:    operatorID,
		MaxGuests:     maxGuests,
		Price:         30000,
		Status:        operations.OperationStatusActive,
	}
	if err := s.operationRepo.CreateOperation(ctx, operation); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to seed operation %q: %w", title, err)
	}

	slot := &operations.TourSlot{
		ID:            uuid.New(),
		OperationID:   operation.ID,
		DepartureDate: departure,
	}
	if err := s.operationRepo.CreateSlot(ctx, slot); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to seed slot for %q: %w", title, err)
	}

	return operation.ID, slot.ID, nil
}

// seedConfirmedBooking creates a paid booking and escrows its price the
// same way payment confirmation does in production
func (s *Seeder) seedConfirmedBooking(ctx context.Context, operationID, slotID, operatorID uuid.UUID, guests int, price float64) error {
	reservedUntil := time.Now().UTC().Add(15 * time.Minute)
	booking := &bookings.Booking{
		ID:            uuid.New(),
		OperationID:   operationID,
		SlotID:        slotID,
		OperatorID:    operatorID,
		GuestCount:    guests,
		TotalPrice:    price,
		Status:        bookings.StatusPending,
		ReservedUntil: &reservedUntil,
	}
	if err := s.bookingRepo.CreateBookingWithCapacityCheck(ctx, booking); err != nil {
		return fmt.Errorf("failed to seed booking: %w", err)
	}

	confirmed, err := s.bookingRepo.ConfirmBooking(ctx, booking.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to confirm seeded booking: %w", err)
	}
	if !confirmed {
		return fmt.Errorf("seeded booking %s did not confirm", booking.ID)
	}
	return nil
}

// seedCompletedBooking creates a COMPLETED booking with an outstanding
// hold, the state tour-completion logic leaves behind
func (s *Seeder) seedCompletedBooking(ctx context.Context, operationID, slotID, operatorID uuid.UUID, guests int, price float64) error {
	if err := s.seedConfirmedBooking(ctx, operationID, slotID, operatorID, guests, price); err != nil {
		return err
	}

	return s.db.PostgreSQL.WithContext(ctx).
		Table("bookings").
		Where("operation_id = ? AND status = ?", operationID, bookings.StatusConfirmed).
		Update("status", bookings.StatusCompleted).Error
}
