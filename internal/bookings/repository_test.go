package bookings

import (
	"context"
	"testing"
	"time"

	"tourly/internal/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock
}

func bookingRow(id uuid.UUID, status Status, totalPrice, revenueHold float64, reservedUntil, transferredAt *time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "operation_id", "slot_id", "operator_id", "guest_count", "total_price",
		"status", "reserved_until", "revenue_hold", "revenue_transferred_at",
		"transfer_failures", "needs_review", "cancelled_at", "cancellation_reason",
		"created_at", "updated_at",
	}).AddRow(id, uuid.New(), uuid.New(), uuid.New(), 4, totalPrice,
		string(status), reservedUntil, revenueHold, transferredAt,
		0, false, nil, "", now, now)
}

func TestMatureRevenue_SkipsTransferredHold(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewRepository(gormDB, ledger.NewRepository(gormDB))

	transferredAt := time.Now().UTC().Add(-time.Hour)
	booking := &Booking{
		ID:                   uuid.New(),
		OperatorID:           uuid.New(),
		Status:               StatusCompleted,
		RevenueHold:          900_000,
		RevenueTransferredAt: &transferredAt,
	}

	// No transaction should even be opened for a hold that already moved
	net, matched, err := repo.MatureRevenue(context.Background(), booking, 0.10, time.Now().UTC())
	require.NoError(t, err)

	assert.False(t, matched)
	assert.Equal(t, 0.0, net)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatureRevenue_SkipsRefundedHold(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewRepository(gormDB, ledger.NewRepository(gormDB))

	booking := &Booking{
		ID:          uuid.New(),
		OperatorID:  uuid.New(),
		Status:      StatusCompleted,
		RevenueHold: 0,
	}

	net, matched, err := repo.MatureRevenue(context.Background(), booking, 0.10, time.Now().UTC())
	require.NoError(t, err)

	assert.False(t, matched)
	assert.Equal(t, 0.0, net)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBooking_RefusesNonPendingStatus(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewRepository(gormDB, ledger.NewRepository(gormDB))
	bookingID := uuid.New()
	now := time.Now().UTC()

	reservedUntil := now.Add(15 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"(.+)FOR UPDATE`).
		WillReturnRows(bookingRow(bookingID, StatusConfirmed, 120_000, 120_000, &reservedUntil, nil))
	mock.ExpectCommit()

	confirmed, err := repo.ConfirmBooking(context.Background(), bookingID, now)
	require.NoError(t, err)

	assert.False(t, confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmBooking_RefusesLapsedReservation(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewRepository(gormDB, ledger.NewRepository(gormDB))
	bookingID := uuid.New()
	now := time.Now().UTC()

	lapsed := now.Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"(.+)FOR UPDATE`).
		WillReturnRows(bookingRow(bookingID, StatusPending, 120_000, 0, &lapsed, nil))
	mock.ExpectCommit()

	confirmed, err := repo.ConfirmBooking(context.Background(), bookingID, now)
	require.NoError(t, err)

	assert.False(t, confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
