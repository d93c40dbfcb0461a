package workers

import (
	"time"

	"tourly/internal/bookings"
	"tourly/internal/operations"
)

// Worker names, also used as cache keys for run snapshots
const (
	JobExpirationReaper  = "expiration-reaper"
	JobAutoCancellation  = "auto-cancellation"
	JobRevenueMaturation = "revenue-maturation"
)

// NewExpirationReaper releases unpaid reservations whose payment window
// lapsed and frees the capacity they held
func NewExpirationReaper(service bookings.Service, interval time.Duration) Job {
	return Job{
		Name:     JobExpirationReaper,
		Interval: interval,
		Tick:     service.ReleaseExpiredReservations,
	}
}

// NewAutoCancellationJob cancels under-booked operations departing inside
// the decision window and refunds their held revenue
func NewAutoCancellationJob(service operations.Service, interval time.Duration) Job {
	return Job{
		Name:     JobAutoCancellation,
		Interval: interval,
		Tick:     service.CancelUnderbookedOperations,
	}
}

// NewRevenueMaturationJob moves matured holds into operator wallets, net
// of commission
func NewRevenueMaturationJob(service bookings.Service, interval time.Duration) Job {
	return Job{
		Name:     JobRevenueMaturation,
		Interval: interval,
		Tick:     service.MatureHeldRevenue,
	}
}
