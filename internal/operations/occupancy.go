package operations

// IsUnderBooked reports whether booked guests fall strictly below the
// threshold share of capacity. A rate exactly at the threshold keeps the
// operation alive. Zero or negative capacity always counts as under-booked.
func IsUnderBooked(currentBookings, maxGuests int, threshold float64) bool {
	if maxGuests <= 0 {
		return true
	}
	rate := float64(currentBookings) / float64(maxGuests)
	return rate < threshold
}
