package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEvaluate_DiscountInsideWindow(t *testing.T) {
	// Published two months out, booked nine days after publication:
	// inside the 14-day window and comfortably past the advance floor.
	quote, err := Evaluate(DefaultRules(), 1_000_000,
		date(2026, time.March, 1),    // departure
		date(2026, time.January, 1),  // publish
		date(2026, time.January, 10), // booking
	)
	require.NoError(t, err)

	assert.True(t, quote.Discounted)
	assert.Equal(t, 750_000.0, quote.FinalPrice)
	assert.Equal(t, 1_000_000.0, quote.OriginalPrice)
	assert.Equal(t, date(2026, time.January, 15), quote.WindowEnds)
}

func TestEvaluate_WindowCappedByDeparture(t *testing.T) {
	// Published nine days before departure: the window shrinks to those
	// nine days, but the 30-day advance floor kills the discount anyway.
	quote, err := Evaluate(DefaultRules(), 1_000_000,
		date(2026, time.January, 10), // departure
		date(2026, time.January, 1),  // publish
		date(2026, time.January, 5),  // booking
	)
	require.NoError(t, err)

	assert.False(t, quote.Discounted)
	assert.Equal(t, 1_000_000.0, quote.FinalPrice)
	assert.Equal(t, date(2026, time.January, 10), quote.WindowEnds)
}

func TestEvaluate_AdvanceFloorBeatsWindow(t *testing.T) {
	// Booked inside the window but only 20 days before departure: the
	// floor wins over the window and full price applies.
	quote, err := Evaluate(DefaultRules(), 500_000,
		date(2026, time.June, 21),
		date(2026, time.May, 25),
		date(2026, time.June, 1),
	)
	require.NoError(t, err)

	assert.False(t, quote.Discounted)
	assert.Equal(t, 500_000.0, quote.FinalPrice)
}

func TestEvaluate_BookingAfterWindowCloses(t *testing.T) {
	quote, err := Evaluate(DefaultRules(), 1_000_000,
		date(2026, time.June, 1),
		date(2026, time.January, 1),
		date(2026, time.February, 1), // window closed January 15
	)
	require.NoError(t, err)

	assert.False(t, quote.Discounted)
	assert.Equal(t, 1_000_000.0, quote.FinalPrice)
}

func TestEvaluate_BookingExactlyAtWindowEnd(t *testing.T) {
	// The window is half-open: a booking made the instant it closes pays
	// full price.
	quote, err := Evaluate(DefaultRules(), 1_000_000,
		date(2026, time.June, 1),
		date(2026, time.January, 1),
		date(2026, time.January, 15),
	)
	require.NoError(t, err)

	assert.False(t, quote.Discounted)
}

func TestEvaluate_InvalidInputs(t *testing.T) {
	_, err := Evaluate(DefaultRules(), 0,
		date(2026, time.March, 1), date(2026, time.January, 1), date(2026, time.January, 10))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Evaluate(DefaultRules(), -5,
		date(2026, time.March, 1), date(2026, time.January, 1), date(2026, time.January, 10))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Evaluate(DefaultRules(), 1_000_000,
		date(2026, time.January, 1), date(2026, time.January, 1), date(2026, time.January, 1))
	assert.ErrorIs(t, err, ErrDeparturePassed)

	_, err = Evaluate(DefaultRules(), 1_000_000,
		date(2025, time.December, 1), date(2025, time.November, 1), date(2026, time.January, 1))
	assert.ErrorIs(t, err, ErrDeparturePassed)
}

func TestEvaluate_CustomRules(t *testing.T) {
	rules := Rules{WindowDays: 7, MinAdvanceDays: 0, DiscountRate: 0.5}

	quote, err := Evaluate(rules, 200_000,
		date(2026, time.January, 10),
		date(2026, time.January, 1),
		date(2026, time.January, 3),
	)
	require.NoError(t, err)

	assert.True(t, quote.Discounted)
	assert.Equal(t, 100_000.0, quote.FinalPrice)
}
