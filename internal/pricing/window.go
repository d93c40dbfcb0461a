package pricing

import (
	"errors"
	"time"
)

var (
	// ErrInvalidPrice means the original price is zero or negative
	ErrInvalidPrice = errors.New("original price must be positive")

	// ErrDeparturePassed means the departure date is not after the booking date
	ErrDeparturePassed = errors.New("departure date must be after booking date")
)

// Rules holds the early-bird discount parameters
type Rules struct {
	// WindowDays caps the early-bird period length
	WindowDays int
	// MinAdvanceDays is a hard floor: bookings closer to departure than
	// this never get the discount, regardless of the window
	MinAdvanceDays int
	// DiscountRate is the fraction taken off the original price
	DiscountRate float64
}

// DefaultRules matches the production configuration: 14-day window,
// 30-day advance floor, 25% off
func DefaultRules() Rules {
	return Rules{
		WindowDays:     14,
		MinAdvanceDays: 30,
		DiscountRate:   0.25,
	}
}

// Quote is the outcome of an early-bird evaluation
type Quote struct {
	OriginalPrice float64   `json:"original_price"`
	FinalPrice    float64   `json:"final_price"`
	Discounted    bool      `json:"discounted"`
	WindowEnds    time.Time `json:"window_ends"`
}

// Evaluate determines whether the early-bird window is active for a booking
// and returns the resulting price.
//
// The window slides: it opens at publication and runs for WindowDays, but
// never past departure, so a tour published close to departure gets a
// shorter window that ends exactly at departure. Independently of the
// window, a booking made within MinAdvanceDays of departure pays full price.
func Evaluate(rules Rules, originalPrice float64, departureDate, publishDate, bookingDate time.Time) (Quote, error) {
	if originalPrice <= 0 {
		return Quote{}, ErrInvalidPrice
	}
	if !departureDate.After(bookingDate) {
		return Quote{}, ErrDeparturePassed
	}

	windowLength := time.Duration(rules.WindowDays) * 24 * time.Hour
	if publishToDeparture := departureDate.Sub(publishDate); publishToDeparture < windowLength {
		windowLength = publishToDeparture
	}

	quote := Quote{
		OriginalPrice: originalPrice,
		FinalPrice:    originalPrice,
		WindowEnds:    publishDate.Add(windowLength),
	}

	// Hard floor wins over the window
	minAdvance := time.Duration(rules.MinAdvanceDays) * 24 * time.Hour
	if departureDate.Sub(bookingDate) < minAdvance {
		return quote, nil
	}

	if bookingDate.Sub(publishDate) < windowLength {
		quote.Discounted = true
		quote.FinalPrice = originalPrice * (1 - rules.DiscountRate)
	}

	return quote, nil
}
