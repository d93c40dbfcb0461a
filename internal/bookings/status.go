package bookings

type Status string

const (
	StatusPending             Status = "PENDING"
	StatusConfirmed           Status = "CONFIRMED"
	StatusCompleted           Status = "COMPLETED"
	StatusCancelledByCustomer Status = "CANCELLED_BY_CUSTOMER"
	StatusCancelledByCompany  Status = "CANCELLED_BY_COMPANY"
)

// IsValid checks if the booking status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted,
		StatusCancelledByCustomer, StatusCancelledByCompany:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition may leave this status
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByCustomer, StatusCancelledByCompany:
		return true
	}
	return false
}

// CanTransitionTo enforces the one-directional booking state machine:
// PENDING -> CONFIRMED -> COMPLETED, with cancellation side-branches
// PENDING|CONFIRMED -> CANCELLED_BY_CUSTOMER and CONFIRMED -> CANCELLED_BY_COMPANY.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelledByCustomer
	case StatusConfirmed:
		return next == StatusCompleted ||
			next == StatusCancelledByCustomer ||
			next == StatusCancelledByCompany
	}
	return false
}
