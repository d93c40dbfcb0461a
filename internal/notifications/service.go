package notifications

import (
	"context"
	"fmt"
	"time"

	"tourly/internal/operations"
	"tourly/pkg/logger"

	"github.com/google/uuid"
)

// Service is the operator-facing notification sink. Delivery is
// fire-and-forget from the callers' point of view: an error returned here
// is logged by the caller and never rolls back a financial mutation.
type Service interface {
	NotifyOperationCancelled(ctx context.Context, operatorID, operationID uuid.UUID, tourTitle, reason string, guestsAffected int, affected []operations.CancelledBookingInfo) error
	NotifyRevenueTransferred(ctx context.Context, operatorID, bookingID uuid.UUID, tourTitle string, netAmount float64, completedAt time.Time) error

	Close() error
	HealthCheck(ctx context.Context) error
}

type service struct {
	producer NotificationProducer
	log      *logger.Logger
}

// NewService creates a notification service backed by a Kafka producer
func NewService(producer NotificationProducer, log *logger.Logger) Service {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{producer: producer, log: log}
}

// NotifyOperationCancelled tells the operator their under-booked tour was
// cancelled and its confirmed bookings refunded. Guest counts, not booking
// counts, go in the message.
func (s *service) NotifyOperationCancelled(ctx context.Context, operatorID, operationID uuid.UUID, tourTitle, reason string, guestsAffected int, affected []operations.CancelledBookingInfo) error {
	bookingPayloads := make([]map[string]interface{}, 0, len(affected))
	for _, b := range affected {
		bookingPayloads = append(bookingPayloads, map[string]interface{}{
			"booking_id":  b.BookingID.String(),
			"guest_count": b.GuestCount,
			"refunded":    b.Refunded,
		})
	}

	notification := NewNotificationBuilder().
		WithType(NotificationTypeOperationCancelled).
		WithOperator(operatorID).
		WithOperationContext(operationID).
		WithSubject(fmt.Sprintf("Tour %q was cancelled: not enough guests", tourTitle)).
		WithPayload(map[string]interface{}{
			"tour_title":      tourTitle,
			"reason":          reason,
			"guests_affected": guestsAffected,
			"bookings":        bookingPayloads,
		}).
		Build()

	return s.producer.PublishNotification(ctx, notification)
}

// NotifyRevenueTransferred tells the operator a booking's hold matured
// into their wallet
func (s *service) NotifyRevenueTransferred(ctx context.Context, operatorID, bookingID uuid.UUID, tourTitle string, netAmount float64, completedAt time.Time) error {
	notification := NewNotificationBuilder().
		WithType(NotificationTypeRevenueTransferred).
		WithOperator(operatorID).
		WithBookingContext(bookingID).
		WithSubject(fmt.Sprintf("Revenue for %q is now available", tourTitle)).
		WithPayload(map[string]interface{}{
			"tour_title":   tourTitle,
			"net_amount":   netAmount,
			"completed_at": completedAt.Format(time.RFC3339),
		}).
		Build()

	return s.producer.PublishNotification(ctx, notification)
}

func (s *service) Close() error {
	return s.producer.Close()
}

func (s *service) HealthCheck(ctx context.Context) error {
	return s.producer.HealthCheck(ctx)
}
