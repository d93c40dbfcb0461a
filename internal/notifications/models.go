package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeOperationCancelled NotificationType = "OPERATION_AUTO_CANCELLED"
	NotificationTypeRevenueTransferred NotificationType = "REVENUE_TRANSFERRED"
)

type NotificationPriority string

const (
	NotificationPriorityLow      NotificationPriority = "LOW"
	NotificationPriorityMedium   NotificationPriority = "MEDIUM"
	NotificationPriorityHigh     NotificationPriority = "HIGH"
	NotificationPriorityCritical NotificationPriority = "CRITICAL"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusQueued  NotificationStatus = "QUEUED"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// OperatorNotification is the event delivered to a tour operator when the
// background workers move their money or cancel their tour
type OperatorNotification struct {
	ID       uuid.UUID            `json:"id"`
	Type     NotificationType     `json:"type"`
	Priority NotificationPriority `json:"priority"`

	OperatorID uuid.UUID `json:"operator_id"`

	// Context
	OperationID *uuid.UUID `json:"operation_id,omitempty"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`

	// Content
	Subject string                 `json:"subject"`
	Payload map[string]interface{} `json:"payload"`

	// Status tracking
	Status    NotificationStatus `json:"status"`
	LastError *string            `json:"last_error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ToJSON serializes the notification for the wire
func (n *OperatorNotification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// GetPartitionKey routes all of one operator's notifications to the same
// partition so they arrive in order
func (n *OperatorNotification) GetPartitionKey() string {
	return n.OperatorID.String()
}

// NotificationBuilder assembles an OperatorNotification
type NotificationBuilder struct {
	notification *OperatorNotification
}

func NewNotificationBuilder() *NotificationBuilder {
	return &NotificationBuilder{
		notification: &OperatorNotification{
			ID:        uuid.New(),
			Status:    NotificationStatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
			Payload:   make(map[string]interface{}),
		},
	}
}

func (nb *NotificationBuilder) WithType(notType NotificationType) *NotificationBuilder {
	nb.notification.Type = notType
	nb.notification.Priority = GetDefaultPriority(notType)
	return nb
}

func (nb *NotificationBuilder) WithOperator(operatorID uuid.UUID) *NotificationBuilder {
	nb.notification.OperatorID = operatorID
	return nb
}

func (nb *NotificationBuilder) WithSubject(subject string) *NotificationBuilder {
	nb.notification.Subject = subject
	return nb
}

func (nb *NotificationBuilder) WithPayload(payload map[string]interface{}) *NotificationBuilder {
	nb.notification.Payload = payload
	return nb
}

func (nb *NotificationBuilder) WithOperationContext(operationID uuid.UUID) *NotificationBuilder {
	nb.notification.OperationID = &operationID
	return nb
}

func (nb *NotificationBuilder) WithBookingContext(bookingID uuid.UUID) *NotificationBuilder {
	nb.notification.BookingID = &bookingID
	return nb
}

func (nb *NotificationBuilder) Build() *OperatorNotification {
	return nb.notification
}

// GetDefaultPriority maps a notification type to its delivery priority
func GetDefaultPriority(notType NotificationType) NotificationPriority {
	switch notType {
	case NotificationTypeOperationCancelled:
		return NotificationPriorityHigh
	case NotificationTypeRevenueTransferred:
		return NotificationPriorityMedium
	default:
		return NotificationPriorityLow
	}
}
