package domain

import "time"

// DeliveryStatus is the state of a delivery log row.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryBatched   DeliveryStatus = "batched"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryQueued    DeliveryStatus = "queued"
)

// DeliveryLog is an append-only record of a delivery attempt or placeholder.
type DeliveryLog struct {
	ID             string           `json:"id"`
	NotificationID string           `json:"notificationId,omitempty"`
	AlertID        string           `json:"alertId,omitempty"`
	UserID         string           `json:"userId"`
	Type           NotificationType `json:"type"`
	Channel        Channel          `json:"channel,omitempty"`
	Status         DeliveryStatus   `json:"status"`
	MessageID      string           `json:"messageId,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}
