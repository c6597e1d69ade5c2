// internal/domain/notification/record.go
package notification

import "time"

// Channel is the medium a notification is delivered through.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// DeliveryStatus is the terminal outcome of one delivery attempt.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "pending"
	StatusSent    DeliveryStatus = "sent"
	StatusFailed  DeliveryStatus = "failed"
)

// Record is a write-once audit entry for one attempted delivery.
// DeliveredAt is set only for sent records and ErrorMessage only for failed ones.
type Record struct {
	ID             string         `json:"id" bson:"_id"`
	UserID         string         `json:"userId" bson:"userId"`
	SubscriptionID string         `json:"pnrSubscriptionId" bson:"pnrSubscriptionId"`
	Channel        Channel        `json:"notificationType" bson:"notificationType"`
	Subject        string         `json:"subject" bson:"subject"`
	Message        string         `json:"message" bson:"message"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus" bson:"deliveryStatus"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
}
