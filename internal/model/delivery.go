package model

import "time"

// Channel is a delivery medium with its own addressing scheme.
type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelPush Channel = "push"
)

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryAttempt is an immutable audit record of one channel-send outcome.
// Exactly one row exists per (dispatch operation x channel actually
// attempted); skipped channels produce no row.
type DeliveryAttempt struct {
	ID          int64
	UserID      int64
	Channel     Channel
	TemplateID  int64
	TriggerType TriggerType
	Status      DeliveryStatus
	Metadata    string
	SentAt      time.Time
}

// DeliveryOutcome is the per-channel result returned to dispatch callers.
type DeliveryOutcome struct {
	Channel   Channel `json:"channel"`
	Success   bool    `json:"success"`
	Provider  string  `json:"provider,omitempty"`
	MessageID string  `json:"messageId,omitempty"`
	Error     string  `json:"error,omitempty"`
}
