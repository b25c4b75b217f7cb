package model

// TriggerType classifies how a template may be invoked.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerCampaign TriggerType = "campaign"
	TriggerEvent    TriggerType = "event"
)

// NotificationTemplate is a reusable, channel-spanning message definition.
// Bodies may contain {{placeholder}} tokens.
type NotificationTemplate struct {
	ID          int64
	Name        string
	Slug        string
	TriggerType TriggerType
	PushTitle   string
	PushBody    string
	SMSBody     string
	IsActive    bool
}

// EventDefinition names a triggerable occurrence in the host system and its
// optional template binding.
type EventDefinition struct {
	ID          int64
	EventKey    string
	Description string
	TemplateID  *int64
	IsActive    bool
}
