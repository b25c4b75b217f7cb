package model

import "time"

type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignProcessing CampaignStatus = "processing"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

// CampaignJob is a scheduled batch send: one campaign template dispatched to
// a list of users once the job comes due.
type CampaignJob struct {
	ID          int64
	TemplateID  int64
	UserIDs     []int64
	Data        map[string]any
	Status      CampaignStatus
	ScheduledAt time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
