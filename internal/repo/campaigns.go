package repo

import (
	"context"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

// CampaignJobRepository stores scheduled campaign sends. ClaimDue moves due
// pending jobs to processing so concurrent workers never double-claim.
type CampaignJobRepository interface {
	Insert(ctx context.Context, job *model.CampaignJob) error
	ClaimDue(ctx context.Context, limit int) ([]model.CampaignJob, error)
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}
