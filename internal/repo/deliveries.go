package repo

import (
	"context"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

// DeliveryLogRepository appends and lists delivery-attempt audit rows.
// Rows are never updated or deleted.
type DeliveryLogRepository interface {
	Insert(ctx context.Context, att *model.DeliveryAttempt) error
	ListRecent(ctx context.Context, limit, offset int) ([]model.DeliveryAttempt, error)
}
