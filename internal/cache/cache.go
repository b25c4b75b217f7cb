package cache

import (
	"context"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

// OutcomeCache mirrors the most recent delivery outcome per user and channel
// so hot lookups (support tooling, dedupe checks) avoid the delivery log.
type OutcomeCache interface {
	StoreOutcome(ctx context.Context, userID int64, channel model.Channel, out model.DeliveryOutcome, sentAt time.Time) error
}
