package repo

import (
	"context"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

// TemplateRepository reads event definitions and notification templates.
// Both are administered elsewhere; the dispatcher only reads them.
type TemplateRepository interface {
	FindActiveEventByKey(ctx context.Context, eventKey string) (*model.EventDefinition, error)
	FindActiveTemplateByID(ctx context.Context, id int64) (*model.NotificationTemplate, error)
}
