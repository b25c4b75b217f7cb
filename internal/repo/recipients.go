package repo

import (
	"context"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type RecipientRepository interface {
	FindUserByID(ctx context.Context, userID int64) (*model.Recipient, error)
}
