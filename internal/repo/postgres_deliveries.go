package repo

import (
	"context"
	"database/sql"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type PostgresDeliveryLogRepo struct {
	db *sql.DB
}

func NewPostgresDeliveryLogRepo(db *sql.DB) *PostgresDeliveryLogRepo {
	return &PostgresDeliveryLogRepo{db: db}
}

func (r *PostgresDeliveryLogRepo) Insert(ctx context.Context, att *model.DeliveryAttempt) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO delivery_attempts
			(user_id, channel, template_id, trigger_type, status, metadata, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		att.UserID,
		string(att.Channel),
		att.TemplateID,
		string(att.TriggerType),
		string(att.Status),
		att.Metadata,
		att.SentAt,
	).Scan(&att.ID)
}

func (r *PostgresDeliveryLogRepo) ListRecent(ctx context.Context, limit, offset int) ([]model.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, channel, template_id, trigger_type, status, metadata, sent_at
		FROM delivery_attempts
		ORDER BY sent_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeliveryAttempt
	for rows.Next() {
		var (
			a           model.DeliveryAttempt
			channel     string
			triggerType string
			status      string
		)
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&channel,
			&a.TemplateID,
			&triggerType,
			&status,
			&a.Metadata,
			&a.SentAt,
		); err != nil {
			return nil, err
		}
		a.Channel = model.Channel(channel)
		a.TriggerType = model.TriggerType(triggerType)
		a.Status = model.DeliveryStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
