package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type PostgresTemplateRepo struct {
	db *sql.DB
}

func NewPostgresTemplateRepo(db *sql.DB) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{db: db}
}

func (r *PostgresTemplateRepo) FindActiveEventByKey(ctx context.Context, eventKey string) (*model.EventDefinition, error) {
	var (
		ev         model.EventDefinition
		templateID sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_key, description, template_id, is_active
		FROM event_definitions
		WHERE event_key = $1 AND is_active = true
	`, eventKey).Scan(
		&ev.ID,
		&ev.EventKey,
		&ev.Description,
		&templateID,
		&ev.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if templateID.Valid {
		id := templateID.Int64
		ev.TemplateID = &id
	}
	return &ev, nil
}

func (r *PostgresTemplateRepo) FindActiveTemplateByID(ctx context.Context, id int64) (*model.NotificationTemplate, error) {
	var (
		t           model.NotificationTemplate
		triggerType string
		pushTitle   sql.NullString
		pushBody    sql.NullString
		smsBody     sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, trigger_type, push_title, push_body, sms_body, is_active
		FROM notification_templates
		WHERE id = $1 AND is_active = true
	`, id).Scan(
		&t.ID,
		&t.Name,
		&t.Slug,
		&triggerType,
		&pushTitle,
		&pushBody,
		&smsBody,
		&t.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.TriggerType = model.TriggerType(triggerType)
	t.PushTitle = pushTitle.String
	t.PushBody = pushBody.String
	t.SMSBody = smsBody.String
	return &t, nil
}
