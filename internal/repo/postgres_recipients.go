package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type PostgresRecipientRepo struct {
	db *sql.DB
}

func NewPostgresRecipientRepo(db *sql.DB) *PostgresRecipientRepo {
	return &PostgresRecipientRepo{db: db}
}

func (r *PostgresRecipientRepo) FindUserByID(ctx context.Context, userID int64) (*model.Recipient, error) {
	var (
		rec   model.Recipient
		phone sql.NullString
		token sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone_number, push_token
		FROM users
		WHERE id = $1
	`, userID).Scan(&rec.UserID, &phone, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.PhoneNumber = phone.String
	rec.PushToken = token.String
	return &rec, nil
}
