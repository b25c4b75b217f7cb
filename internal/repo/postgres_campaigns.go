package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type PostgresCampaignJobRepo struct {
	db *sql.DB
}

func NewPostgresCampaignJobRepo(db *sql.DB) *PostgresCampaignJobRepo {
	return &PostgresCampaignJobRepo{db: db}
}

func (r *PostgresCampaignJobRepo) Insert(ctx context.Context, job *model.CampaignJob) error {
	userIDs, err := json.Marshal(job.UserIDs)
	if err != nil {
		return err
	}
	data, err := json.Marshal(job.Data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	job.Status = model.CampaignPending
	job.CreatedAt = now
	job.UpdatedAt = now

	return r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_jobs
			(template_id, user_ids, data, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`,
		job.TemplateID,
		userIDs,
		data,
		string(job.Status),
		job.ScheduledAt,
		now,
	).Scan(&job.ID)
}

func (r *PostgresCampaignJobRepo) ClaimDue(ctx context.Context, limit int) ([]model.CampaignJob, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, template_id, user_ids, data, status, scheduled_at, last_error, created_at, updated_at
		FROM campaign_jobs
		WHERE status = 'pending' AND scheduled_at <= now()
		ORDER BY scheduled_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.CampaignJob
	for rows.Next() {
		var (
			j       model.CampaignJob
			userIDs []byte
			data    []byte
			status  string
			lastErr sql.NullString
		)
		if err := rows.Scan(
			&j.ID,
			&j.TemplateID,
			&userIDs,
			&data,
			&status,
			&j.ScheduledAt,
			&lastErr,
			&j.CreatedAt,
			&j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(userIDs, &j.UserIDs); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &j.Data); err != nil {
				return nil, err
			}
		}
		j.Status = model.CampaignStatus(status)
		if lastErr.Valid {
			s := lastErr.String
			j.LastError = &s
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	now := time.Now().UTC()
	for _, j := range jobs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE campaign_jobs
			SET status = 'processing', updated_at = $2
			WHERE id = $1
		`, j.ID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range jobs {
		jobs[i].Status = model.CampaignProcessing
		jobs[i].UpdatedAt = now
	}
	return jobs, nil
}

func (r *PostgresCampaignJobRepo) MarkCompleted(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'completed', updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *PostgresCampaignJobRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'failed',
		    last_error = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, reason)
	return err
}
