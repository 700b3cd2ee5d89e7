package repository

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) AppendRetryLogs(ctx context.Context, entries []domain.RetryLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO outreach_retry_logs
				(id, pending_delivery_id, retry_policy_id, attempt, attempted_at, error_message, success, deferred)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.PendingDeliveryID, e.RetryPolicyID, e.Attempt, utc(e.AttemptedAt), e.ErrorMessage, e.Success, e.Deferred)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append retry logs: %w", err)
	}
	return nil
}

func (r *Repository) ListRetryLogs(ctx context.Context, deliveryID uuid.UUID) ([]domain.RetryLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pending_delivery_id, retry_policy_id, attempt, attempted_at, error_message, success, deferred
		FROM outreach_retry_logs
		WHERE pending_delivery_id = $1
		ORDER BY attempted_at ASC, attempt ASC`, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list retry logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.RetryLogEntry, 0)
	for rows.Next() {
		var e domain.RetryLogEntry
		if err := rows.Scan(&e.ID, &e.PendingDeliveryID, &e.RetryPolicyID, &e.Attempt, &e.AttemptedAt, &e.ErrorMessage, &e.Success, &e.Deferred); err != nil {
			return nil, fmt.Errorf("scan retry log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) MaxAttempt(ctx context.Context, deliveryID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(attempt), 0) FROM outreach_retry_logs
		WHERE pending_delivery_id = $1 AND NOT deferred`,
		deliveryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("max attempt: %w", err)
	}
	return n, nil
}

func (r *Repository) AppendEmailLog(ctx context.Context, entry domain.EmailLogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outreach_email_log (id, pending_delivery_id, to_email, subject, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.PendingDeliveryID, entry.ToEmail, entry.Subject, string(entry.Status), entry.Error, utc(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}

func (r *Repository) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outreach_email_log WHERE status = 'sent' AND created_at >= $1`,
		utc(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent emails: %w", err)
	}
	return n, nil
}
