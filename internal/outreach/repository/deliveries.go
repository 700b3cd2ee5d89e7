package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `d.id, d.seq, d.lead_id, d.sequence_step_id, d.channel, d.scheduled_for,
	d.is_sent, d.error, d.should_send, d.created_by, d.created_at, d.updated_at, d.deleted_at`

func scanDelivery(row pgx.Row) (domain.PendingDelivery, error) {
	var d domain.PendingDelivery
	var channel string
	err := row.Scan(&d.ID, &d.Seq, &d.LeadID, &d.SequenceStepID, &channel, &d.ScheduledFor,
		&d.IsSent, &d.Error, &d.ShouldSend, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	d.Channel = domain.Channel(channel)
	return d, err
}

func (r *Repository) CreateSequence(ctx context.Context, leadID uuid.UUID, deliveries []domain.PendingDelivery) ([]domain.PendingDelivery, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := make([]domain.PendingDelivery, 0, len(deliveries))
	for _, d := range deliveries {
		row := tx.QueryRow(ctx, `
			INSERT INTO outreach_pending_deliveries AS d
				(id, lead_id, sequence_step_id, channel, scheduled_for, should_send, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+deliveryColumns,
			d.ID, d.LeadID, d.SequenceStepID, string(d.Channel), utc(d.ScheduledFor), d.ShouldSend, d.CreatedBy)
		saved, err := scanDelivery(row)
		if err != nil {
			return nil, fmt.Errorf("insert pending delivery: %w", err)
		}
		created = append(created, saved)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE leads SET contact_status = 'IN_SEQUENCE', updated_at = now()
		WHERE id = $1`, leadID)
	if err != nil {
		return nil, fmt.Errorf("mark lead in sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.NotFound(leadNotFoundMsg)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) GetDelivery(ctx context.Context, id uuid.UUID) (domain.PendingDelivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM outreach_pending_deliveries d WHERE d.id = $1`, id))
	if err != nil {
		return domain.PendingDelivery{}, notFoundOr(err, deliveryNotFoundMsg, "get delivery")
	}
	return d, nil
}

func (r *Repository) NextDue(ctx context.Context, now time.Time, channels []domain.Channel) (domain.PendingDelivery, bool, error) {
	if len(channels) == 0 {
		return domain.PendingDelivery{}, false, nil
	}
	d, err := scanDelivery(r.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM outreach_pending_deliveries d
		WHERE d.is_sent IS NULL
		  AND d.should_send
		  AND d.deleted_at IS NULL
		  AND d.scheduled_for <= $1
		  AND d.channel = ANY($2)
		ORDER BY d.scheduled_for ASC, d.seq ASC
		LIMIT 1`, utc(now), channelStrings(channels)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PendingDelivery{}, false, nil
		}
		return domain.PendingDelivery{}, false, fmt.Errorf("select next due delivery: %w", err)
	}
	return d, true, nil
}

func (r *Repository) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time, errMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_pending_deliveries
		SET is_sent = $2, error = $3, updated_at = $2
		WHERE id = $1 AND is_sent IS NULL`, id, utc(at), errMsg)
	if err != nil {
		return fmt.Errorf("mark delivery resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("pending delivery already resolved or missing")
	}
	return nil
}

func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_pending_deliveries
		SET scheduled_for = $2, updated_at = $3
		WHERE id = $1 AND is_sent IS NULL AND deleted_at IS NULL`, id, utc(scheduledFor), utc(now))
	if err != nil {
		return fmt.Errorf("reschedule delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(deliveryNotFoundMsg)
	}
	return nil
}

func (r *Repository) CancelForLead(ctx context.Context, leadID uuid.UUID, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_pending_deliveries
		SET should_send = false, updated_at = $2
		WHERE lead_id = $1 AND is_sent IS NULL AND should_send AND deleted_at IS NULL`, leadID, utc(now))
	if err != nil {
		return 0, fmt.Errorf("cancel deliveries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) FindRecentUnresolvedByPhone(ctx context.Context, phone string, since time.Time) (domain.PendingDelivery, bool, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM outreach_pending_deliveries d
		JOIN leads l ON l.id = d.lead_id
		WHERE l.phone = $1
		  AND d.is_sent IS NULL
		  AND d.should_send
		  AND d.deleted_at IS NULL
		  AND d.updated_at >= $2
		ORDER BY d.scheduled_for ASC, d.seq ASC
		LIMIT 1`, phone, utc(since)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PendingDelivery{}, false, nil
		}
		return domain.PendingDelivery{}, false, fmt.Errorf("find recent delivery by phone: %w", err)
	}
	return d, true, nil
}
