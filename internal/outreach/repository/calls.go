package repository

import (
	"context"
	"errors"
	"fmt"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

func activeStatusStrings() []string {
	out := make([]string, len(domain.ActiveCallStatuses))
	for i, s := range domain.ActiveCallStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *Repository) ExistsActiveCall(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM outreach_call_sessions WHERE status = ANY($1))`,
		activeStatusStrings()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active call: %w", err)
	}
	return exists, nil
}

func (r *Repository) CreateCallSession(ctx context.Context, s domain.CallSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outreach_call_sessions
			(id, call_id, lead_id, status, started_at, ended_at, end_reason, transcript, transcript_key, cost_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		s.ID, s.CallID, s.LeadID, string(s.Status), s.StartedAt, s.EndedAt, s.EndReason, s.Transcript, s.TranscriptKey, s.CostCents, utc(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create call session: %w", err)
	}
	return nil
}

func (r *Repository) OldestActiveCall(ctx context.Context) (domain.CallSession, bool, error) {
	var s domain.CallSession
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, call_id, lead_id, status, started_at, ended_at, end_reason, transcript, transcript_key, cost_cents, created_at, updated_at
		FROM outreach_call_sessions
		WHERE status = ANY($1)
		ORDER BY created_at ASC
		LIMIT 1`, activeStatusStrings(),
	).Scan(&s.ID, &s.CallID, &s.LeadID, &status, &s.StartedAt, &s.EndedAt, &s.EndReason, &s.Transcript, &s.TranscriptKey, &s.CostCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CallSession{}, false, nil
		}
		return domain.CallSession{}, false, fmt.Errorf("oldest active call: %w", err)
	}
	s.Status = domain.CallStatus(status)
	return s, true, nil
}

func (r *Repository) UpdateCallSession(ctx context.Context, s domain.CallSession) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_call_sessions
		SET status = $2, started_at = $3, ended_at = $4, end_reason = $5, transcript = $6,
			transcript_key = $7, cost_cents = $8, updated_at = $9
		WHERE id = $1`,
		s.ID, string(s.Status), s.StartedAt, s.EndedAt, s.EndReason, s.Transcript, s.TranscriptKey, s.CostCents, utc(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update call session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("call session not found")
	}
	return nil
}
