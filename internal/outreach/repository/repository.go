// Package repository persists outreach state in Postgres.
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
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	stepNotFoundMsg     = "sequence step not found"
	deliveryNotFoundMsg = "pending delivery not found"
	leadNotFoundMsg     = "lead not found"
	jobNotFoundMsg      = "job not found"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func notFoundOr(err error, msg, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---- sequence catalog ----

const stepColumns = `id, catalog_version, step_order, delay_offset_minutes, channel,
	message_template_ref, subject, is_active, created_at, updated_at, deleted_at`

func scanStep(row pgx.Row) (domain.SequenceStep, error) {
	var s domain.SequenceStep
	var channel string
	err := row.Scan(&s.ID, &s.CatalogVersion, &s.Order, &s.DelayOffsetMinutes, &channel,
		&s.MessageTemplateRef, &s.Subject, &s.IsActive, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	s.Channel = domain.Channel(channel)
	return s, err
}

func (r *Repository) ListActiveSteps(ctx context.Context) ([]domain.SequenceStep, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stepColumns+`
		FROM outreach_sequence_steps
		WHERE is_active AND deleted_at IS NULL
		ORDER BY step_order ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active steps: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.SequenceStep, 0)
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *Repository) GetStep(ctx context.Context, id uuid.UUID) (domain.SequenceStep, error) {
	s, err := scanStep(r.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM outreach_sequence_steps WHERE id = $1`, id))
	if err != nil {
		return domain.SequenceStep{}, notFoundOr(err, stepNotFoundMsg, "get step")
	}
	return s, nil
}

func (r *Repository) ListActivePolicies(ctx context.Context, stepID uuid.UUID) ([]domain.RetryPolicy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sequence_step_id, name, retry_after_minutes, is_active
		FROM outreach_retry_policies
		WHERE sequence_step_id = $1 AND is_active
		ORDER BY retry_after_minutes ASC, name ASC`, stepID)
	if err != nil {
		return nil, fmt.Errorf("list retry policies: %w", err)
	}
	defer rows.Close()

	policies := make([]domain.RetryPolicy, 0)
	for rows.Next() {
		var p domain.RetryPolicy
		if err := rows.Scan(&p.ID, &p.SequenceStepID, &p.Name, &p.RetryAfterMinutes, &p.IsActive); err != nil {
			return nil, fmt.Errorf("scan retry policy: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (r *Repository) ActivateCatalog(ctx context.Context, steps []CatalogStep) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialise concurrent imports.
	if _, err := tx.Exec(ctx, `LOCK TABLE outreach_sequence_steps IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock catalog: %w", err)
	}

	var version int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(catalog_version), 0) + 1 FROM outreach_sequence_steps`).Scan(&version); err != nil {
		return 0, fmt.Errorf("next catalog version: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE outreach_sequence_steps
		SET deleted_at = now(), updated_at = now()
		WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("retire catalog: %w", err)
	}

	for _, cs := range steps {
		s := cs.Step
		if _, err := tx.Exec(ctx, `
			INSERT INTO outreach_sequence_steps
				(id, catalog_version, step_order, delay_offset_minutes, channel, message_template_ref, subject, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, version, s.Order, s.DelayOffsetMinutes, string(s.Channel), s.MessageTemplateRef, s.Subject, s.IsActive,
		); err != nil {
			return 0, fmt.Errorf("insert step %d: %w", s.Order, err)
		}
		for _, p := range cs.Policies {
			if _, err := tx.Exec(ctx, `
				INSERT INTO outreach_retry_policies (id, sequence_step_id, name, retry_after_minutes, is_active)
				VALUES ($1, $2, $3, $4, $5)`,
				p.ID, s.ID, p.Name, p.RetryAfterMinutes, p.IsActive,
			); err != nil {
				return 0, fmt.Errorf("insert retry policy %q: %w", p.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

// ---- jobs ----

func (r *Repository) GetJob(ctx context.Context, name string) (domain.JobConfig, error) {
	var j domain.JobConfig
	err := r.pool.QueryRow(ctx, `
		SELECT name, enabled, email_enabled, sms_enabled, call_enabled, schedule, updated_at
		FROM outreach_jobs WHERE name = $1`, name,
	).Scan(&j.Name, &j.Enabled, &j.Channels.Email, &j.Channels.SMS, &j.Channels.Call, &j.Schedule, &j.UpdatedAt)
	if err != nil {
		return domain.JobConfig{}, notFoundOr(err, jobNotFoundMsg, "get job")
	}
	return j, nil
}

func (r *Repository) ListJobs(ctx context.Context) ([]domain.JobConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, enabled, email_enabled, sms_enabled, call_enabled, schedule, updated_at
		FROM outreach_jobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]domain.JobConfig, 0)
	for rows.Next() {
		var j domain.JobConfig
		if err := rows.Scan(&j.Name, &j.Enabled, &j.Channels.Email, &j.Channels.SMS, &j.Channels.Call, &j.Schedule, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ---- leads & admins ----

const leadColumns = `id, first_name, last_name, email, phone, ip_address, source, contact_status, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var status string
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.IPAddress, &l.Source, &status, &l.CreatedAt, &l.UpdatedAt)
	l.ContactStatus = domain.ContactStatus(status)
	return l, err
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	l, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		return domain.Lead{}, notFoundOr(err, leadNotFoundMsg, "get lead")
	}
	return l, nil
}

func (r *Repository) SaveLead(ctx context.Context, lead domain.Lead) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET first_name = $2, last_name = $3, email = $4, phone = $5, ip_address = $6,
			source = $7, contact_status = $8, updated_at = now()
		WHERE id = $1`,
		lead.ID, lead.FirstName, lead.LastName, lead.Email, lead.Phone, lead.IPAddress, lead.Source, string(lead.ContactStatus))
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return nil
}

func (r *Repository) FindLeadsDueForFollowUp(ctx context.Context, limit int) ([]domain.Lead, error) {
	if limit < 1 {
		limit = 25
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE l.contact_status = 'NEW'
		  AND NOT EXISTS (SELECT 1 FROM outreach_pending_deliveries d WHERE d.lead_id = l.id)
		ORDER BY l.created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("find leads due for follow-up: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *Repository) FindAdmins(ctx context.Context, roles []string) ([]domain.Admin, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, name, role
		FROM admins
		WHERE role = ANY($1)
		ORDER BY created_at ASC, email ASC`, roles)
	if err != nil {
		return nil, fmt.Errorf("find admins: %w", err)
	}
	defer rows.Close()

	admins := make([]domain.Admin, 0)
	for rows.Next() {
		var a domain.Admin
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Role); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

func channelStrings(channels []domain.Channel) []string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = string(ch)
	}
	return out
}

func utc(t time.Time) time.Time { return t.UTC() }
