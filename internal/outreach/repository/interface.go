package repository

import (
	"context"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces
// =====================================

// StepReader reads the active sequence catalog.
type StepReader interface {
	ListActiveSteps(ctx context.Context) ([]domain.SequenceStep, error)
	GetStep(ctx context.Context, id uuid.UUID) (domain.SequenceStep, error)
	ListActivePolicies(ctx context.Context, stepID uuid.UUID) ([]domain.RetryPolicy, error)
}

// CatalogStep is one step of an imported catalog with its retry policies.
type CatalogStep struct {
	Step     domain.SequenceStep
	Policies []domain.RetryPolicy
}

// CatalogWriter swaps the active catalog.
type CatalogWriter interface {
	// ActivateCatalog soft-deletes the current catalog and inserts steps as the
	// next version in one transaction. It returns the new version number.
	ActivateCatalog(ctx context.Context, steps []CatalogStep) (int, error)
}

// DeliveryStore persists pending deliveries.
type DeliveryStore interface {
	// CreateSequence inserts deliveries and marks the lead IN_SEQUENCE atomically.
	// Returned records carry their assigned Seq.
	CreateSequence(ctx context.Context, leadID uuid.UUID, deliveries []domain.PendingDelivery) ([]domain.PendingDelivery, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (domain.PendingDelivery, error)
	// NextDue returns the unresolved, active record with the smallest
	// ScheduledFor <= now (ties by Seq) among channels. ok is false when none is due.
	NextDue(ctx context.Context, now time.Time, channels []domain.Channel) (delivery domain.PendingDelivery, ok bool, err error)
	MarkResolved(ctx context.Context, id uuid.UUID, at time.Time, errMsg *string) error
	Reschedule(ctx context.Context, id uuid.UUID, scheduledFor, now time.Time) error
	CancelForLead(ctx context.Context, leadID uuid.UUID, now time.Time) (int, error)
	// FindRecentUnresolvedByPhone finds the earliest-due unresolved record of a
	// lead with the given E.164 phone that was updated at or after since.
	FindRecentUnresolvedByPhone(ctx context.Context, phone string, since time.Time) (delivery domain.PendingDelivery, ok bool, err error)
}

// RetryLogStore is the append-only attempt audit.
type RetryLogStore interface {
	AppendRetryLogs(ctx context.Context, entries []domain.RetryLogEntry) error
	ListRetryLogs(ctx context.Context, deliveryID uuid.UUID) ([]domain.RetryLogEntry, error)
	// MaxAttempt is the highest non-deferred Attempt logged for a delivery, 0 when none.
	MaxAttempt(ctx context.Context, deliveryID uuid.UUID) (int, error)
}

// EmailLogStore backs the rolling send quota.
type EmailLogStore interface {
	AppendEmailLog(ctx context.Context, entry domain.EmailLogEntry) error
	CountSentSince(ctx context.Context, since time.Time) (int, error)
}

// CallStore tracks voice calls. ExistsActiveCall is the dispatch gate.
type CallStore interface {
	ExistsActiveCall(ctx context.Context) (bool, error)
	CreateCallSession(ctx context.Context, session domain.CallSession) error
	OldestActiveCall(ctx context.Context) (session domain.CallSession, ok bool, err error)
	UpdateCallSession(ctx context.Context, session domain.CallSession) error
}

// JobStore reads background job configuration.
type JobStore interface {
	GetJob(ctx context.Context, name string) (domain.JobConfig, error)
	ListJobs(ctx context.Context) ([]domain.JobConfig, error)
}

// LeadStore is the slice of the lead store outreach needs.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	SaveLead(ctx context.Context, lead domain.Lead) error
	// FindLeadsDueForFollowUp returns NEW leads that have never been scheduled.
	FindLeadsDueForFollowUp(ctx context.Context, limit int) ([]domain.Lead, error)
}

// AdminDirectory lists escalation recipients.
type AdminDirectory interface {
	FindAdmins(ctx context.Context, roles []string) ([]domain.Admin, error)
}

// Store is the full outreach persistence surface.
type Store interface {
	StepReader
	CatalogWriter
	DeliveryStore
	RetryLogStore
	EmailLogStore
	CallStore
	JobStore
	LeadStore
	AdminDirectory
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*Memory)(nil)
)
