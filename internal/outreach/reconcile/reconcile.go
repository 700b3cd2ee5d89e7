// Package reconcile mirrors vendor call state into local call sessions so the
// dispatch gate reopens once a call ends.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/voice"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"
)

type Outcome string

const (
	OutcomeDisabled  Outcome = "disabled"
	OutcomeIdle      Outcome = "idle"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeUpdated   Outcome = "updated"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// StatusFetcher reads a call from the voice vendor.
type StatusFetcher interface {
	GetCallStatus(ctx context.Context, callID string) (voice.CallStatusReport, error)
}

// TranscriptArchiver stores a finished call's transcript and returns its key.
type TranscriptArchiver interface {
	Archive(ctx context.Context, leadID, callID string, endedAt time.Time, transcript string) (string, error)
}

type Store interface {
	repository.JobStore
	repository.CallStore
	repository.LeadStore
}

type Reconciler struct {
	store      Store
	fetcher    StatusFetcher
	archiver   TranscriptArchiver
	staleAfter time.Duration
	now        func() time.Time
	log        *logger.Logger
}

// New creates a reconciler. archiver may be nil. Calls the vendor cannot
// report on for longer than staleAfter are closed as FAILED.
func New(store Store, fetcher StatusFetcher, archiver TranscriptArchiver, staleAfter time.Duration, log *logger.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}
	return &Reconciler{
		store:      store,
		fetcher:    fetcher,
		archiver:   archiver,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log.WithJob(domain.JobCallReconciliation),
	}
}

// WithClock overrides the reconciler clock.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Tick refreshes the oldest non-terminal call session.
func (r *Reconciler) Tick(ctx context.Context) (Outcome, error) {
	job, err := r.store.GetJob(ctx, domain.JobCallReconciliation)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return OutcomeDisabled, nil
		}
		return OutcomeFailed, fmt.Errorf("load job config: %w", err)
	}
	if !job.Enabled {
		return OutcomeDisabled, nil
	}

	session, ok, err := r.store.OldestActiveCall(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load active call: %w", err)
	}
	if !ok {
		return OutcomeIdle, nil
	}
	log := r.log.With("call_id", session.CallID, "lead_id", session.LeadID)
	now := r.now().UTC()

	report, err := r.fetcher.GetCallStatus(ctx, session.CallID)
	if err != nil {
		if now.Sub(session.CreatedAt) < r.staleAfter {
			return OutcomeFailed, domain.ProviderError("get call status", err)
		}
		reason := "status unavailable: " + sanitize.ErrorMessage(err)
		session.Status = domain.CallStatusFailed
		session.EndReason = &reason
		session.EndedAt = &now
		log.Warn("stale call closed", "age", now.Sub(session.CreatedAt), "error", err)
		return r.finish(ctx, session, now)
	}

	next, known := MapVendorStatus(report.Status, report.EndedReason)
	if !known {
		log.Warn("unknown vendor call status", "status", report.Status)
		return OutcomeUnchanged, nil
	}

	changed := next != session.Status
	session.Status = next
	if report.StartedAt != nil {
		session.StartedAt = report.StartedAt
	}
	if report.CostCents != nil && (session.CostCents == nil || *session.CostCents != *report.CostCents) {
		session.CostCents = report.CostCents
		changed = true
	}
	if !next.IsTerminal() {
		if !changed {
			return OutcomeUnchanged, nil
		}
		session.UpdatedAt = now
		if err := r.store.UpdateCallSession(ctx, session); err != nil {
			return OutcomeFailed, fmt.Errorf("update call session: %w", err)
		}
		log.Debug("call status updated", "status", next)
		return OutcomeUpdated, nil
	}

	ended := now
	if report.EndedAt != nil {
		ended = report.EndedAt.UTC()
	}
	session.EndedAt = &ended
	if reason := strings.TrimSpace(report.EndedReason); reason != "" {
		session.EndReason = &reason
	}
	if t := strings.TrimSpace(report.Transcript); t != "" {
		session.Transcript = &t
		if r.archiver != nil {
			key, err := r.archiver.Archive(ctx, session.LeadID.String(), session.CallID, ended, t)
			if err != nil {
				log.Error("transcript archive failed", "error", err)
			} else {
				session.TranscriptKey = &key
			}
		}
	}
	return r.finish(ctx, session, now)
}

// finish persists a terminal session and marks the lead COMPLETED.
func (r *Reconciler) finish(ctx context.Context, session domain.CallSession, now time.Time) (Outcome, error) {
	session.UpdatedAt = now
	if err := r.store.UpdateCallSession(ctx, session); err != nil {
		return OutcomeFailed, fmt.Errorf("update call session: %w", err)
	}

	lead, err := r.store.GetLead(ctx, session.LeadID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return OutcomeCompleted, nil
		}
		return OutcomeFailed, fmt.Errorf("load lead: %w", err)
	}
	if lead.ContactStatus != domain.ContactStatusDoNotContact && lead.ContactStatus != domain.ContactStatusCompleted {
		lead.ContactStatus = domain.ContactStatusCompleted
		lead.UpdatedAt = now
		if err := r.store.SaveLead(ctx, lead); err != nil {
			return OutcomeFailed, fmt.Errorf("complete lead: %w", err)
		}
	}
	r.log.Info("call finished", "call_id", session.CallID, "lead_id", session.LeadID, "status", session.Status)
	return OutcomeCompleted, nil
}
