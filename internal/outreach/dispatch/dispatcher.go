// Package dispatch runs one step of the outreach loop per tick: validate the
// job, check the call gate, pick the oldest due delivery and hand it to its
// channel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/escalation"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"
)

// Outcome labels a tick for logs.
type Outcome string

const (
	OutcomeDisabled      Outcome = "disabled"
	OutcomeDeferred      Outcome = "deferred"
	OutcomeIdle          Outcome = "idle"
	OutcomeSent          Outcome = "sent"
	OutcomeFailed        Outcome = "failed"
	OutcomeSkipped       Outcome = "skipped"
	OutcomeMisconfigured Outcome = "misconfigured"
	OutcomeOverlap       Outcome = "overlap"
)

// Sender routes a delivery to its channel handler.
type Sender interface {
	Send(ctx context.Context, toggles domain.ChannelToggles, delivery domain.PendingDelivery, lead domain.Lead) error
}

// Escalator audits and reports a failed attempt.
type Escalator interface {
	Escalate(ctx context.Context, f escalation.Failure) error
}

// Store is the persistence the dispatcher needs.
type Store interface {
	repository.JobStore
	repository.DeliveryStore
	repository.StepReader
	repository.LeadStore
	repository.RetryLogStore
	repository.CallStore
}

type Config struct {
	// MaxAttempts bounds email re-attempts before a delivery is closed with an error.
	MaxAttempts int
	// ProviderTimeout bounds a single handler call.
	ProviderTimeout time.Duration
}

type Dispatcher struct {
	store     Store
	gate      *Gate
	sender    Sender
	escalator Escalator
	cfg       Config
	now       func() time.Time
	log       *logger.Logger

	// running rejects overlapping ticks in this process; the job runner's
	// distributed lock covers other instances.
	running sync.Mutex
}

func New(store Store, sender Sender, escalator Escalator, cfg Config, log *logger.Logger) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 20 * time.Second
	}
	return &Dispatcher{
		store:     store,
		gate:      NewGate(store),
		sender:    sender,
		escalator: escalator,
		cfg:       cfg,
		now:       time.Now,
		log:       log.WithJob(domain.JobDispatch),
	}
}

// WithClock overrides the dispatcher clock.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Tick processes at most one delivery. A non-nil error means the run failed;
// the delivery has already been audited and escalated by then.
func (d *Dispatcher) Tick(ctx context.Context) (Outcome, error) {
	if !d.running.TryLock() {
		return OutcomeOverlap, nil
	}
	defer d.running.Unlock()

	job, err := d.store.GetJob(ctx, domain.JobDispatch)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return OutcomeDisabled, nil
		}
		return OutcomeFailed, fmt.Errorf("load job config: %w", err)
	}
	if !job.Enabled {
		return OutcomeDisabled, nil
	}

	open, err := d.gate.Open(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	if !open {
		d.log.Debug("dispatch deferred: call in progress")
		return OutcomeDeferred, nil
	}

	channels := job.Channels.List()
	if len(channels) == 0 {
		return OutcomeIdle, nil
	}

	now := d.now().UTC()
	delivery, ok, err := d.store.NextDue(ctx, now, channels)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("select next delivery: %w", err)
	}
	if !ok {
		return OutcomeIdle, nil
	}
	log := d.log.With("delivery_id", delivery.ID, "lead_id", delivery.LeadID, "channel", delivery.Channel)

	lead, err := d.store.GetLead(ctx, delivery.LeadID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			msg := "lead no longer exists"
			if err := d.store.MarkResolved(ctx, delivery.ID, now, &msg); err != nil {
				return OutcomeFailed, fmt.Errorf("close orphaned delivery: %w", err)
			}
			log.Warn("delivery closed: lead missing")
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, fmt.Errorf("load lead: %w", err)
	}
	if lead.ContactStatus == domain.ContactStatusDoNotContact {
		n, err := d.store.CancelForLead(ctx, lead.ID, now)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("cancel opted-out lead: %w", err)
		}
		log.Info("deliveries cancelled: lead opted out", "count", n)
		return OutcomeSkipped, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.ProviderTimeout)
	sendErr := d.sender.Send(sendCtx, job.Channels, delivery, lead)
	cancel()

	if sendErr == nil {
		if err := d.store.MarkResolved(ctx, delivery.ID, d.now().UTC(), nil); err != nil {
			return OutcomeFailed, fmt.Errorf("mark delivery sent: %w", err)
		}
		log.Info("delivery sent")
		return OutcomeSent, nil
	}

	switch {
	case domain.IsSilent(sendErr):
		log.Warn("dispatch aborted: channel misconfigured", "error", sendErr)
		return OutcomeMisconfigured, nil
	case errors.Is(sendErr, domain.ErrChannelDisabled):
		log.Info("delivery skipped: channel disabled")
		return OutcomeSkipped, nil
	}

	return OutcomeFailed, d.fail(ctx, delivery, lead, sendErr)
}

// fail audits and escalates sendErr, then applies the channel's failure policy.
// Email stays open until MaxAttempts is reached; calls and SMS close immediately.
func (d *Dispatcher) fail(ctx context.Context, delivery domain.PendingDelivery, lead domain.Lead, sendErr error) error {
	log := d.log.With("delivery_id", delivery.ID, "lead_id", lead.ID, "channel", delivery.Channel)

	prev, err := d.store.MaxAttempt(ctx, delivery.ID)
	if err != nil {
		log.Error("failed to read attempt count", "error", err, "send_error", sendErr)
		return fmt.Errorf("read attempt count for delivery %s: %w (send error: %w)", delivery.ID, err, sendErr)
	}
	attempt := prev + 1
	// Quota rejections wait for the window to reopen; they never close the delivery.
	deferred := errors.Is(sendErr, domain.ErrQuotaExceeded)

	step, err := d.store.GetStep(ctx, delivery.SequenceStepID)
	if err != nil {
		log.Warn("failed to load step for escalation", "error", err)
		step = domain.SequenceStep{ID: delivery.SequenceStepID}
	}

	if d.escalator != nil {
		if err := d.escalator.Escalate(ctx, escalation.Failure{
			Delivery: delivery,
			Lead:     lead,
			Step:     step,
			Attempt:  attempt,
			Err:      sendErr,
			Deferred: deferred,
		}); err != nil {
			log.Error("escalation failed", "error", err)
		}
	}

	terminal := !deferred && (delivery.Channel != domain.ChannelEmail || attempt >= d.cfg.MaxAttempts)
	if terminal {
		msg := sanitize.ErrorMessage(sendErr)
		if err := d.store.MarkResolved(ctx, delivery.ID, d.now().UTC(), &msg); err != nil {
			log.Error("failed to close delivery", "error", err)
		}
	}
	log.Warn("delivery failed", "attempt", attempt, "terminal", terminal, "deferred", deferred, "error", sendErr)

	return fmt.Errorf("dispatch %s delivery %s (attempt %d): %w", delivery.Channel, delivery.ID, attempt, sendErr)
}
