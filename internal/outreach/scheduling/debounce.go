package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/phone"
)

const (
	// DebounceWindow is how recently a delivery must have been touched to absorb a new contact.
	DebounceWindow = 5 * time.Minute
	// DebounceDelay is the minimum distance between an inbound contact and the next touch.
	DebounceDelay = 120 * time.Second
)

// InboundResult reports what RecordInboundContact did.
// Absorbed is set when an existing delivery took the contact; Rescheduled
// only when that delivery was actually moved.
type InboundResult struct {
	Absorbed    bool
	Rescheduled bool
	DeliveryID  uuid.UUID
	Scheduled   int
}

// RecordInboundContact handles a lead reaching out (for example a call back).
// A recently touched unresolved delivery for the same phone is pushed to at
// least now+DebounceDelay; otherwise a fresh sequence starts now.
func (s *Service) RecordInboundContact(ctx context.Context, lead domain.Lead, rawPhone string) (InboundResult, error) {
	number, ok := phone.ParseE164(rawPhone)
	if !ok {
		number, ok = phone.ParseE164(lead.Phone)
	}
	if !ok {
		return InboundResult{}, apperr.Validation("phone number is not valid")
	}

	now := s.now().UTC()
	d, found, err := s.store.FindRecentUnresolvedByPhone(ctx, number, now.Add(-DebounceWindow))
	if err != nil {
		return InboundResult{}, fmt.Errorf("find recent delivery: %w", err)
	}

	if found {
		res := InboundResult{Absorbed: true, DeliveryID: d.ID}
		target := now.Add(DebounceDelay).Truncate(time.Second)
		if !d.ScheduledFor.Before(target) {
			s.log.Info("inbound contact absorbed", "lead_id", d.LeadID, "delivery_id", d.ID, "scheduled_for", d.ScheduledFor)
			return res, nil
		}
		if err := s.store.Reschedule(ctx, d.ID, target, now); err != nil {
			return InboundResult{}, fmt.Errorf("reschedule delivery: %w", err)
		}
		s.log.Info("inbound contact debounced", "lead_id", d.LeadID, "delivery_id", d.ID, "scheduled_for", target)
		res.Rescheduled = true
		return res, nil
	}

	created, err := s.ScheduleSequence(ctx, lead, now, nil)
	if err != nil {
		return InboundResult{}, err
	}
	return InboundResult{Scheduled: len(created)}, nil
}

// RecordInboundContactForLead loads the lead and records the contact.
func (s *Service) RecordInboundContactForLead(ctx context.Context, leadID uuid.UUID, rawPhone string) (InboundResult, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return InboundResult{}, err
	}
	return s.RecordInboundContact(ctx, lead, rawPhone)
}
