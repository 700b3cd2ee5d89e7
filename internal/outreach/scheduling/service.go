// Package scheduling materialises outreach sequences for leads.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
)

// Store is the persistence the scheduler needs.
type Store interface {
	repository.StepReader
	repository.DeliveryStore
	repository.LeadStore
}

type Service struct {
	store Store
	now   func() time.Time
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, now: time.Now, log: log}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScheduleSequence creates one pending delivery per active step, due at
// referenceTime plus the step's delay. Calling it twice schedules twice.
func (s *Service) ScheduleSequence(ctx context.Context, lead domain.Lead, referenceTime time.Time, createdBy *uuid.UUID) ([]domain.PendingDelivery, error) {
	if lead.ContactStatus == domain.ContactStatusDoNotContact {
		s.log.Info("sequence not scheduled: lead opted out", "lead_id", lead.ID)
		return nil, nil
	}

	steps, err := s.store.ListActiveSteps(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active steps: %w", err)
	}
	if len(steps) == 0 {
		s.log.Warn("sequence not scheduled: catalog is empty", "lead_id", lead.ID)
		return nil, nil
	}

	now := s.now().UTC()
	ref := referenceTime.UTC().Truncate(time.Second)
	deliveries := make([]domain.PendingDelivery, 0, len(steps))
	for _, step := range steps {
		deliveries = append(deliveries, domain.PendingDelivery{
			ID:             uuid.New(),
			LeadID:         lead.ID,
			SequenceStepID: step.ID,
			Channel:        step.Channel,
			ScheduledFor:   ref.Add(step.Delay()),
			ShouldSend:     true,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	created, err := s.store.CreateSequence(ctx, lead.ID, deliveries)
	if err != nil {
		return nil, fmt.Errorf("create sequence: %w", err)
	}
	s.log.Info("sequence scheduled", "lead_id", lead.ID, "deliveries", len(created), "reference_time", ref)
	return created, nil
}

// ScheduleSequenceForLead loads the lead and schedules it relative to now.
func (s *Service) ScheduleSequenceForLead(ctx context.Context, leadID uuid.UUID, createdBy *uuid.UUID) ([]domain.PendingDelivery, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	return s.ScheduleSequence(ctx, lead, s.now(), createdBy)
}

// CancelPendingDeliveries deactivates every unresolved delivery of the lead.
func (s *Service) CancelPendingDeliveries(ctx context.Context, leadID uuid.UUID) (int, error) {
	n, err := s.store.CancelForLead(ctx, leadID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel deliveries: %w", err)
	}
	if n > 0 {
		s.log.Info("pending deliveries cancelled", "lead_id", leadID, "count", n)
	}
	return n, nil
}
