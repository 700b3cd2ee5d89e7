package scheduling

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
)

// DefaultFollowUpBatch caps how many leads one sweep schedules.
const DefaultFollowUpBatch = 25

// FollowUpSweep schedules sequences for NEW leads that were never scheduled,
// covering leads captured while the scheduling task was unavailable.
type FollowUpSweep struct {
	jobs  repository.JobStore
	svc   *Service
	batch int
}

func NewFollowUpSweep(jobs repository.JobStore, svc *Service, batch int) *FollowUpSweep {
	if batch < 1 {
		batch = DefaultFollowUpBatch
	}
	return &FollowUpSweep{jobs: jobs, svc: svc, batch: batch}
}

// Tick returns the number of leads scheduled.
func (f *FollowUpSweep) Tick(ctx context.Context) (int, error) {
	job, err := f.jobs.GetJob(ctx, domain.JobFollowUp)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load job config: %w", err)
	}
	if !job.Enabled {
		return 0, nil
	}

	leads, err := f.svc.store.FindLeadsDueForFollowUp(ctx, f.batch)
	if err != nil {
		return 0, fmt.Errorf("find leads: %w", err)
	}

	scheduled := 0
	for _, lead := range leads {
		if _, err := f.svc.ScheduleSequence(ctx, lead, f.svc.now(), nil); err != nil {
			return scheduled, fmt.Errorf("schedule lead %s: %w", lead.ID, err)
		}
		scheduled++
	}
	return scheduled, nil
}
