package repository

import (
	"context"
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

var epoch = time.Unix(0, 0).UTC()

func seedDelivery(m *Memory, leadID uuid.UUID, ch domain.Channel, at time.Time) domain.PendingDelivery {
	return m.PutDelivery(domain.PendingDelivery{
		ID:           uuid.New(),
		LeadID:       leadID,
		Channel:      ch,
		ScheduledFor: at,
		ShouldSend:   true,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	})
}

func TestNextDueOrdersByScheduleThenSeq(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lead := uuid.New()

	later := seedDelivery(m, lead, domain.ChannelEmail, epoch.Add(time.Minute))
	tieFirst := seedDelivery(m, lead, domain.ChannelEmail, epoch)
	tieSecond := seedDelivery(m, lead, domain.ChannelEmail, epoch)

	channels := []domain.Channel{domain.ChannelEmail}
	got, ok, err := m.NextDue(ctx, epoch.Add(time.Hour), channels)
	if err != nil || !ok || got.ID != tieFirst.ID {
		t.Fatalf("expected first inserted tie, got %v ok=%v err=%v", got.ID, ok, err)
	}

	_ = m.MarkResolved(ctx, tieFirst.ID, epoch, nil)
	got, _, _ = m.NextDue(ctx, epoch.Add(time.Hour), channels)
	if got.ID != tieSecond.ID {
		t.Fatal("expected second tie next")
	}

	_ = m.MarkResolved(ctx, tieSecond.ID, epoch, nil)
	if _, ok, _ := m.NextDue(ctx, epoch, channels); ok {
		t.Fatal("expected nothing due before the later record's time")
	}
	got, _, _ = m.NextDue(ctx, epoch.Add(time.Minute), channels)
	if got.ID != later.ID {
		t.Fatal("expected later record once due")
	}
}

func TestNextDueSkipsCancelledAndDisabledChannels(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	lead := uuid.New()
	m.PutLead(domain.Lead{ID: lead})

	seedDelivery(m, lead, domain.ChannelSMS, epoch)
	seedDelivery(m, lead, domain.ChannelEmail, epoch)
	if n, _ := m.CancelForLead(ctx, lead, epoch); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	seedDelivery(m, lead, domain.ChannelSMS, epoch)

	if _, ok, _ := m.NextDue(ctx, epoch, []domain.Channel{domain.ChannelEmail}); ok {
		t.Fatal("expected cancelled email to be skipped")
	}
	if _, ok, _ := m.NextDue(ctx, epoch, []domain.Channel{domain.ChannelSMS}); !ok {
		t.Fatal("expected fresh sms record")
	}
}

func TestActivateCatalogRetiresPreviousVersion(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	v1, _ := m.ActivateCatalog(ctx, []CatalogStep{{Step: domain.SequenceStep{ID: uuid.New(), Order: 1, Channel: domain.ChannelEmail, IsActive: true}}})
	v2, _ := m.ActivateCatalog(ctx, []CatalogStep{
		{Step: domain.SequenceStep{ID: uuid.New(), Order: 1, Channel: domain.ChannelCall, IsActive: true}},
		{Step: domain.SequenceStep{ID: uuid.New(), Order: 2, Channel: domain.ChannelEmail, IsActive: true}},
	})
	if v1 != 1 || v2 != 2 {
		t.Fatalf("unexpected versions %d %d", v1, v2)
	}

	steps, _ := m.ListActiveSteps(ctx)
	if len(steps) != 2 || steps[0].Channel != domain.ChannelCall || steps[0].CatalogVersion != 2 {
		t.Fatalf("unexpected active steps %+v", steps)
	}
}
