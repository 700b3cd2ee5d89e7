package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/voice"
	"outreach_backend/platform/logger"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type stubFetcher struct {
	report voice.CallStatusReport
	err    error
}

func (s stubFetcher) GetCallStatus(context.Context, string) (voice.CallStatusReport, error) {
	return s.report, s.err
}

type memArchive struct {
	keys map[string]string
}

func (m *memArchive) Archive(_ context.Context, leadID, callID string, _ time.Time, transcript string) (string, error) {
	key := leadID + "/" + callID + ".txt"
	m.keys[key] = transcript
	return key, nil
}

func seed() (*repository.Memory, domain.Lead, domain.CallSession) {
	mem := repository.NewMemory()
	mem.PutJob(domain.JobConfig{Name: domain.JobCallReconciliation, Enabled: true})
	lead := domain.Lead{ID: uuid.New(), FirstName: "Anna", ContactStatus: domain.ContactStatusInSequence}
	mem.PutLead(lead)
	session := domain.CallSession{ID: uuid.New(), CallID: "vendor-1", LeadID: lead.ID, Status: domain.CallStatusQueued, CreatedAt: now.Add(-time.Minute)}
	mem.PutCall(session)
	return mem, lead, session
}

func TestMapVendorStatus(t *testing.T) {
	cases := []struct {
		status, reason string
		want           domain.CallStatus
	}{
		{"queued", "", domain.CallStatusQueued},
		{"ringing", "", domain.CallStatusRinging},
		{"in-progress", "", domain.CallStatusInProgress},
		{"forwarding", "", domain.CallStatusInProgress},
		{"ended", "customer-did-not-answer", domain.CallStatusNoAnswer},
		{"ended", "pipeline-error-openai-llm-failed", domain.CallStatusFailed},
		{"ended", "customer-ended-call", domain.CallStatusEnded},
		{"ENDED", "call-canceled", domain.CallStatusCanceled},
	}
	for _, tc := range cases {
		got, ok := MapVendorStatus(tc.status, tc.reason)
		if !ok || got != tc.want {
			t.Fatalf("%s/%s: expected %s, got %s", tc.status, tc.reason, tc.want, got)
		}
	}
	if _, ok := MapVendorStatus("teleporting", ""); ok {
		t.Fatal("unknown status must not map")
	}
}

func TestTickCompletesEndedCall(t *testing.T) {
	mem, lead, session := seed()
	cost := int64(24)
	ended := now.Add(-10 * time.Second)
	archive := &memArchive{keys: map[string]string{}}
	r := New(mem, stubFetcher{report: voice.CallStatusReport{
		CallID:      session.CallID,
		Status:      "ended",
		EndedReason: "customer-ended-call",
		EndedAt:     &ended,
		Transcript:  "AI: Hello\nUser: Hi",
		CostCents:   &cost,
	}}, archive, time.Hour, logger.Discard()).WithClock(func() time.Time { return now })

	outcome, err := r.Tick(context.Background())
	if err != nil || outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %s (%v)", outcome, err)
	}

	calls := mem.Calls()
	got := calls[0]
	if got.Status != domain.CallStatusEnded || got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.TranscriptKey == nil || archive.keys[*got.TranscriptKey] != "AI: Hello\nUser: Hi" {
		t.Fatalf("expected archived transcript, got %+v", got.TranscriptKey)
	}
	if got.CostCents == nil || *got.CostCents != 24 {
		t.Fatalf("expected cost 24, got %v", got.CostCents)
	}
	if active, _ := mem.ExistsActiveCall(context.Background()); active {
		t.Fatal("gate should reopen")
	}
	stored, _ := mem.GetLead(context.Background(), lead.ID)
	if stored.ContactStatus != domain.ContactStatusCompleted {
		t.Fatalf("expected lead COMPLETED, got %s", stored.ContactStatus)
	}
}

func TestTickUpdatesInFlightCall(t *testing.T) {
	mem, lead, _ := seed()
	r := New(mem, stubFetcher{report: voice.CallStatusReport{Status: "ringing"}}, nil, time.Hour, logger.Discard()).
		WithClock(func() time.Time { return now })

	outcome, err := r.Tick(context.Background())
	if err != nil || outcome != OutcomeUpdated {
		t.Fatalf("expected updated, got %s (%v)", outcome, err)
	}
	if mem.Calls()[0].Status != domain.CallStatusRinging {
		t.Fatalf("expected RINGING, got %s", mem.Calls()[0].Status)
	}
	outcome, _ = r.Tick(context.Background())
	if outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", outcome)
	}
	stored, _ := mem.GetLead(context.Background(), lead.ID)
	if stored.ContactStatus != domain.ContactStatusInSequence {
		t.Fatal("lead must not complete while the call is active")
	}
}

func TestTickKeepsStatusOnUnknownVendorStatus(t *testing.T) {
	mem, _, _ := seed()
	r := New(mem, stubFetcher{report: voice.CallStatusReport{Status: "teleporting"}}, nil, time.Hour, logger.Discard())

	outcome, err := r.Tick(context.Background())
	if err != nil || outcome != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s (%v)", outcome, err)
	}
	if mem.Calls()[0].Status != domain.CallStatusQueued {
		t.Fatal("status must be kept")
	}
}

func TestTickVendorErrors(t *testing.T) {
	mem, _, _ := seed()
	fetcher := stubFetcher{err: errors.New("vendor 503")}

	fresh := New(mem, fetcher, nil, time.Hour, logger.Discard()).WithClock(func() time.Time { return now })
	if _, err := fresh.Tick(context.Background()); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if mem.Calls()[0].Status != domain.CallStatusQueued {
		t.Fatal("fresh call must stay active")
	}

	stale := New(mem, fetcher, nil, time.Hour, logger.Discard()).WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	outcome, err := stale.Tick(context.Background())
	if err != nil || outcome != OutcomeCompleted {
		t.Fatalf("expected stale call closed, got %s (%v)", outcome, err)
	}
	if mem.Calls()[0].Status != domain.CallStatusFailed {
		t.Fatalf("expected FAILED, got %s", mem.Calls()[0].Status)
	}
}

func TestTickDisabledAndIdle(t *testing.T) {
	mem := repository.NewMemory()
	r := New(mem, stubFetcher{}, nil, time.Hour, logger.Discard())
	if outcome, _ := r.Tick(context.Background()); outcome != OutcomeDisabled {
		t.Fatalf("expected disabled, got %s", outcome)
	}
	mem.PutJob(domain.JobConfig{Name: domain.JobCallReconciliation, Enabled: true})
	if outcome, _ := r.Tick(context.Background()); outcome != OutcomeIdle {
		t.Fatalf("expected idle, got %s", outcome)
	}
}
