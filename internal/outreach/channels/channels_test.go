package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/email"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/voice"
	"outreach_backend/platform/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeSender) SendEmail(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePlacer struct {
	configured bool
	calls      []voice.Customer
	err        error
}

func (f *fakePlacer) Configured() bool { return f.configured }

func (f *fakePlacer) PlaceCall(_ context.Context, _, _ string, c voice.Customer) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, c)
	return "call-" + c.Number, nil
}

var fixedNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*repository.Memory, domain.Lead, domain.PendingDelivery) {
	t.Helper()
	mem := repository.NewMemory()
	step := domain.SequenceStep{
		ID:                 uuid.New(),
		Order:              1,
		Channel:            domain.ChannelEmail,
		MessageTemplateRef: "welcome",
		Subject:            "Welcome {{lead.first_name}}",
		IsActive:           true,
	}
	mem.PutStep(step)
	lead := domain.Lead{ID: uuid.New(), FirstName: "anna", LastName: "de vries", Email: "anna@example.com", Phone: "06 12345678"}
	mem.PutLead(lead)
	d := mem.PutDelivery(domain.PendingDelivery{
		ID:             uuid.New(),
		LeadID:         lead.ID,
		SequenceStepID: step.ID,
		Channel:        domain.ChannelEmail,
		ScheduledFor:   fixedNow,
		ShouldSend:     true,
	})
	return mem, lead, d
}

func newTemplates(t *testing.T) *Templates {
	t.Helper()
	tpl, err := NewTemplates("https://app.example.com/")
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	return tpl
}

func TestEmailHandlerSendsRenderedMessage(t *testing.T) {
	mem, lead, d := setup(t)
	sender := &fakeSender{}
	h := NewEmailHandler(mem, mem, sender, newTemplates(t), 10, logger.Discard()).WithClock(func() time.Time { return fixedNow })

	if err := h.Send(context.Background(), d, lead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.Subject != "Welcome Anna" || msg.To != "anna@example.com" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.HTML, "Hi Anna,") || !strings.Contains(msg.HTML, "https://app.example.com") {
		t.Fatalf("body not rendered: %s", msg.HTML)
	}

	log := mem.EmailLog()
	if len(log) != 1 || log[0].Status != domain.EmailStatusSent {
		t.Fatalf("expected a sent log row, got %+v", log)
	}
}

func TestEmailHandlerQuotaPrecedesProvider(t *testing.T) {
	mem, lead, d := setup(t)
	for i := 0; i < 10; i++ {
		_ = mem.AppendEmailLog(context.Background(), domain.EmailLogEntry{
			ID:        uuid.New(),
			Status:    domain.EmailStatusSent,
			CreatedAt: fixedNow.Add(-time.Duration(i+1) * time.Minute),
		})
	}
	sender := &fakeSender{}
	h := NewEmailHandler(mem, mem, sender, newTemplates(t), 10, logger.Discard()).WithClock(func() time.Time { return fixedNow })

	err := h.Send(context.Background(), d, lead)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("provider must not be called, got %d sends", len(sender.sent))
	}
	log := mem.EmailLog()
	if last := log[len(log)-1]; last.Status != domain.EmailStatusRejected {
		t.Fatalf("expected rejected log row, got %s", last.Status)
	}
}

func TestEmailHandlerQuotaIgnoresOldSends(t *testing.T) {
	mem, lead, d := setup(t)
	for i := 0; i < 10; i++ {
		_ = mem.AppendEmailLog(context.Background(), domain.EmailLogEntry{
			ID:        uuid.New(),
			Status:    domain.EmailStatusSent,
			CreatedAt: fixedNow.Add(-2 * time.Hour),
		})
	}
	sender := &fakeSender{}
	h := NewEmailHandler(mem, mem, sender, newTemplates(t), 10, logger.Discard()).WithClock(func() time.Time { return fixedNow })

	if err := h.Send(context.Background(), d, lead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEmailHandlerLogsThenFailsOnProviderError(t *testing.T) {
	mem, lead, d := setup(t)
	sender := &fakeSender{err: errors.New("smtp 421")}
	h := NewEmailHandler(mem, mem, sender, newTemplates(t), 10, logger.Discard()).WithClock(func() time.Time { return fixedNow })

	err := h.Send(context.Background(), d, lead)
	if !errors.Is(err, domain.ErrProvider) || !strings.Contains(err.Error(), "smtp 421") {
		t.Fatalf("expected provider error, got %v", err)
	}
	log := mem.EmailLog()
	if len(log) != 1 || log[0].Status != domain.EmailStatusFailed || log[0].Error == nil {
		t.Fatalf("expected failed log row, got %+v", log)
	}
}

func TestCallHandlerPlacesCallAndQueuesSession(t *testing.T) {
	mem, lead, d := setup(t)
	placer := &fakePlacer{configured: true}
	h := NewCallHandler(mem, placer, "asst-1", "num-1", logger.Discard())

	if err := h.Send(context.Background(), d, lead); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(placer.calls) != 1 || placer.calls[0].Number != "+31612345678" {
		t.Fatalf("expected E.164 number, got %+v", placer.calls)
	}
	calls := mem.Calls()
	if len(calls) != 1 || calls[0].Status != domain.CallStatusQueued || calls[0].LeadID != lead.ID {
		t.Fatalf("unexpected sessions %+v", calls)
	}
	if active, _ := mem.ExistsActiveCall(context.Background()); !active {
		t.Fatal("queued call should close the gate")
	}
}

func TestCallHandlerMisconfigured(t *testing.T) {
	mem, lead, d := setup(t)
	placer := &fakePlacer{configured: true}

	err := NewCallHandler(mem, placer, "", "num-1", logger.Discard()).Send(context.Background(), d, lead)
	if !errors.Is(err, domain.ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured, got %v", err)
	}
	err = NewCallHandler(mem, &fakePlacer{}, "asst", "num", logger.Discard()).Send(context.Background(), d, lead)
	if !errors.Is(err, domain.ErrMisconfigured) {
		t.Fatalf("expected ErrMisconfigured for unconfigured client, got %v", err)
	}
	if len(placer.calls) != 0 {
		t.Fatal("no call should be placed")
	}
}

func TestCallHandlerWrapsVendorErrors(t *testing.T) {
	mem, lead, d := setup(t)
	placer := &fakePlacer{configured: true, err: errors.New("vendor 500")}

	err := NewCallHandler(mem, placer, "asst", "num", logger.Discard()).Send(context.Background(), d, lead)
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(mem.Calls()) != 0 {
		t.Fatal("no session should be recorded")
	}
}

func TestRegistryRoutesAndHonoursToggles(t *testing.T) {
	mem, lead, d := setup(t)
	sender := &fakeSender{}
	reg := NewRegistry(
		NewEmailHandler(mem, mem, sender, newTemplates(t), 10, logger.Discard()),
		SMSHandler{},
	)

	err := reg.Send(context.Background(), domain.ChannelToggles{Call: true}, d, lead)
	if !errors.Is(err, domain.ErrChannelDisabled) {
		t.Fatalf("expected ErrChannelDisabled, got %v", err)
	}

	sms := d
	sms.Channel = domain.ChannelSMS
	err = reg.Send(context.Background(), domain.ChannelToggles{SMS: true}, sms, lead)
	if !errors.Is(err, domain.ErrChannelNotImplemented) {
		t.Fatalf("expected ErrChannelNotImplemented, got %v", err)
	}

	call := d
	call.Channel = domain.ChannelCall
	err = reg.Send(context.Background(), domain.ChannelToggles{Call: true}, call, lead)
	if !errors.Is(err, domain.ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestTemplatesDropUnknownPlaceholders(t *testing.T) {
	tpl := newTemplates(t)
	if !tpl.Has("welcome") || tpl.Has("missing") {
		t.Fatal("unexpected template set")
	}
	subject, _, err := tpl.Render("welcome", "Hello {{ Lead.First_Name }}{{lead.unknown}}", domain.Lead{FirstName: "piet"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "Hello Piet" {
		t.Fatalf("unexpected subject %q", subject)
	}
}
