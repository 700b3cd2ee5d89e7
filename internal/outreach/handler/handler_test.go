package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/outreach/catalog"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/scheduling"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

type recordingEnqueuer struct {
	leadID    uuid.UUID
	createdBy *uuid.UUID
	calls     int
}

func (e *recordingEnqueuer) EnqueueScheduleSequence(_ context.Context, leadID uuid.UUID, createdBy *uuid.UUID) error {
	e.calls++
	e.leadID, e.createdBy = leadID, createdBy
	return nil
}

type anyTemplate struct{}

func (anyTemplate) Has(string) bool { return true }

type fixture struct {
	mem    *repository.Memory
	lead   domain.Lead
	userID uuid.UUID
	router *gin.Engine
}

func newFixture(t *testing.T, enqueuer Enqueuer) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := repository.NewMemory()
	for i, delay := range []int{0, 1440} {
		mem.PutStep(domain.SequenceStep{
			ID:                 uuid.New(),
			Order:              i + 1,
			DelayOffsetMinutes: delay,
			Channel:            domain.ChannelEmail,
			MessageTemplateRef: "welcome",
			Subject:            "Hi",
			IsActive:           true,
		})
	}
	lead := domain.Lead{ID: uuid.New(), FirstName: "Anna", Phone: "+31612345678", ContactStatus: domain.ContactStatusNew}
	mem.PutLead(lead)

	val := validator.New()
	seq := scheduling.New(mem, logger.Discard())
	cat := catalog.New(mem, mem, anyTemplate{}, val, logger.Discard())
	h := New(seq, enqueuer, mem, mem, cat, val)

	userID := uuid.New()
	r := gin.New()
	g := r.Group("/outreach", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextRolesKey, []string{"admin"})
		c.Next()
	})
	g.GET("/steps", h.ListSteps)
	g.PUT("/steps", h.ImportCatalog)
	g.POST("/leads/:id/sequence", h.ScheduleSequence)
	g.POST("/leads/:id/inbound-contact", h.RecordInboundContact)
	g.DELETE("/leads/:id/deliveries", h.CancelDeliveries)
	g.GET("/deliveries/:id", h.GetDelivery)
	g.GET("/deliveries/:id/retry-logs", h.ListRetryLogs)

	return &fixture{mem: mem, lead: lead, userID: userID, router: r}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestScheduleSequenceInline(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/outreach/leads/"+f.lead.ID.String()+"/sequence", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[transport.ScheduleSequenceResponse](t, rec)
	if resp.Status != "scheduled" || len(resp.Deliveries) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}

	for _, d := range f.mem.Deliveries() {
		if d.CreatedBy == nil || *d.CreatedBy != f.userID {
			t.Fatalf("expected delivery created by %s, got %v", f.userID, d.CreatedBy)
		}
	}
}

func TestScheduleSequenceQueuedWhenEnqueuerPresent(t *testing.T) {
	enq := &recordingEnqueuer{}
	f := newFixture(t, enq)

	rec := f.do(http.MethodPost, "/outreach/leads/"+f.lead.ID.String()+"/sequence", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if enq.calls != 1 || enq.leadID != f.lead.ID || enq.createdBy == nil || *enq.createdBy != f.userID {
		t.Fatalf("unexpected enqueue %+v", enq)
	}
	if n := len(f.mem.Deliveries()); n != 0 {
		t.Fatalf("expected no inline deliveries, got %d", n)
	}
}

func TestScheduleSequenceRejectsBadAndUnknownLeads(t *testing.T) {
	f := newFixture(t, nil)

	if rec := f.do(http.MethodPost, "/outreach/leads/not-a-uuid/sequence", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/outreach/leads/"+uuid.NewString()+"/sequence", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRecordInboundContactFallsBackToLeadPhone(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/outreach/leads/"+f.lead.ID.String()+"/inbound-contact", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[transport.InboundContactResponse](t, rec)
	if resp.Rescheduled || resp.Scheduled != 2 || resp.DeliveryID != nil {
		t.Fatalf("expected a fresh sequence, got %+v", resp)
	}
}

func TestRecordInboundContactReschedulesRecentDelivery(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Now().UTC()
	d := f.mem.PutDelivery(domain.PendingDelivery{
		ID:           uuid.New(),
		LeadID:       f.lead.ID,
		Channel:      domain.ChannelCall,
		ScheduledFor: now,
		ShouldSend:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	rec := f.do(http.MethodPost, "/outreach/leads/"+f.lead.ID.String()+"/inbound-contact", `{"phone":"06 12345678"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[transport.InboundContactResponse](t, rec)
	if !resp.Rescheduled || resp.DeliveryID == nil || *resp.DeliveryID != d.ID {
		t.Fatalf("expected delivery %s to be rescheduled, got %+v", d.ID, resp)
	}
	if n := len(f.mem.Deliveries()); n != 1 {
		t.Fatalf("expected no new deliveries, got %d", n)
	}
}

func TestRecordInboundContactValidatesBody(t *testing.T) {
	f := newFixture(t, nil)
	path := "/outreach/leads/" + f.lead.ID.String() + "/inbound-contact"

	if rec := f.do(http.MethodPost, path, `{"phone":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, path, `{"phone":"123"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short phone, got %d", rec.Code)
	}
}

func TestCancelDeliveries(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodPost, "/outreach/leads/"+f.lead.ID.String()+"/sequence", "")

	rec := f.do(http.MethodDelete, "/outreach/leads/"+f.lead.ID.String()+"/deliveries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[transport.CancelDeliveriesResponse](t, rec); resp.Cancelled != 2 {
		t.Fatalf("expected 2 cancelled, got %d", resp.Cancelled)
	}
	for _, d := range f.mem.Deliveries() {
		if d.ShouldSend {
			t.Fatalf("expected delivery %s to be cancelled", d.ID)
		}
	}
}

func TestDeliveryAndRetryLogs(t *testing.T) {
	f := newFixture(t, nil)
	now := time.Now().UTC()
	d := f.mem.PutDelivery(domain.PendingDelivery{
		ID: uuid.New(), LeadID: f.lead.ID, Channel: domain.ChannelEmail,
		ScheduledFor: now, ShouldSend: true, CreatedAt: now, UpdatedAt: now,
	})
	_ = f.mem.AppendRetryLogs(context.Background(), []domain.RetryLogEntry{
		{ID: uuid.New(), PendingDeliveryID: d.ID, Attempt: 1, AttemptedAt: now, ErrorMessage: "smtp down"},
	})

	rec := f.do(http.MethodGet, "/outreach/deliveries/"+d.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[transport.DeliveryResponse](t, rec); got.ID != d.ID || got.Channel != "EMAIL" {
		t.Fatalf("unexpected delivery %+v", got)
	}

	rec = f.do(http.MethodGet, "/outreach/deliveries/"+d.ID.String()+"/retry-logs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	logs := decode[transport.RetryLogListResponse](t, rec)
	if len(logs.Items) != 1 || logs.Items[0].ErrorMessage != "smtp down" || logs.Items[0].Attempt != 1 {
		t.Fatalf("unexpected logs %+v", logs)
	}

	if rec := f.do(http.MethodGet, "/outreach/deliveries/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestImportCatalogAndListSteps(t *testing.T) {
	f := newFixture(t, nil)
	body := "steps:\n  - order: 1\n    delay_minutes: 0\n    channel: call\n    template: intro-call\n"

	req := httptest.NewRequest(http.MethodPut, "/outreach/steps", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[transport.CatalogImportResponse](t, rec); resp.Version != 1 {
		t.Fatalf("expected version 1, got %d", resp.Version)
	}

	rec = f.do(http.MethodGet, "/outreach/steps", "")
	steps := decode[[]transport.SequenceStepResponse](t, rec)
	if len(steps) != 1 || steps[0].Channel != "CALL" || steps[0].CatalogVersion != 1 {
		t.Fatalf("unexpected steps %+v", steps)
	}

	req = httptest.NewRequest(http.MethodPut, "/outreach/steps", strings.NewReader("steps: []\n"))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty catalog, got %d", rec.Code)
	}
}
