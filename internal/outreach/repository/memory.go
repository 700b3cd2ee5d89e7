package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and local tooling.
// It follows the same ordering and filtering rules as the Postgres queries.
type Memory struct {
	mu sync.Mutex

	steps      map[uuid.UUID]domain.SequenceStep
	policies   map[uuid.UUID]domain.RetryPolicy
	deliveries map[uuid.UUID]domain.PendingDelivery
	retryLogs  []domain.RetryLogEntry
	emailLog   []domain.EmailLogEntry
	calls      map[uuid.UUID]domain.CallSession
	jobs       map[string]domain.JobConfig
	leads      map[uuid.UUID]domain.Lead
	admins     []domain.Admin

	nextSeq int64
}

func NewMemory() *Memory {
	return &Memory{
		steps:      make(map[uuid.UUID]domain.SequenceStep),
		policies:   make(map[uuid.UUID]domain.RetryPolicy),
		deliveries: make(map[uuid.UUID]domain.PendingDelivery),
		calls:      make(map[uuid.UUID]domain.CallSession),
		jobs:       make(map[string]domain.JobConfig),
		leads:      make(map[uuid.UUID]domain.Lead),
	}
}

// ---- seeding helpers ----

func (m *Memory) PutStep(s domain.SequenceStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[s.ID] = s
}

func (m *Memory) PutPolicy(p domain.RetryPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
}

func (m *Memory) PutLead(l domain.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[l.ID] = l
}

func (m *Memory) PutAdmin(a domain.Admin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins = append(m.admins, a)
}

func (m *Memory) PutJob(j domain.JobConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.Name] = j
}

func (m *Memory) PutCall(c domain.CallSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.ID] = c
}

// PutDelivery stores d as-is, assigning a Seq when it has none.
func (m *Memory) PutDelivery(d domain.PendingDelivery) domain.PendingDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Seq == 0 {
		m.nextSeq++
		d.Seq = m.nextSeq
	}
	m.deliveries[d.ID] = d
	return d
}

// Deliveries returns all records ordered by Seq.
func (m *Memory) Deliveries() []domain.PendingDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PendingDelivery, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// EmailLog returns a copy of the email audit rows.
func (m *Memory) EmailLog() []domain.EmailLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.emailLog)
}

// Calls returns all call sessions ordered by creation time.
func (m *Memory) Calls() []domain.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.CallSession, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ---- StepReader / CatalogWriter ----

func (m *Memory) ListActiveSteps(_ context.Context) ([]domain.SequenceStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SequenceStep, 0)
	for _, s := range m.steps {
		if s.IsActive && s.DeletedAt == nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *Memory) GetStep(_ context.Context, id uuid.UUID) (domain.SequenceStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return domain.SequenceStep{}, apperr.NotFound(stepNotFoundMsg)
	}
	return s, nil
}

func (m *Memory) ListActivePolicies(_ context.Context, stepID uuid.UUID) ([]domain.RetryPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RetryPolicy, 0)
	for _, p := range m.policies {
		if p.SequenceStepID == stepID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RetryAfterMinutes != out[j].RetryAfterMinutes {
			return out[i].RetryAfterMinutes < out[j].RetryAfterMinutes
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) ActivateCatalog(_ context.Context, steps []CatalogStep) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version := 0
	now := time.Now().UTC()
	for id, s := range m.steps {
		if s.CatalogVersion > version {
			version = s.CatalogVersion
		}
		if s.DeletedAt == nil {
			s.DeletedAt = &now
			m.steps[id] = s
		}
	}
	version++

	for _, cs := range steps {
		s := cs.Step
		s.CatalogVersion = version
		s.CreatedAt, s.UpdatedAt = now, now
		m.steps[s.ID] = s
		for _, p := range cs.Policies {
			p.SequenceStepID = s.ID
			m.policies[p.ID] = p
		}
	}
	return version, nil
}

// ---- DeliveryStore ----

func (m *Memory) CreateSequence(_ context.Context, leadID uuid.UUID, deliveries []domain.PendingDelivery) ([]domain.PendingDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[leadID]
	if !ok {
		return nil, apperr.NotFound(leadNotFoundMsg)
	}

	out := make([]domain.PendingDelivery, 0, len(deliveries))
	for _, d := range deliveries {
		m.nextSeq++
		d.Seq = m.nextSeq
		m.deliveries[d.ID] = d
		out = append(out, d)
	}
	lead.ContactStatus = domain.ContactStatusInSequence
	m.leads[leadID] = lead
	return out, nil
}

func (m *Memory) GetDelivery(_ context.Context, id uuid.UUID) (domain.PendingDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return domain.PendingDelivery{}, apperr.NotFound(deliveryNotFoundMsg)
	}
	return d, nil
}

func earlierDue(a, b domain.PendingDelivery) bool {
	if !a.ScheduledFor.Equal(b.ScheduledFor) {
		return a.ScheduledFor.Before(b.ScheduledFor)
	}
	return a.Seq < b.Seq
}

func (m *Memory) NextDue(_ context.Context, now time.Time, channels []domain.Channel) (domain.PendingDelivery, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best domain.PendingDelivery
	found := false
	for _, d := range m.deliveries {
		if !d.Unresolved() || d.ScheduledFor.After(now) || !slices.Contains(channels, d.Channel) {
			continue
		}
		if !found || earlierDue(d, best) {
			best, found = d, true
		}
	}
	return best, found, nil
}

func (m *Memory) MarkResolved(_ context.Context, id uuid.UUID, at time.Time, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.IsSent != nil {
		return apperr.Conflict("pending delivery already resolved or missing")
	}
	d.IsSent = &at
	d.Error = errMsg
	d.UpdatedAt = at
	m.deliveries[id] = d
	return nil
}

func (m *Memory) Reschedule(_ context.Context, id uuid.UUID, scheduledFor, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok || d.IsSent != nil || d.DeletedAt != nil {
		return apperr.NotFound(deliveryNotFoundMsg)
	}
	d.ScheduledFor = scheduledFor
	d.UpdatedAt = now
	m.deliveries[id] = d
	return nil
}

func (m *Memory) CancelForLead(_ context.Context, leadID uuid.UUID, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, d := range m.deliveries {
		if d.LeadID != leadID || !d.Unresolved() {
			continue
		}
		d.ShouldSend = false
		d.UpdatedAt = now
		m.deliveries[id] = d
		n++
	}
	return n, nil
}

func (m *Memory) FindRecentUnresolvedByPhone(_ context.Context, phone string, since time.Time) (domain.PendingDelivery, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best domain.PendingDelivery
	found := false
	for _, d := range m.deliveries {
		lead, ok := m.leads[d.LeadID]
		if !ok || lead.Phone != phone || !d.Unresolved() || d.UpdatedAt.Before(since) {
			continue
		}
		if !found || earlierDue(d, best) {
			best, found = d, true
		}
	}
	return best, found, nil
}

// ---- RetryLogStore / EmailLogStore ----

func (m *Memory) AppendRetryLogs(_ context.Context, entries []domain.RetryLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryLogs = append(m.retryLogs, entries...)
	return nil
}

func (m *Memory) ListRetryLogs(_ context.Context, deliveryID uuid.UUID) ([]domain.RetryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RetryLogEntry, 0)
	for _, e := range m.retryLogs {
		if e.PendingDeliveryID == deliveryID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) MaxAttempt(_ context.Context, deliveryID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxAttempt := 0
	for _, e := range m.retryLogs {
		if e.PendingDeliveryID == deliveryID && !e.Deferred && e.Attempt > maxAttempt {
			maxAttempt = e.Attempt
		}
	}
	return maxAttempt, nil
}

func (m *Memory) AppendEmailLog(_ context.Context, entry domain.EmailLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailLog = append(m.emailLog, entry)
	return nil
}

func (m *Memory) CountSentSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.emailLog {
		if e.Status == domain.EmailStatusSent && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// ---- CallStore ----

func (m *Memory) ExistsActiveCall(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if !c.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CreateCallSession(_ context.Context, s domain.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.CallID == s.CallID {
			return apperr.Conflict("call session already exists")
		}
	}
	s.UpdatedAt = s.CreatedAt
	m.calls[s.ID] = s
	return nil
}

func (m *Memory) OldestActiveCall(_ context.Context) (domain.CallSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best domain.CallSession
	found := false
	for _, c := range m.calls {
		if c.Status.IsTerminal() {
			continue
		}
		if !found || c.CreatedAt.Before(best.CreatedAt) {
			best, found = c, true
		}
	}
	return best, found, nil
}

func (m *Memory) UpdateCallSession(_ context.Context, s domain.CallSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[s.ID]; !ok {
		return apperr.NotFound("call session not found")
	}
	m.calls[s.ID] = s
	return nil
}

// ---- JobStore ----

func (m *Memory) GetJob(_ context.Context, name string) (domain.JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	if !ok {
		return domain.JobConfig{}, apperr.NotFound(jobNotFoundMsg)
	}
	return j, nil
}

func (m *Memory) ListJobs(_ context.Context) ([]domain.JobConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.JobConfig, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- LeadStore / AdminDirectory ----

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, apperr.NotFound(leadNotFoundMsg)
	}
	return l, nil
}

func (m *Memory) SaveLead(_ context.Context, lead domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[lead.ID]; !ok {
		return apperr.NotFound(leadNotFoundMsg)
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *Memory) FindLeadsDueForFollowUp(_ context.Context, limit int) ([]domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit < 1 {
		limit = 25
	}

	scheduled := make(map[uuid.UUID]bool, len(m.deliveries))
	for _, d := range m.deliveries {
		scheduled[d.LeadID] = true
	}

	out := make([]domain.Lead, 0)
	for _, l := range m.leads {
		if l.ContactStatus == domain.ContactStatusNew && !scheduled[l.ID] {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FindAdmins(_ context.Context, roles []string) ([]domain.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Admin, 0)
	for _, a := range m.admins {
		if slices.Contains(roles, a.Role) {
			out = append(out, a)
		}
	}
	return out, nil
}
