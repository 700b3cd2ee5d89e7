// Package escalation records failed delivery attempts and alerts operators.
package escalation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/email"
	"outreach_backend/internal/geoip"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"
)

const geoLookupTimeout = 3 * time.Second

// Locator resolves a lead's IP. Failures only drop the location field.
type Locator interface {
	Lookup(ctx context.Context, ip string) (geoip.Location, error)
}

// Failure describes one failed handler invocation.
type Failure struct {
	Delivery domain.PendingDelivery
	Lead     domain.Lead
	Step     domain.SequenceStep
	Attempt  int
	Err      error
	// Deferred failures are audited without consuming the attempt.
	Deferred bool
}

type Service struct {
	policies repository.StepReader
	logs     repository.RetryLogStore
	admins   repository.AdminDirectory
	sender   email.Sender
	locator  Locator
	roles    []string
	baseURL  string
	now      func() time.Time
	log      *logger.Logger
}

type Config struct {
	AdminRoles []string
	AppBaseURL string
}

func New(policies repository.StepReader, logs repository.RetryLogStore, admins repository.AdminDirectory, sender email.Sender, locator Locator, cfg Config, log *logger.Logger) *Service {
	return &Service{
		policies: policies,
		logs:     logs,
		admins:   admins,
		sender:   sender,
		locator:  locator,
		roles:    cfg.AdminRoles,
		baseURL:  strings.TrimRight(cfg.AppBaseURL, "/"),
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Escalate appends one retry log entry per active retry policy of the step
// (a single entry without policy when there are none) and sends one admin
// notification. Only a failed audit write is returned; notification problems
// are logged.
func (s *Service) Escalate(ctx context.Context, f Failure) error {
	now := s.now().UTC()
	attempt := f.Attempt
	if attempt < 1 {
		attempt = 1
	}
	msg := "unknown error"
	if f.Err != nil {
		msg = errString(f.Err)
	}

	policies, err := s.policies.ListActivePolicies(ctx, f.Step.ID)
	if err != nil {
		s.log.Warn("failed to load retry policies", "step_id", f.Step.ID, "error", err)
		policies = nil
	}

	entries := make([]domain.RetryLogEntry, 0, max(len(policies), 1))
	for _, p := range policies {
		policyID := p.ID
		entries = append(entries, domain.RetryLogEntry{
			ID:                uuid.New(),
			PendingDeliveryID: f.Delivery.ID,
			RetryPolicyID:     &policyID,
			Attempt:           attempt,
			AttemptedAt:       now,
			ErrorMessage:      msg,
			Deferred:          f.Deferred,
		})
	}
	if len(entries) == 0 {
		entries = append(entries, domain.RetryLogEntry{
			ID:                uuid.New(),
			PendingDeliveryID: f.Delivery.ID,
			Attempt:           attempt,
			AttemptedAt:       now,
			ErrorMessage:      msg,
			Deferred:          f.Deferred,
		})
	}
	appendErr := s.logs.AppendRetryLogs(ctx, entries)

	s.notify(ctx, f, attempt, policies)
	if appendErr != nil {
		return fmt.Errorf("append retry logs: %w", appendErr)
	}
	return nil
}

// ListRetryLogs returns the attempt audit of a delivery, oldest first.
func (s *Service) ListRetryLogs(ctx context.Context, deliveryID uuid.UUID) ([]domain.RetryLogEntry, error) {
	return s.logs.ListRetryLogs(ctx, deliveryID)
}

func (s *Service) notify(ctx context.Context, f Failure, attempt int, policies []domain.RetryPolicy) {
	log := s.log.With("delivery_id", f.Delivery.ID, "lead_id", f.Lead.ID)
	if s.sender == nil {
		log.Warn("escalation skipped: no email sender")
		return
	}

	admins, err := s.admins.FindAdmins(ctx, s.roles)
	if err != nil {
		log.Error("escalation skipped: admin lookup failed", "error", err)
		return
	}
	recipients := make([]string, 0, len(admins))
	for _, a := range admins {
		if addr := strings.TrimSpace(a.Email); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		log.Warn("escalation skipped: no admin recipients", "roles", s.roles)
		return
	}

	severity := domain.SeverityFor(f.Err)
	data := s.buildEmail(ctx, f, attempt, severity, policies)
	html, err := email.RenderEscalation(data)
	if err != nil {
		log.Error("escalation skipped: render failed", "error", err)
		return
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(severity)), data.Title)
	err = s.sender.SendEmail(ctx, email.Message{
		To:      recipients[0],
		Cc:      recipients[1:],
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		log.Error("escalation email failed", "error", err)
		return
	}
	log.Info("escalation sent", "severity", severity, "recipients", len(recipients))
}

func (s *Service) buildEmail(ctx context.Context, f Failure, attempt int, severity domain.Severity, policies []domain.RetryPolicy) email.EscalationEmailData {
	name := f.Lead.FullName()
	if name == "" {
		name = f.Lead.ID.String()
	}

	fields := []email.EscalationField{
		{Label: "Lead", Value: name},
		{Label: "Email", Value: f.Lead.Email},
		{Label: "Phone", Value: f.Lead.Phone},
		{Label: "Channel", Value: string(f.Delivery.Channel)},
		{Label: "Step", Value: fmt.Sprintf("#%d %s", f.Step.Order, f.Step.MessageTemplateRef)},
		{Label: "Scheduled for", Value: f.Delivery.ScheduledFor.UTC().Format(time.RFC3339)},
		{Label: "Attempt", Value: strconv.Itoa(attempt)},
		{Label: "Error", Value: errString(f.Err)},
	}
	if loc := s.locate(ctx, f.Lead.IPAddress); loc != "" {
		fields = append(fields, email.EscalationField{Label: "Location", Value: loc})
	}
	if len(policies) > 0 {
		names := make([]string, 0, len(policies))
		for _, p := range policies {
			names = append(names, fmt.Sprintf("%s (+%dm)", p.Name, p.RetryAfterMinutes))
		}
		fields = append(fields, email.EscalationField{Label: "Retry policies", Value: strings.Join(names, ", ")})
	}

	return email.EscalationEmailData{
		Severity:    string(severity),
		Title:       fmt.Sprintf("%s delivery failed for %s", f.Delivery.Channel, name),
		Description: "An outreach step could not be delivered. Review the lead and the attempt history.",
		Fields:      fields,
		Links: []email.EscalationLink{
			{Label: "Open lead", URL: fmt.Sprintf("%s/admin/leads/%s", s.baseURL, f.Lead.ID)},
			{Label: "Attempt history", URL: fmt.Sprintf("%s/admin/outreach/deliveries/%s", s.baseURL, f.Delivery.ID)},
		},
	}
}

func (s *Service) locate(ctx context.Context, ip string) string {
	if s.locator == nil || strings.TrimSpace(ip) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, geoLookupTimeout)
	defer cancel()
	loc, err := s.locator.Lookup(ctx, ip)
	if err != nil {
		s.log.Debug("geoip lookup skipped", "ip", ip, "error", err)
		return ""
	}
	return loc.String()
}

func errString(err error) string {
	return sanitize.ErrorMessage(err)
}
