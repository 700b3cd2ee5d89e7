package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/email"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
)

// QuotaWindow is the trailing window the email send limit applies to.
const QuotaWindow = time.Hour

// EmailHandler sends sequence emails under a rolling hourly quota.
type EmailHandler struct {
	steps     repository.StepReader
	emailLog  repository.EmailLogStore
	sender    email.Sender
	templates *Templates
	limit     int
	now       func() time.Time
	log       *logger.Logger
}

func NewEmailHandler(steps repository.StepReader, emailLog repository.EmailLogStore, sender email.Sender, templates *Templates, hourlyLimit int, log *logger.Logger) *EmailHandler {
	return &EmailHandler{
		steps:     steps,
		emailLog:  emailLog,
		sender:    sender,
		templates: templates,
		limit:     hourlyLimit,
		now:       time.Now,
		log:       log,
	}
}

// WithClock overrides the handler's clock.
func (h *EmailHandler) WithClock(now func() time.Time) *EmailHandler {
	h.now = now
	return h
}

func (h *EmailHandler) Channel() domain.Channel { return domain.ChannelEmail }

// Send checks the quota before any provider call, renders the step's
// template and records every attempt in the email log.
func (h *EmailHandler) Send(ctx context.Context, delivery domain.PendingDelivery, lead domain.Lead) error {
	if h.sender == nil || h.templates == nil {
		return fmt.Errorf("email sender: %w", domain.ErrMisconfigured)
	}
	to := strings.TrimSpace(lead.Email)
	if to == "" {
		return fmt.Errorf("lead %s has no email address", lead.ID)
	}

	step, err := h.steps.GetStep(ctx, delivery.SequenceStepID)
	if err != nil {
		return fmt.Errorf("load step: %w", err)
	}

	now := h.now().UTC()
	sent, err := h.emailLog.CountSentSince(ctx, now.Add(-QuotaWindow))
	if err != nil {
		return fmt.Errorf("count sent emails: %w", err)
	}
	if sent >= h.limit {
		msg := fmt.Sprintf("hourly limit %d reached", h.limit)
		h.record(ctx, delivery, to, step.Subject, domain.EmailStatusRejected, &msg, now)
		return fmt.Errorf("%s (%d sent): %w", msg, sent, domain.ErrQuotaExceeded)
	}

	subject, body, err := h.templates.Render(step.MessageTemplateRef, step.Subject, lead)
	if err != nil {
		return err
	}
	html, err := email.RenderOutreach(email.OutreachEmailData{Title: subject, Body: body})
	if err != nil {
		return err
	}

	if err := h.sender.SendEmail(ctx, email.Message{To: to, Subject: subject, HTML: html}); err != nil {
		msg := err.Error()
		h.record(ctx, delivery, to, subject, domain.EmailStatusFailed, &msg, now)
		return domain.ProviderError("send email", err)
	}

	h.record(ctx, delivery, to, subject, domain.EmailStatusSent, nil, now)
	return nil
}

func (h *EmailHandler) record(ctx context.Context, delivery domain.PendingDelivery, to, subject string, status domain.EmailStatus, errMsg *string, at time.Time) {
	deliveryID := delivery.ID
	entry := domain.EmailLogEntry{
		ID:                uuid.New(),
		PendingDeliveryID: &deliveryID,
		ToEmail:           to,
		Subject:           subject,
		Status:            status,
		Error:             errMsg,
		CreatedAt:         at,
	}
	if err := h.emailLog.AppendEmailLog(ctx, entry); err != nil {
		h.log.Error("failed to write email log", "delivery_id", delivery.ID, "status", status, "error", err)
	}
}
