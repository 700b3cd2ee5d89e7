package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
)

// Sequences

type InboundContactRequest struct {
	Phone string `json:"phone" validate:"omitempty,min=6,max=32"`
}

type ScheduleSequenceResponse struct {
	LeadID     uuid.UUID          `json:"leadId"`
	Status     string             `json:"status"`
	Deliveries []DeliveryResponse `json:"deliveries,omitempty"`
}

type InboundContactResponse struct {
	LeadID      uuid.UUID  `json:"leadId"`
	Absorbed    bool       `json:"absorbed"`
	Rescheduled bool       `json:"rescheduled"`
	DeliveryID  *uuid.UUID `json:"deliveryId,omitempty"`
	Scheduled   int        `json:"scheduled"`
}

type CancelDeliveriesResponse struct {
	LeadID    uuid.UUID `json:"leadId"`
	Cancelled int       `json:"cancelled"`
}

// Deliveries

type DeliveryResponse struct {
	ID             uuid.UUID `json:"id"`
	LeadID         uuid.UUID `json:"leadId"`
	SequenceStepID uuid.UUID `json:"sequenceStepId"`
	Channel        string    `json:"channel"`
	ScheduledFor   string    `json:"scheduledFor"`
	IsSent         *string   `json:"isSent,omitempty"`
	Error          *string   `json:"error,omitempty"`
	ShouldSend     bool      `json:"shouldSend"`
}

type RetryLogResponse struct {
	ID            uuid.UUID  `json:"id"`
	RetryPolicyID *uuid.UUID `json:"retryPolicyId,omitempty"`
	Attempt       int        `json:"attempt"`
	AttemptedAt   string     `json:"attemptedAt"`
	ErrorMessage  string     `json:"errorMessage"`
	Success       bool       `json:"success"`
}

type RetryLogListResponse struct {
	DeliveryID uuid.UUID          `json:"deliveryId"`
	Items      []RetryLogResponse `json:"items"`
}

// Catalog

type SequenceStepResponse struct {
	ID                 uuid.UUID `json:"id"`
	CatalogVersion     int       `json:"catalogVersion"`
	Order              int       `json:"order"`
	DelayOffsetMinutes int       `json:"delayOffsetMinutes"`
	Channel            string    `json:"channel"`
	MessageTemplateRef string    `json:"messageTemplateRef"`
	Subject            string    `json:"subject,omitempty"`
}

type CatalogImportResponse struct {
	Version int `json:"version"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func ToDeliveryResponse(d domain.PendingDelivery) DeliveryResponse {
	resp := DeliveryResponse{
		ID:             d.ID,
		LeadID:         d.LeadID,
		SequenceStepID: d.SequenceStepID,
		Channel:        string(d.Channel),
		ScheduledFor:   formatTime(d.ScheduledFor),
		Error:          d.Error,
		ShouldSend:     d.ShouldSend,
	}
	if d.IsSent != nil {
		s := formatTime(*d.IsSent)
		resp.IsSent = &s
	}
	return resp
}

func ToDeliveryResponses(items []domain.PendingDelivery) []DeliveryResponse {
	out := make([]DeliveryResponse, 0, len(items))
	for _, d := range items {
		out = append(out, ToDeliveryResponse(d))
	}
	return out
}

func ToRetryLogListResponse(deliveryID uuid.UUID, entries []domain.RetryLogEntry) RetryLogListResponse {
	items := make([]RetryLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, RetryLogResponse{
			ID:            e.ID,
			RetryPolicyID: e.RetryPolicyID,
			Attempt:       e.Attempt,
			AttemptedAt:   formatTime(e.AttemptedAt),
			ErrorMessage:  e.ErrorMessage,
			Success:       e.Success,
		})
	}
	return RetryLogListResponse{DeliveryID: deliveryID, Items: items}
}

func ToSequenceStepResponses(steps []domain.SequenceStep) []SequenceStepResponse {
	out := make([]SequenceStepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, SequenceStepResponse{
			ID:                 s.ID,
			CatalogVersion:     s.CatalogVersion,
			Order:              s.Order,
			DelayOffsetMinutes: s.DelayOffsetMinutes,
			Channel:            string(s.Channel),
			MessageTemplateRef: s.MessageTemplateRef,
			Subject:            s.Subject,
		})
	}
	return out
}
