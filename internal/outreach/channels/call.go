package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/voice"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

// CallPlacer is the slice of the voice client the call handler uses.
type CallPlacer interface {
	Configured() bool
	PlaceCall(ctx context.Context, assistantID, phoneNumberID string, customer voice.Customer) (string, error)
}

type CallHandler struct {
	calls         repository.CallStore
	placer        CallPlacer
	assistantID   string
	phoneNumberID string
	now           func() time.Time
	log           *logger.Logger
}

func NewCallHandler(calls repository.CallStore, placer CallPlacer, assistantID, phoneNumberID string, log *logger.Logger) *CallHandler {
	return &CallHandler{
		calls:         calls,
		placer:        placer,
		assistantID:   strings.TrimSpace(assistantID),
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		now:           time.Now,
		log:           log,
	}
}

func (h *CallHandler) Channel() domain.Channel { return domain.ChannelCall }

// Send places an outbound call and records a QUEUED session, which closes
// the dispatch gate until reconciliation sees the call end.
func (h *CallHandler) Send(ctx context.Context, delivery domain.PendingDelivery, lead domain.Lead) error {
	if h.assistantID == "" || h.phoneNumberID == "" || h.placer == nil || !h.placer.Configured() {
		return fmt.Errorf("voice assistant or phone number: %w", domain.ErrMisconfigured)
	}

	number, ok := phone.ParseE164(lead.Phone)
	if !ok {
		return fmt.Errorf("lead %s phone %q is not dialable", lead.ID, lead.Phone)
	}

	callID, err := h.placer.PlaceCall(ctx, h.assistantID, h.phoneNumberID, voice.Customer{
		Number: number,
		Name:   lead.FullName(),
		Email:  lead.Email,
	})
	if err != nil {
		return domain.ProviderError("place call", err)
	}

	now := h.now().UTC()
	session := domain.CallSession{
		ID:        uuid.New(),
		CallID:    callID,
		LeadID:    lead.ID,
		Status:    domain.CallStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.calls.CreateCallSession(ctx, session); err != nil {
		return fmt.Errorf("record call session %s: %w", callID, err)
	}

	h.log.Info("outreach call placed", "delivery_id", delivery.ID, "lead_id", lead.ID, "call_id", callID)
	return nil
}
