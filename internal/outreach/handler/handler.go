package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/scheduling"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
	msgInvalidID        = "invalid delivery id"
	maxCatalogBytes     = 1 << 20
)

// Sequences is the scheduling surface the handler drives.
type Sequences interface {
	ScheduleSequenceForLead(ctx context.Context, leadID uuid.UUID, createdBy *uuid.UUID) ([]domain.PendingDelivery, error)
	RecordInboundContactForLead(ctx context.Context, leadID uuid.UUID, phone string) (scheduling.InboundResult, error)
	CancelPendingDeliveries(ctx context.Context, leadID uuid.UUID) (int, error)
}

// Enqueuer defers sequence scheduling to the background worker.
type Enqueuer interface {
	EnqueueScheduleSequence(ctx context.Context, leadID uuid.UUID, createdBy *uuid.UUID) error
}

type Deliveries interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (domain.PendingDelivery, error)
}

type RetryLogs interface {
	ListRetryLogs(ctx context.Context, deliveryID uuid.UUID) ([]domain.RetryLogEntry, error)
}

type Catalog interface {
	ListActive(ctx context.Context) ([]domain.SequenceStep, error)
	ImportYAML(ctx context.Context, r io.Reader) (int, error)
}

// Handler handles HTTP requests for outreach administration.
type Handler struct {
	seq        Sequences
	enqueuer   Enqueuer
	deliveries Deliveries
	logs       RetryLogs
	catalog    Catalog
	val        *validator.Validator
}

// New creates a handler. enqueuer may be nil, in which case sequences are
// scheduled inside the request.
func New(seq Sequences, enqueuer Enqueuer, deliveries Deliveries, logs RetryLogs, catalog Catalog, val *validator.Validator) *Handler {
	return &Handler{seq: seq, enqueuer: enqueuer, deliveries: deliveries, logs: logs, catalog: catalog, val: val}
}

// ScheduleSequence starts the outreach sequence for a lead.
// POST /api/v1/admin/outreach/leads/:id/sequence
func (h *Handler) ScheduleSequence(c *gin.Context) {
	leadID, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	createdBy := actor(c)

	if h.enqueuer != nil {
		if err := h.enqueuer.EnqueueScheduleSequence(c.Request.Context(), leadID, createdBy); httpkit.HandleError(c, err) {
			return
		}
		httpkit.Accepted(c, transport.ScheduleSequenceResponse{LeadID: leadID, Status: "queued"})
		return
	}

	created, err := h.seq.ScheduleSequenceForLead(c.Request.Context(), leadID, createdBy)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ScheduleSequenceResponse{
		LeadID:     leadID,
		Status:     "scheduled",
		Deliveries: transport.ToDeliveryResponses(created),
	})
}

// RecordInboundContact debounces outreach after the lead reached out.
// POST /api/v1/admin/outreach/leads/:id/inbound-contact
func (h *Handler) RecordInboundContact(c *gin.Context) {
	leadID, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	var req transport.InboundContactRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	res, err := h.seq.RecordInboundContactForLead(c.Request.Context(), leadID, req.Phone)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := transport.InboundContactResponse{LeadID: leadID, Absorbed: res.Absorbed, Rescheduled: res.Rescheduled, Scheduled: res.Scheduled}
	if res.Absorbed {
		id := res.DeliveryID
		resp.DeliveryID = &id
	}
	httpkit.OK(c, resp)
}

// CancelDeliveries stops all unresolved deliveries of a lead.
// DELETE /api/v1/admin/outreach/leads/:id/deliveries
func (h *Handler) CancelDeliveries(c *gin.Context) {
	leadID, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	n, err := h.seq.CancelPendingDeliveries(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.CancelDeliveriesResponse{LeadID: leadID, Cancelled: n})
}

// GetDelivery returns one pending delivery.
// GET /api/v1/admin/outreach/deliveries/:id
func (h *Handler) GetDelivery(c *gin.Context) {
	id, ok := parseID(c, msgInvalidID)
	if !ok {
		return
	}
	d, err := h.deliveries.GetDelivery(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToDeliveryResponse(d))
}

// ListRetryLogs returns the attempt audit of a delivery.
// GET /api/v1/admin/outreach/deliveries/:id/retry-logs
func (h *Handler) ListRetryLogs(c *gin.Context) {
	id, ok := parseID(c, msgInvalidID)
	if !ok {
		return
	}
	entries, err := h.logs.ListRetryLogs(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToRetryLogListResponse(id, entries))
}

// ListSteps returns the active sequence catalog.
// GET /api/v1/admin/outreach/steps
func (h *Handler) ListSteps(c *gin.Context) {
	steps, err := h.catalog.ListActive(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSequenceStepResponses(steps))
}

// ImportCatalog activates a YAML catalog as the next version.
// PUT /api/v1/admin/outreach/steps
func (h *Handler) ImportCatalog(c *gin.Context) {
	version, err := h.catalog.ImportYAML(c.Request.Context(), http.MaxBytesReader(c.Writer, c.Request.Body, maxCatalogBytes))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.CatalogImportResponse{Version: version})
}

func parseID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.Nil, false
	}
	return id, true
}

func actor(c *gin.Context) *uuid.UUID {
	identity := httpkit.GetIdentity(c)
	if !identity.IsAuthenticated() {
		return nil
	}
	id := identity.UserID()
	return &id
}
