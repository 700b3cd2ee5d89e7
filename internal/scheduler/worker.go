package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/scheduling"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SequenceService is the scheduling surface the worker drives.
type SequenceService interface {
	ScheduleSequenceForLead(ctx context.Context, leadID uuid.UUID, createdBy *uuid.UUID) ([]domain.PendingDelivery, error)
	RecordInboundContactForLead(ctx context.Context, leadID uuid.UUID, phone string) (scheduling.InboundResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	svc    SequenceService
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc SequenceService, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := &Worker{
		server: server,
		svc:    svc,
		log:    log,
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskScheduleSequence, w.handleScheduleSequence)
	mux.HandleFunc(TaskInboundContact, w.handleInboundContact)
	return mux
}

// Run processes tasks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleScheduleSequence(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScheduleSequencePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", asynq.SkipRetry)
	}

	var createdBy *uuid.UUID
	if payload.CreatedBy != nil {
		id, err := uuid.Parse(*payload.CreatedBy)
		if err == nil {
			createdBy = &id
		}
	}

	created, err := w.svc.ScheduleSequenceForLead(ctx, leadID, createdBy)
	if err != nil {
		return skipIfPermanent(err)
	}
	w.log.Info("sequence task processed", "lead_id", leadID, "deliveries", len(created))
	return nil
}

func (w *Worker) handleInboundContact(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInboundContactPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("invalid lead id: %w", asynq.SkipRetry)
	}

	res, err := w.svc.RecordInboundContactForLead(ctx, leadID, payload.Phone)
	if err != nil {
		return skipIfPermanent(err)
	}
	w.log.Info("inbound contact processed", "lead_id", leadID, "absorbed", res.Absorbed, "rescheduled", res.Rescheduled, "scheduled", res.Scheduled)
	return nil
}

// skipIfPermanent stops asynq from retrying errors a retry cannot fix.
func skipIfPermanent(err error) error {
	switch apperr.GetKind(err) {
	case apperr.KindNotFound, apperr.KindValidation:
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}
