package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach_backend/internal/adapters/storage"
	"outreach_backend/internal/email"
	"outreach_backend/internal/geoip"
	"outreach_backend/internal/outreach/channels"
	"outreach_backend/internal/outreach/dispatch"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/escalation"
	"outreach_backend/internal/outreach/reconcile"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/scheduling"
	"outreach_backend/internal/scheduler"
	"outreach_backend/internal/voice"
	"outreach_backend/migrations"
	"outreach_backend/platform/config"
	"outreach_backend/platform/db"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/redislock"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const lockPrefix = "outreach:jobs"

func main() {
	cfg, err := config.Load(false)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	rdb, err := redislock.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	sender, err := email.NewSender(cfg, cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	templates, err := channels.NewTemplates(cfg.GetAppBaseURL())
	if err != nil {
		log.Error("failed to load message templates", "error", err)
		panic("failed to load message templates: " + err.Error())
	}

	repo := repository.New(pool)
	voiceClient := voice.NewClient(cfg, log)

	registry := channels.NewRegistry(
		channels.NewEmailHandler(repo, repo, sender, templates, cfg.GetOutreachEmailHourlyLimit(), log),
		channels.NewCallHandler(repo, voiceClient, cfg.GetVoiceAssistantID(), cfg.GetVoicePhoneNumberID(), log),
		channels.SMSHandler{},
	)

	escalator := escalation.New(repo, repo, repo, sender, geoip.NewClient(cfg, log), escalation.Config{
		AdminRoles: cfg.GetOutreachAdminRoles(),
		AppBaseURL: cfg.GetAppBaseURL(),
	}, log)

	dispatcher := dispatch.New(repo, registry, escalator, dispatch.Config{
		MaxAttempts:     cfg.GetOutreachMaxAttempts(),
		ProviderTimeout: cfg.GetOutreachProviderTimeout(),
	}, log)

	reconciler := reconcile.New(repo, voiceClient, initTranscriptArchive(ctx, cfg, log), 0, log)

	sequences := scheduling.New(repo, log)
	followUp := scheduling.NewFollowUpSweep(repo, sequences, scheduling.DefaultFollowUpBatch)

	jobs, err := repo.ListJobs(ctx)
	if err != nil {
		log.Warn("failed to load job schedules; using defaults", "error", err)
	}

	runner := scheduler.NewRunner(redislock.New(rdb, lockPrefix), cfg.GetOutreachLockTTL(), log)
	for _, job := range []scheduler.Job{
		{
			Name: domain.JobDispatch,
			Run: func(ctx context.Context) (string, error) {
				outcome, err := dispatcher.Tick(ctx)
				return string(outcome), err
			},
		},
		{
			Name: domain.JobCallReconciliation,
			Run: func(ctx context.Context) (string, error) {
				outcome, err := reconciler.Tick(ctx)
				return string(outcome), err
			},
		},
		{
			Name: domain.JobFollowUp,
			Run: func(ctx context.Context) (string, error) {
				n, err := followUp.Tick(ctx)
				return fmt.Sprintf("scheduled_%d", n), err
			},
		},
	} {
		job.Schedule = scheduler.ScheduleFor(jobs, job.Name)
		if err := runner.Register(job); err != nil {
			log.Error("failed to register job", "job", job.Name, "error", err)
			panic("failed to register job: " + err.Error())
		}
	}

	worker, err := scheduler.NewWorker(cfg, sequences, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}

// initTranscriptArchive returns nil when object storage is not configured;
// transcripts then stay on the call session only.
func initTranscriptArchive(ctx context.Context, cfg *config.Config, log *logger.Logger) reconcile.TranscriptArchiver {
	if !cfg.IsMinIOEnabled() {
		log.Info("MinIO not configured; call transcripts are not archived")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	bucket := cfg.GetMinioBucketCallTranscripts()
	if err := withRetry(ctx, log, "ensure call-transcripts bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "callTranscriptsBucket", bucket)

	return storage.NewTranscriptArchive(storageSvc, bucket)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
