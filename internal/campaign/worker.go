package campaign

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loyaltyops/notify-dispatch/internal/dispatch"
	"github.com/loyaltyops/notify-dispatch/internal/model"
	"github.com/loyaltyops/notify-dispatch/internal/repo"
	"github.com/loyaltyops/notify-dispatch/internal/template"
)

// Sender runs one campaign batch. Satisfied by *dispatch.Dispatcher.
type Sender interface {
	SendCampaign(ctx context.Context, userIDs []int64, templateID int64, data template.Data) ([]dispatch.CampaignResult, error)
}

// Worker periodically claims due campaign jobs and hands them to the
// dispatcher. Jobs are claimed with row locks, so multiple worker instances
// can run against the same database without double-sending.
type Worker struct {
	interval  time.Duration
	batchSize int
	jobs      repo.CampaignJobRepository
	sender    Sender

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(interval time.Duration, batchSize int, jobs repo.CampaignJobRepository, sender Sender) (*Worker, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if batchSize <= 0 {
		return nil, errors.New("batchSize must be > 0")
	}
	if jobs == nil {
		return nil, errors.New("jobs must not be nil")
	}
	if sender == nil {
		return nil, errors.New("sender must not be nil")
	}
	return &Worker{
		interval:  interval,
		batchSize: batchSize,
		jobs:      jobs,
		sender:    sender,
		done:      make(chan struct{}),
	}, nil
}

func (w *Worker) Start() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running.Store(true)

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		slog.Info("campaign worker started", "interval", w.interval.String(), "batch_size", w.batchSize)

		w.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("campaign worker stopping")
				return
			case <-ticker.C:
				w.safeTick(ctx)
			}
		}
	}()

	return true
}

func (w *Worker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return false
	}

	w.cancel()
	<-w.done
	w.running.Store(false)

	slog.Info("campaign worker stopped")
	return true
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}

func (w *Worker) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("campaign worker tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	w.Tick(ctx)
	slog.Info("campaign worker tick completed", "duration_ms", time.Since(start).Milliseconds())
}

// Tick claims one batch of due jobs and processes each to completion. A
// job whose template cannot be resolved is marked failed; per-recipient
// delivery failures are part of the report and still complete the job.
func (w *Worker) Tick(ctx context.Context) {
	jobs, err := w.jobs.ClaimDue(ctx, w.batchSize)
	if err != nil {
		slog.Error("failed to claim campaign jobs", "err", err)
		return
	}

	for _, job := range jobs {
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job model.CampaignJob) {
	report, err := w.sender.SendCampaign(ctx, job.UserIDs, job.TemplateID, job.Data)
	if err != nil {
		slog.Error("campaign job failed",
			"job_id", job.ID,
			"template_id", job.TemplateID,
			"err", err,
		)
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark campaign job failed", "job_id", job.ID, "err", markErr)
		}
		return
	}

	var delivered, missed int
	for _, entry := range report {
		if len(entry.Outcomes) > 0 {
			delivered++
		} else {
			missed++
		}
	}
	slog.Info("campaign job completed",
		"job_id", job.ID,
		"template_id", job.TemplateID,
		"recipients", len(report),
		"with_attempts", delivered,
		"without_attempts", missed,
	)

	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
		slog.Error("failed to mark campaign job completed", "job_id", job.ID, "err", err)
	}
}
