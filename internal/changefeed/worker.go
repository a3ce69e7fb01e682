package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_routing_backend/internal/events"
	"lead_routing_backend/internal/metrics"
	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type changeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Change, error)
	MarkAttempt(ctx context.Context, id uuid.UUID) error
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Worker consumes change tasks and publishes them on the bus. Handlers run
// synchronously so a failed delivery is retried by asynq.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	repo    changeStore
	bus     events.Bus
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, m *metrics.Metrics, log *logger.Logger) (*Worker, error) {
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

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		repo:    NewRepository(pool),
		bus:     bus,
		metrics: m,
		log:     log.WithComponent("changefeed_worker"),
	}

	mux.HandleFunc(TaskDocumentChanged, w.handleDocumentChanged)

	return w, nil
}

// Run serves change tasks until ctx is cancelled. It returns an error when
// Redis is unreachable or the server cannot start, so the process exits.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Ping(); err != nil {
		return fmt.Errorf("changefeed worker: ping redis: %w", err)
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("changefeed worker: start: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("changefeed worker stopped")
	return nil
}

func (w *Worker) handleDocumentChanged(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDocumentChangedPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	changeID, err := uuid.Parse(payload.ChangeID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.Deliver(ctx, changeID)
}

// Deliver loads a change and publishes it to every subscriber.
func (w *Worker) Deliver(ctx context.Context, changeID uuid.UUID) error {
	ctx = context.WithValue(ctx, logger.ChangeIDKey, changeID.String())
	log := w.log.WithContext(ctx)
	start := time.Now()

	ch, err := w.repo.GetByID(ctx, changeID)
	if errors.Is(err, ErrNotFound) {
		log.Warn("change vanished before delivery")
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.repo.MarkAttempt(ctx, changeID); err != nil {
		log.Warn("record delivery attempt failed", "error", err)
	}

	event, err := Decode(ch)
	if err != nil {
		_ = w.repo.MarkFailed(ctx, changeID, err.Error())
		w.metrics.RecordDelivery(ch.Collection, "undecodable", time.Since(start))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if event != nil && w.bus != nil {
		if err := w.bus.PublishSync(ctx, event); err != nil {
			_ = w.repo.MarkFailed(ctx, changeID, err.Error())
			w.metrics.RecordDelivery(ch.Collection, "error", time.Since(start))
			return err
		}
	}

	if err := w.repo.MarkDelivered(ctx, changeID); err != nil {
		log.Warn("mark change delivered failed", "error", err)
	}
	w.metrics.RecordDelivery(ch.Collection, "ok", time.Since(start))
	return nil
}
