package changefeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lead_routing_backend/platform/config"
	"lead_routing_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const staleEnqueuedAge = 5 * time.Minute

// Dispatcher polls committed changes and enqueues one task per change.
type Dispatcher struct {
	client   *asynq.Client
	queue    string
	repo     *Repository
	interval time.Duration
	batch    int
	maxRetry int
	log      *logger.Logger
}

type DispatcherConfig interface {
	config.SchedulerConfig
	config.ChangefeedConfig
}

func NewDispatcher(cfg DispatcherConfig, pool *pgxpool.Pool, log *logger.Logger) (*Dispatcher, error) {
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

	interval := cfg.GetChangefeedPollInterval()
	if interval <= 0 {
		interval = time.Second
	}

	return &Dispatcher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		repo:     NewRepository(pool),
		interval: interval,
		batch:    cfg.GetChangefeedBatchSize(),
		maxRetry: cfg.GetChangefeedMaxRetry(),
		log:      log.WithComponent("changefeed_dispatcher"),
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	sweep := time.NewTicker(staleEnqueuedAge)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			released, err := d.repo.ReleaseStale(ctx, staleEnqueuedAge)
			if err != nil {
				d.log.DatabaseError("release stale changes", err)
			} else if released > 0 {
				d.log.Info("released stale changes", "count", released)
			}
			continue
		case <-ticker.C:
		}

		changes, err := d.repo.ClaimPending(ctx, d.batch)
		if err != nil {
			d.log.DatabaseError("claim pending changes", err)
			continue
		}

		for _, ch := range changes {
			d.enqueue(ctx, ch)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, ch Change) {
	task, err := NewDocumentChangedTask(DocumentChangedPayload{
		ChangeID:   ch.ID.String(),
		Collection: ch.Collection,
	})
	if err != nil {
		msg := err.Error()
		_ = d.repo.MarkPending(ctx, ch.ID, &msg)
		return
	}

	opts := []asynq.Option{
		asynq.Queue(d.queue),
		asynq.TaskID(ch.ID.String()),
	}
	if d.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(d.maxRetry))
	}

	_, err = d.client.EnqueueContext(ctx, task, opts...)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		msg := err.Error()
		_ = d.repo.MarkPending(ctx, ch.ID, &msg)
		d.log.Warn("change enqueue failed", "change_id", ch.ID, "error", err)
	}
}
