package eventpublisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/metrics"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// EventPublisher drains the transactional outbox: ledger events are
// written in the same transaction as the movement and relayed to the
// outside from here, so a consumer never sees an event for a write
// that rolled back. Published rows older than the retention window
// are swept on a slower cadence.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     *slog.Logger
	batchSize  int
	interval   time.Duration
	retention  time.Duration
	metrics    *metrics.Metrics
}

// Publisher is the sink the drained events are handed to.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     *slog.Logger
	BatchSize  int           // events fetched per poll
	Interval   time.Duration // polling interval
	Retention  time.Duration // how long published rows are kept
	Metrics    *metrics.Metrics
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		metrics:    cfg.Metrics,
	}
}

// Start runs the drain loop until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info("event publisher started",
		slog.Int("batch_size", ep.batchSize),
		slog.Duration("interval", ep.interval))

	poll := time.NewTicker(ep.interval)
	defer poll.Stop()

	sweep := time.NewTicker(ep.retention / 4)
	defer sweep.Stop()

	// Drain whatever accumulated while the service was down.
	if err := ep.processEvents(ctx); err != nil {
		ep.logger.Error("initial outbox drain failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info("event publisher shutting down")
			return ctx.Err()
		case <-poll.C:
			if err := ep.processEvents(ctx); err != nil {
				ep.logger.Error("outbox drain failed", slog.String("error", err.Error()))
			}
		case <-sweep.C:
			cutoff := time.Now().Add(-ep.retention)
			if err := ep.outboxRepo.DeletePublished(ctx, cutoff); err != nil {
				ep.logger.Error("outbox retention sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// processEvents publishes one batch of unpublished events. A failing
// event is left unpublished for the next poll; the rest of the batch
// still goes out.
func (ep *EventPublisher) processEvents(ctx context.Context) error {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	published := 0
	for _, event := range events {
		if err := ep.publisher.Publish(ctx, event); err != nil {
			ep.logger.Error("publish failed",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.EventType),
				slog.String("error", err.Error()))
			continue
		}

		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, time.Now()); err != nil {
			ep.logger.Error("mark published failed",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
			continue
		}
		published++
	}

	if ep.metrics != nil {
		ep.metrics.OutboxPublished.Add(float64(published))
		ep.metrics.OutboxPending.Set(float64(len(events) - published))
	}

	ep.logger.Info("outbox batch drained",
		slog.Int("fetched", len(events)),
		slog.Int("published", published))

	return nil
}

// LogPublisher writes events to the process log. It stands in until a
// broker sink is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info("ledger event",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_type", event.AggregateType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("payload", string(payload)))

	return nil
}
