package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixwallet/ledger/internal/application/ports"
)

const defaultBatchSize = 100

// OutboxRelay is the poller the reference only ever commented about: it
// reads undelivered rows from the transactional outbox, publishes them
// to NATS, and marks each as published or failed. Running this as a
// separate loop (rather than publishing inline with the business
// transaction) is what makes the outbox pattern durable across a
// publisher outage.
type OutboxRelay struct {
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxRelay creates a new OutboxRelay polling at interval.
func NewOutboxRelay(outbox ports.OutboxRepository, publisher ports.EventPublisher, logger *slog.Logger, interval time.Duration) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run polls until ctx is canceled. Intended to be started in its own
// goroutine from the composition root.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.relayOnce(ctx)
		}
	}
}

// relayOnce publishes one batch of unpublished events. A batch of size
// zero is a no-op; a publish failure on one event marks it failed and
// continues with the rest so a single poisoned event can't stall the
// relay.
func (r *OutboxRelay) relayOnce(ctx context.Context) {
	pending, err := r.outbox.FindUnpublished(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("outbox relay: failed to load unpublished events", "error", err)
		return
	}

	for _, event := range pending {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("outbox relay: failed to publish event", "eventId", event.EventID(), "eventType", event.EventType(), "error", err)
			if markErr := r.outbox.MarkFailed(ctx, event.EventID().String(), err.Error()); markErr != nil {
				r.logger.Error("outbox relay: failed to mark event failed", "eventId", event.EventID(), "error", markErr)
			}
			continue
		}

		if err := r.outbox.MarkPublished(ctx, event.EventID().String()); err != nil {
			r.logger.Error("outbox relay: failed to mark event published", "eventId", event.EventID(), "error", err)
		}
	}
}
