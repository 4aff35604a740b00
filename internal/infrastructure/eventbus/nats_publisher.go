// Package eventbus carries domain events out of the transactional outbox
// onto NATS, fulfilling the reference's never-implemented "Phase 6"
// annotation on ports.EventSubscriber/OutboxRepository.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/events"
)

// NATSPublisher implements ports.EventPublisher by publishing domain
// events as JSON to "<prefix>.<eventType>", e.g.
// "pixledger.pixtransfer.confirmed". It is the live counterpart of the
// reference's Kafka-shaped comments: same interface, NATS as the carrier.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher creates a new NATSPublisher.
func NewNATSPublisher(conn *nats.Conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}
}

// Publish marshals event as JSON and publishes it to its subject.
func (p *NATSPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
	}

	if err := p.conn.Publish(p.subject(event.EventType()), payload); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}

	return nil
}

// PublishBatch publishes each event individually; NATS core has no
// transactional batch publish, so a mid-batch failure leaves earlier
// events delivered and returns the first error.
func (p *NATSPublisher) PublishBatch(ctx context.Context, eventsList []events.DomainEvent) error {
	for _, event := range eventsList {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *NATSPublisher) subject(eventType string) string {
	return p.prefix + "." + eventType
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

// Connect dials a NATS server at url. Kept as a thin wrapper so
// container.go does not import nats.go directly for the common case.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("pixledger"))
}
