// Package events defines domain events that represent significant business occurrences.
// Events are immutable facts about what happened in the past.
//
// SOLID Principles:
// - SRP: Each event type represents one business occurrence
// - OCP: New events can be added without modifying existing code
// - ISP: Event consumers only handle events they care about
//
// Pattern: Domain Events (Observer Pattern foundation)
// - Events are raised by entities when state changes
// - Handlers can react asynchronously
// - Enables loose coupling between domain modules
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// All events must have an ID, timestamp, and type.
//
// Why interface? (ISP principle)
// - Consumers can work with any event type
// - Easy to add new event types
// - Type-safe event handling with type switches
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID // ID of the entity that raised this event
}

// BaseEvent provides common fields for all events.
// Embedded in specific event types to avoid duplication (DRY).
type BaseEvent struct {
	eventID     uuid.UUID
	eventType   string
	occurredAt  time.Time
	aggregateID uuid.UUID
}

func newBaseEvent(eventType string, aggregateID uuid.UUID) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New(),
		eventType:   eventType,
		occurredAt:  time.Now(),
		aggregateID: aggregateID,
	}
}

func (e BaseEvent) EventID() uuid.UUID {
	return e.eventID
}

func (e BaseEvent) EventType() string {
	return e.eventType
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e BaseEvent) AggregateID() uuid.UUID {
	return e.aggregateID
}

// Event Types (constants for type checking and for the NATS subject / outbox
// event_type column).
const (
	EventTypeWalletCreated        = "wallet.created"
	EventTypeWalletCredited       = "wallet.credited"
	EventTypeWalletDebited        = "wallet.debited"
	EventTypeWalletSuspended      = "wallet.suspended"
	EventTypePixKeyRegistered     = "pixkey.registered"
	EventTypePixTransferInitiated = "pixtransfer.initiated"
	EventTypePixTransferConfirmed = "pixtransfer.confirmed"
	EventTypePixTransferRejected  = "pixtransfer.rejected"
)

// ===== Wallet Events =====

// WalletCreated is raised when a new wallet is created.
type WalletCreated struct {
	BaseEvent
	UserID string
}

func NewWalletCreated(walletID uuid.UUID, userID string) *WalletCreated {
	return &WalletCreated{
		BaseEvent: newBaseEvent(EventTypeWalletCreated, walletID),
		UserID:    userID,
	}
}

// WalletCredited is raised when funds are added to a wallet.
// This event might trigger notifications, analytics, etc.
type WalletCredited struct {
	BaseEvent
	WalletID      uuid.UUID
	Amount        valueobjects.Money
	TransactionID string
	BalanceAfter  valueobjects.Money
}

func NewWalletCredited(
	walletID uuid.UUID,
	amount valueobjects.Money,
	transactionID string,
	balanceAfter valueobjects.Money,
) *WalletCredited {
	return &WalletCredited{
		BaseEvent:     newBaseEvent(EventTypeWalletCredited, walletID),
		WalletID:      walletID,
		Amount:        amount,
		TransactionID: transactionID,
		BalanceAfter:  balanceAfter,
	}
}

// WalletDebited is raised when funds are removed from a wallet.
type WalletDebited struct {
	BaseEvent
	WalletID      uuid.UUID
	Amount        valueobjects.Money
	TransactionID string
	BalanceAfter  valueobjects.Money
}

func NewWalletDebited(
	walletID uuid.UUID,
	amount valueobjects.Money,
	transactionID string,
	balanceAfter valueobjects.Money,
) *WalletDebited {
	return &WalletDebited{
		BaseEvent:     newBaseEvent(EventTypeWalletDebited, walletID),
		WalletID:      walletID,
		Amount:        amount,
		TransactionID: transactionID,
		BalanceAfter:  balanceAfter,
	}
}

// WalletSuspended is raised when a wallet is suspended.
// This might trigger alerts, stop pending transfers, etc.
type WalletSuspended struct {
	BaseEvent
	WalletID uuid.UUID
	Reason   string
}

func NewWalletSuspended(walletID uuid.UUID, reason string) *WalletSuspended {
	return &WalletSuspended{
		BaseEvent: newBaseEvent(EventTypeWalletSuspended, walletID),
		WalletID:  walletID,
		Reason:    reason,
	}
}

// ===== Pix Key Events =====

// PixKeyRegistered is raised when a new Pix key is bound to a wallet.
type PixKeyRegistered struct {
	BaseEvent
	WalletID uuid.UUID
	KeyValue string
	KeyType  valueobjects.PixKeyType
}

func NewPixKeyRegistered(pixKeyID, walletID uuid.UUID, keyValue string, keyType valueobjects.PixKeyType) *PixKeyRegistered {
	return &PixKeyRegistered{
		BaseEvent: newBaseEvent(EventTypePixKeyRegistered, pixKeyID),
		WalletID:  walletID,
		KeyValue:  keyValue,
		KeyType:   keyType,
	}
}

// ===== Pix Transfer Events =====

// PixTransferInitiated is raised when a transfer enters PENDING state.
// Consumers (outbox relay) publish this so downstream systems observe the
// attempt even if it is later rejected.
type PixTransferInitiated struct {
	BaseEvent
	EndToEndID     string
	IdempotencyKey string
	FromWalletID   uuid.UUID
	ToPixKey       string
	Amount         valueobjects.Money
}

func NewPixTransferInitiated(
	transferID uuid.UUID,
	endToEndID, idempotencyKey string,
	fromWalletID uuid.UUID,
	toPixKey string,
	amount valueobjects.Money,
) *PixTransferInitiated {
	return &PixTransferInitiated{
		BaseEvent:      newBaseEvent(EventTypePixTransferInitiated, transferID),
		EndToEndID:     endToEndID,
		IdempotencyKey: idempotencyKey,
		FromWalletID:   fromWalletID,
		ToPixKey:       toPixKey,
		Amount:         amount,
	}
}

// PixTransferConfirmed is raised when a transfer reaches CONFIRMED.
type PixTransferConfirmed struct {
	BaseEvent
	EndToEndID   string
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       valueobjects.Money
}

func NewPixTransferConfirmed(transferID uuid.UUID, endToEndID string, fromWalletID, toWalletID uuid.UUID, amount valueobjects.Money) *PixTransferConfirmed {
	return &PixTransferConfirmed{
		BaseEvent:    newBaseEvent(EventTypePixTransferConfirmed, transferID),
		EndToEndID:   endToEndID,
		FromWalletID: fromWalletID,
		ToWalletID:   toWalletID,
		Amount:       amount,
	}
}

// PixTransferRejected is raised when a transfer reaches REJECTED. The
// originating wallet has already been refunded by the time this is raised.
type PixTransferRejected struct {
	BaseEvent
	EndToEndID   string
	FromWalletID uuid.UUID
	Amount       valueobjects.Money
	Reason       string
}

func NewPixTransferRejected(transferID uuid.UUID, endToEndID string, fromWalletID uuid.UUID, amount valueobjects.Money, reason string) *PixTransferRejected {
	return &PixTransferRejected{
		BaseEvent:    newBaseEvent(EventTypePixTransferRejected, transferID),
		EndToEndID:   endToEndID,
		FromWalletID: fromWalletID,
		Amount:       amount,
		Reason:       reason,
	}
}

// EventStore is a simple in-memory collector for domain events. It does not
// publish anything itself, and the application layer does not use it: use
// cases hand each event directly to ports.EventPublisher, which the
// container wires to the Postgres outbox.
type EventStore struct {
	events []DomainEvent
}

// NewEventStore creates a new event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events: make([]DomainEvent, 0),
	}
}

// Add appends an event to the store.
func (s *EventStore) Add(event DomainEvent) {
	s.events = append(s.events, event)
}

// GetAll returns all collected events.
func (s *EventStore) GetAll() []DomainEvent {
	return s.events
}

// Clear removes all events from the store.
func (s *EventStore) Clear() {
	s.events = make([]DomainEvent, 0)
}

// Count returns the number of events in the store.
func (s *EventStore) Count() int {
	return len(s.events)
}
