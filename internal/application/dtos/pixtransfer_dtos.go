// Package dtos - Pix transfer DTOs.
package dtos

import "time"

// InitiateTransferCommand - команда для инициации Pix-перевода.
// POST /pix/transfers (заголовок Idempotency-Key).
type InitiateTransferCommand struct {
	IdempotencyKey string `json:"-" validate:"required"`
	FromWalletID   string `json:"fromWalletId" validate:"required,uuid"`
	ToPixKey       string `json:"toPixKey" validate:"required"`
	Amount         string `json:"amount" validate:"required,money_amount"`
}

// WebhookEventCommand - входящее событие вебхука Pix-сети.
// POST /pix/webhook.
type WebhookEventCommand struct {
	EndToEndID string     `json:"endToEndId" validate:"required"`
	EventID    string     `json:"eventId" validate:"required"`
	EventType  string     `json:"eventType" validate:"required"`
	OccurredAt *time.Time `json:"occurredAt,omitempty"`
}

// PixTransferDTO - представление перевода для API.
type PixTransferDTO struct {
	ID              string     `json:"id"`
	EndToEndID      string     `json:"endToEndId"`
	IdempotencyKey  string     `json:"idempotencyKey"`
	FromWalletID    string     `json:"fromWalletId"`
	ToPixKey        string     `json:"toPixKey"`
	Amount          string     `json:"amount"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
}
