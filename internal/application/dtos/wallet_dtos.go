// Package dtos - Wallet DTOs для передачи данных о кошельках.
package dtos

import "time"

// ============================================
// Commands (Write операции)
// ============================================

// CreateWalletCommand - команда для создания кошелька. POST /wallets.
type CreateWalletCommand struct {
	UserID string `json:"userId" validate:"required"`
}

// DepositCommand - команда для пополнения кошелька. POST /wallets/{id}/deposit.
type DepositCommand struct {
	WalletID    string `json:"-"`
	Amount      string `json:"amount" validate:"required,money_amount"` // Decimal string: "100.50"
	Description string `json:"description,omitempty"`
}

// WithdrawCommand - команда для списания с кошелька. POST /wallets/{id}/withdraw.
type WithdrawCommand struct {
	WalletID    string `json:"-"`
	Amount      string `json:"amount" validate:"required,money_amount"`
	Description string `json:"description,omitempty"`
}

// RegisterPixKeyCommand - команда для привязки Pix-ключа к кошельку.
// POST /wallets/{id}/pix-keys.
type RegisterPixKeyCommand struct {
	WalletID string `json:"-"`
	KeyValue string `json:"keyValue" validate:"required"`
	KeyType  string `json:"keyType" validate:"required,pix_key_type"`
}

// UpdateWalletStatusCommand - команда для изменения статуса кошелька.
// Административная операция, без HTTP-маршрута (см. SUPPLEMENTED FEATURES).
type UpdateWalletStatusCommand struct {
	WalletID string `json:"walletId" validate:"required,uuid"`
	Status   string `json:"status" validate:"required,oneof=ACTIVE SUSPENDED LOCKED CLOSED"`
	Reason   string `json:"reason,omitempty"`
}

// ============================================
// Queries (Read операции)
// ============================================

// GetWalletQuery - запрос для получения кошелька по ID.
type GetWalletQuery struct {
	WalletID string `json:"walletId" validate:"required,uuid"`
}

// GetBalanceQuery - запрос баланса кошелька, опционально на момент времени
// At (historical replay via balanceAt). GET /wallets/{id}/balance?at=ISO8601?.
type GetBalanceQuery struct {
	WalletID string     `json:"walletId" validate:"required,uuid"`
	At       *time.Time `json:"at,omitempty"`
}

// ListWalletsQuery - запрос списка кошельков с фильтрацией.
type ListWalletsQuery struct {
	UserID *string `json:"userId,omitempty"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE SUSPENDED LOCKED CLOSED"`
	Offset int     `json:"offset" validate:"min=0"`
	Limit  int     `json:"limit" validate:"min=1,max=100"`
}

// ============================================
// Response DTOs
// ============================================

// WalletDTO - представление кошелька для API.
type WalletDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Balance   string    `json:"balance"` // Decimal string: "100.50"
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WalletListDTO - результат для списка кошельков.
type WalletListDTO struct {
	Wallets    []WalletDTO `json:"wallets"`
	TotalCount int         `json:"totalCount"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
}

// BalanceDTO - ответ на запрос баланса, опционально на конкретный момент
// времени (GetBalanceQuery.At == nil means "current"); Timestamp is the
// moment the balance refers to.
type BalanceDTO struct {
	WalletID  string    `json:"walletId"`
	Balance   string    `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

// WalletOperationDTO - результат операции с кошельком (deposit/withdraw).
type WalletOperationDTO struct {
	Wallet  WalletDTO `json:"wallet"`
	Message string    `json:"message"`
}

// PixKeyDTO - представление Pix-ключа для API.
type PixKeyDTO struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"walletId"`
	KeyValue  string    `json:"keyValue"`
	KeyType   string    `json:"keyType"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}
