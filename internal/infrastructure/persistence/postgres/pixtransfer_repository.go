// Package postgres - PixTransferRepository implementation with
// optimistic locking on the transfer's state-machine version.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domainErrors "github.com/pixwallet/ledger/internal/domain/errors"
)

var _ ports.PixTransferRepository = (*PixTransferRepository)(nil)

// PixTransferRepository реализует ports.PixTransferRepository.
type PixTransferRepository struct {
	pool *pgxpool.Pool
}

// NewPixTransferRepository создаёт новый PixTransferRepository.
func NewPixTransferRepository(pool *pgxpool.Pool) *PixTransferRepository {
	return &PixTransferRepository{pool: pool}
}

func (r *PixTransferRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const pixTransferColumns = `id, end_to_end_id, idempotency_key, from_wallet_id, to_pix_key, amount_cents, status, rejection_reason, version, created_at, confirmed_at, rejected_at`

// Save сохраняет перевод (create или обновление статуса) с проверкой
// version (optimistic locking) - первый терминальный переход выигрывает.
func (r *PixTransferRepository) Save(ctx context.Context, transfer *entities.PixTransfer) error {
	q := r.getQuerier(ctx)

	if transfer.Version() == 0 {
		return r.insert(ctx, q, transfer)
	}
	return r.update(ctx, q, transfer)
}

func (r *PixTransferRepository) insert(ctx context.Context, q querier, transfer *entities.PixTransfer) error {
	query := `
		INSERT INTO pix_transfers (` + pixTransferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := q.Exec(ctx, query,
		transfer.ID(),
		transfer.EndToEndID(),
		transfer.IdempotencyKey(),
		transfer.FromWalletID(),
		transfer.ToPixKey(),
		transfer.Amount().Cents(),
		string(transfer.Status()),
		transfer.RejectionReason(),
		transfer.Version(),
		transfer.CreatedAt(),
		transfer.ConfirmedAt(),
		transfer.RejectedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "pix_transfers_end_to_end_id_key") || isUniqueViolation(err, "pix_transfers_idempotency_key_key") {
			return domainErrors.NewDomainError(domainErrors.CodeDataIntegrityViolation, "a transfer with this end-to-end id or idempotency key already exists", err)
		}
		return fmt.Errorf("failed to insert pix transfer: %w", err)
	}
	return nil
}

func (r *PixTransferRepository) update(ctx context.Context, q querier, transfer *entities.PixTransfer) error {
	query := `
		UPDATE pix_transfers SET
			status = $2,
			rejection_reason = $3,
			version = $4,
			confirmed_at = $5,
			rejected_at = $6
		WHERE id = $1 AND version = $7
	`

	expectedVersion := transfer.Version() - 1

	result, err := q.Exec(ctx, query,
		transfer.ID(),
		string(transfer.Status()),
		transfer.RejectionReason(),
		transfer.Version(),
		transfer.ConfirmedAt(),
		transfer.RejectedAt(),
		expectedVersion,
	)
	if err != nil {
		if isSerializationFailure(err) {
			return domainErrors.NewConcurrencyError("PixTransfer", transfer.ID().String(), "serialization failure, retry")
		}
		return fmt.Errorf("failed to update pix transfer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError("PixTransfer", transfer.ID().String(), "transfer was modified by another transaction")
	}

	return nil
}

// FindByID загружает перевод по ID.
func (r *PixTransferRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + pixTransferColumns + ` FROM pix_transfers WHERE id = $1`
	return scanPixTransfer(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads a transfer with a pessimistic write lock. Used by
// the Atomic Transfer Service's transitionTo before calling confirm/reject.
func (r *PixTransferRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + pixTransferColumns + ` FROM pix_transfers WHERE id = $1 FOR UPDATE`
	return scanPixTransfer(q.QueryRow(ctx, query, id))
}

// FindByEndToEndID загружает перевод по его end-to-end идентификатору
// (уникален).
func (r *PixTransferRepository) FindByEndToEndID(ctx context.Context, endToEndID string) (*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + pixTransferColumns + ` FROM pix_transfers WHERE end_to_end_id = $1`
	return scanPixTransfer(q.QueryRow(ctx, query, endToEndID))
}

// FindByEndToEndIDForUpdate loads by end-to-end id with a pessimistic lock.
func (r *PixTransferRepository) FindByEndToEndIDForUpdate(ctx context.Context, endToEndID string) (*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + pixTransferColumns + ` FROM pix_transfers WHERE end_to_end_id = $1 FOR UPDATE`
	return scanPixTransfer(q.QueryRow(ctx, query, endToEndID))
}

// FindByIdempotencyKey загружает перевод по ключу идемпотентности
// (уникален) - используется для обнаружения повторных попыток отправки.
func (r *PixTransferRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + pixTransferColumns + ` FROM pix_transfers WHERE idempotency_key = $1`
	return scanPixTransfer(q.QueryRow(ctx, query, key))
}

// FindPendingOlderThan возвращает зависшие PENDING-переводы старше
// cutoffSeconds. Используется фоновым ревизором для принудительного Reject.
func (r *PixTransferRepository) FindPendingOlderThan(ctx context.Context, cutoffSeconds int, limit int) ([]*entities.PixTransfer, error) {
	q := r.getQuerier(ctx)

	cutoff := time.Now().Add(-time.Duration(cutoffSeconds) * time.Second)
	query := `
		SELECT ` + pixTransferColumns + `
		FROM pix_transfers
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := q.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale pending transfers: %w", err)
	}
	defer rows.Close()

	transfers := make([]*entities.PixTransfer, 0)
	for rows.Next() {
		t, err := scanPixTransferRow(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending transfer rows: %w", err)
	}

	return transfers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPixTransfer(row pgx.Row) (*entities.PixTransfer, error) {
	return scanPixTransferRow(row)
}

func scanPixTransferRow(row rowScanner) (*entities.PixTransfer, error) {
	var (
		id, fromWalletID                        uuid.UUID
		endToEndID, idempotencyKey, toPixKey     string
		statusStr, rejectionReason               string
		amountCents, version                     int64
		createdAt                                time.Time
		confirmedAt, rejectedAt                  *time.Time
	)

	err := row.Scan(
		&id, &endToEndID, &idempotencyKey, &fromWalletID, &toPixKey,
		&amountCents, &statusStr, &rejectionReason, &version,
		&createdAt, &confirmedAt, &rejectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan pix transfer: %w", err)
	}

	return entities.ReconstructPixTransfer(
		id, endToEndID, idempotencyKey, fromWalletID, toPixKey,
		amountCents, entities.PixTransferStatus(statusStr), rejectionReason, version,
		createdAt, confirmedAt, rejectedAt,
	), nil
}
