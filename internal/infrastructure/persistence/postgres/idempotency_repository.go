// Package postgres - IdempotencyRepository implementation. The unique
// constraint on (scope, key) is the ultimate arbiter of "first processing
// wins"; the application-layer cache and lease are pure optimizations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixwallet/ledger/internal/application/ports"
	domainErrors "github.com/pixwallet/ledger/internal/domain/errors"
)

var _ ports.IdempotencyRepository = (*IdempotencyRepository)(nil)

// IdempotencyRepository реализует ports.IdempotencyRepository.
//
// Key хранится как "scope:key" в одной колонке с уникальным индексом -
// так сохраняется единое поле Key в ports.IdempotencyRecord без
// дополнительного столбца scope на уровне application layer.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository создаёт новый IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Insert пытается атомарно вставить новую запись. Возвращает
// ErrEntityAlreadyExists, если ключ уже занят (конкурентный первый
// запрос уже выиграл гонку).
func (r *IdempotencyRepository) Insert(ctx context.Context, record ports.IdempotencyRecord) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO idempotency_records (key, request_hash, response_status, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.Exec(ctx, query,
		record.Key,
		record.RequestHash,
		record.ResponseStatus,
		record.ResponseBody,
		time.Unix(record.CreatedAt, 0),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domainErrors.ErrEntityAlreadyExists
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// FindByKey ищет существующую запись.
func (r *IdempotencyRepository) FindByKey(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	q := r.getQuerier(ctx)

	query := `SELECT key, request_hash, response_status, response_body, created_at FROM idempotency_records WHERE key = $1`

	var (
		rowKey, requestHash string
		responseStatus      int
		responseBody        []byte
		createdAt            time.Time
	)

	err := q.QueryRow(ctx, query, key).Scan(&rowKey, &requestHash, &responseStatus, &responseBody, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}

	return &ports.IdempotencyRecord{
		Key:            rowKey,
		RequestHash:    requestHash,
		ResponseStatus: responseStatus,
		ResponseBody:   responseBody,
		CreatedAt:      createdAt.Unix(),
	}, nil
}

// DeleteOlderThan удаляет записи старше retention-порога. Вызывается
// фоновой сборкой мусора.
func (r *IdempotencyRepository) DeleteOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error) {
	q := r.getQuerier(ctx)

	query := `DELETE FROM idempotency_records WHERE created_at < $1`

	tag, err := q.Exec(ctx, query, time.Unix(cutoffSeconds, 0))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
