// Package postgres - PixKeyRepository implementation.
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
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

var _ ports.PixKeyRepository = (*PixKeyRepository)(nil)

// PixKeyRepository реализует ports.PixKeyRepository.
type PixKeyRepository struct {
	pool *pgxpool.Pool
}

// NewPixKeyRepository создаёт новый PixKeyRepository.
func NewPixKeyRepository(pool *pgxpool.Pool) *PixKeyRepository {
	return &PixKeyRepository{pool: pool}
}

func (r *PixKeyRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const pixKeyColumns = `id, key_value, key_type, wallet_id, is_active, created_at`

// Save сохраняет ключ (create or update, напр. Deactivate).
func (r *PixKeyRepository) Save(ctx context.Context, key *entities.PixKey) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO pix_keys (` + pixKeyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET is_active = EXCLUDED.is_active
	`

	_, err := q.Exec(ctx, query,
		key.ID(),
		key.KeyValue(),
		string(key.KeyType()),
		key.WalletID(),
		key.IsActive(),
		key.CreatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err, "pix_keys_key_value_key") {
			return domainErrors.NewBusinessRuleViolation(
				"PIX_KEY_ALREADY_REGISTERED",
				"this Pix key value is already registered to a wallet",
				map[string]interface{}{"keyValue": key.KeyValue()},
			)
		}
		if isForeignKeyViolation(err) {
			return domainErrors.ErrWalletNotFound
		}
		return fmt.Errorf("failed to save pix key: %w", err)
	}
	return nil
}

// FindByValue находит активный ключ по его значению. Используется для
// разрешения получателя перевода.
func (r *PixKeyRepository) FindByValue(ctx context.Context, keyValue string) (*entities.PixKey, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + pixKeyColumns + ` FROM pix_keys WHERE key_value = $1 AND is_active = true`

	return scanPixKey(q.QueryRow(ctx, query, keyValue))
}

// FindByWalletID возвращает все ключи, привязанные к кошельку.
func (r *PixKeyRepository) FindByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PixKey, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + pixKeyColumns + ` FROM pix_keys WHERE wallet_id = $1 ORDER BY created_at ASC`

	rows, err := q.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to find pix keys by wallet: %w", err)
	}
	defer rows.Close()

	keys := make([]*entities.PixKey, 0)
	for rows.Next() {
		var (
			id, walletRowID uuid.UUID
			keyValue, keyType string
			isActive          bool
			createdAt         time.Time
		)
		if err := rows.Scan(&id, &keyValue, &keyType, &walletRowID, &isActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan pix key row: %w", err)
		}
		keys = append(keys, entities.ReconstructPixKey(id, keyValue, valueobjects.PixKeyType(keyType), walletRowID, isActive, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pix key rows: %w", err)
	}

	return keys, nil
}

// ExistsByValue проверяет уникальность значения ключа перед созданием.
func (r *PixKeyRepository) ExistsByValue(ctx context.Context, keyValue string) (bool, error) {
	q := r.getQuerier(ctx)

	query := `SELECT EXISTS(SELECT 1 FROM pix_keys WHERE key_value = $1)`

	var exists bool
	if err := q.QueryRow(ctx, query, keyValue).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pix key existence: %w", err)
	}
	return exists, nil
}

func scanPixKey(row pgx.Row) (*entities.PixKey, error) {
	var (
		id, walletID      uuid.UUID
		keyValue, keyType string
		isActive          bool
		createdAt         time.Time
	)

	err := row.Scan(&id, &keyValue, &keyType, &walletID, &isActive, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan pix key: %w", err)
	}

	return entities.ReconstructPixKey(id, keyValue, valueobjects.PixKeyType(keyType), walletID, isActive, createdAt), nil
}
