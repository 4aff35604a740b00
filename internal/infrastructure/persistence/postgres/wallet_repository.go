// Package postgres - WalletRepository implementation with optimistic locking.
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

// Compile-time check
var _ ports.WalletRepository = (*WalletRepository)(nil)

// WalletRepository реализует ports.WalletRepository.
//
// Особенности:
// - Optimistic Locking через version
// - Money хранится как BIGINT cents (см. valueobjects.Money)
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository создаёт новый WalletRepository.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// getQuerier возвращает querier из context или pool.
func (r *WalletRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Save сохраняет кошелёк с проверкой версии (optimistic locking).
//
// Для нового кошелька (version = 0, ещё не существует в БД) делаем INSERT;
// для существующего - UPDATE с проверкой версии.
func (r *WalletRepository) Save(ctx context.Context, wallet *entities.Wallet) error {
	q := r.getQuerier(ctx)

	if wallet.Version() == 0 {
		return r.insert(ctx, q, wallet)
	}
	return r.update(ctx, q, wallet)
}

func (r *WalletRepository) insert(ctx context.Context, q querier, wallet *entities.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, balance_cents, version, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		wallet.ID(),
		wallet.UserID(),
		wallet.BalanceCents(),
		wallet.Version(),
		string(wallet.Status()),
		wallet.CreatedAt(),
		wallet.UpdatedAt(),
	)

	if err != nil {
		if isUniqueViolation(err, "wallets_user_id_key") {
			return domainErrors.ErrDuplicateUser
		}
		return fmt.Errorf("failed to insert wallet: %w", err)
	}

	return nil
}

// update обновляет кошелёк с optimistic locking.
//
// Текущая версия в domain entity уже увеличена после операции (см.
// Wallet.Credit/Debit), поэтому ожидаемая версия в БД = текущая - 1.
func (r *WalletRepository) update(ctx context.Context, q querier, wallet *entities.Wallet) error {
	query := `
		UPDATE wallets SET
			status = $2,
			balance_cents = $3,
			version = $4,
			updated_at = $5
		WHERE id = $1 AND version = $6
	`

	expectedVersion := wallet.Version() - 1

	result, err := q.Exec(ctx, query,
		wallet.ID(),
		string(wallet.Status()),
		wallet.BalanceCents(),
		wallet.Version(),
		wallet.UpdatedAt(),
		expectedVersion,
	)

	if err != nil {
		if isSerializationFailure(err) {
			return domainErrors.NewConcurrencyError("Wallet", wallet.ID().String(), "serialization failure, retry")
		}
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domainErrors.NewConcurrencyError(
			"Wallet",
			wallet.ID().String(),
			fmt.Sprintf("wallet was modified by another transaction (expected version: %d)", expectedVersion),
		)
	}

	return nil
}

const walletColumns = `id, user_id, balance_cents, version, status, created_at, updated_at`

// FindByID загружает кошелёк по ID без блокировки.
func (r *WalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return r.scanWallet(q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate загружает кошелёк и берёт pessimistic row lock
// (SELECT ... FOR UPDATE). Вызывается внутри REQUIRES_NEW SERIALIZABLE
// транзакции Wallet Engine, чтобы сериализовать конкурентные
// дебеты/кредиты одного кошелька.
func (r *WalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return r.scanWallet(q.QueryRow(ctx, query, id))
}

// FindByUserID находит кошелёк пользователя. У пользователя ровно один
// кошелёк.
func (r *WalletRepository) FindByUserID(ctx context.Context, userID string) (*entities.Wallet, error) {
	q := r.getQuerier(ctx)
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return r.scanWallet(q.QueryRow(ctx, query, userID))
}

// ExistsByUserID проверяет существование без загрузки всей entity.
func (r *WalletRepository) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	q := r.getQuerier(ctx)
	query := `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)`

	var exists bool
	if err := q.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	return exists, nil
}

// List возвращает кошельки с фильтрацией и пагинацией.
func (r *WalletRepository) List(ctx context.Context, filter ports.WalletFilter, offset, limit int) ([]*entities.Wallet, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(*filter.Status))
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC OFFSET $%d LIMIT $%d", argNum, argNum+1)
	args = append(args, offset, limit)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	return r.scanWallets(rows)
}

// scanWallet сканирует одну строку в Wallet entity.
func (r *WalletRepository) scanWallet(row pgx.Row) (*entities.Wallet, error) {
	var (
		id                    uuid.UUID
		userID, statusStr     string
		balanceCents, version int64
		createdAt, updatedAt  time.Time
	)

	err := row.Scan(&id, &userID, &balanceCents, &version, &statusStr, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	return entities.ReconstructWallet(
		id,
		userID,
		balanceCents,
		version,
		entities.WalletStatus(statusStr),
		createdAt,
		updatedAt,
	), nil
}

// scanWallets сканирует несколько строк в список Wallet entities.
func (r *WalletRepository) scanWallets(rows pgx.Rows) ([]*entities.Wallet, error) {
	wallets := make([]*entities.Wallet, 0)

	for rows.Next() {
		var (
			id                    uuid.UUID
			userID, statusStr     string
			balanceCents, version int64
			createdAt, updatedAt  time.Time
		)

		if err := rows.Scan(&id, &userID, &balanceCents, &version, &statusStr, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet row: %w", err)
		}

		wallets = append(wallets, entities.ReconstructWallet(
			id, userID, balanceCents, version, entities.WalletStatus(statusStr), createdAt, updatedAt,
		))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}

	return wallets, nil
}
