// Package postgres - LedgerRepository implementation. Entries are
// immutable: Append is the only write operation.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
)

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

// LedgerRepository реализует ports.LedgerRepository.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository создаёт новый LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) getQuerier(ctx context.Context) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ledgerColumns = `id, wallet_id, signed_amount_cents, entry_type, description, transaction_id, balance_after_cents, created_at`

// Append сохраняет новую неизменяемую запись.
func (r *LedgerRepository) Append(ctx context.Context, entry *entities.LedgerEntry) error {
	q := r.getQuerier(ctx)

	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(ctx, query,
		entry.ID(),
		entry.WalletID(),
		entry.SignedAmount().Cents(),
		string(entry.Type()),
		entry.Description(),
		entry.TransactionID(),
		entry.BalanceAfter().Cents(),
		entry.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// FindByWalletID возвращает записи кошелька в хронологическом порядке,
// постранично.
func (r *LedgerRepository) FindByWalletID(ctx context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error) {
	q := r.getQuerier(ctx)

	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at ASC
		OFFSET $2 LIMIT $3
	`

	rows, err := q.Query(ctx, query, walletID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries by wallet: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// FindByTransactionID возвращает все записи, связанные с одной
// транзакцией (перевод затрагивает два кошелька - два entries).
func (r *LedgerRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*entities.LedgerEntry, error) {
	q := r.getQuerier(ctx)

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE transaction_id = $1 ORDER BY created_at ASC`

	rows, err := q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries by transaction: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// SumBefore returns the sum of signed amounts for walletID with createdAt
// <= at. Backs Wallet Engine's balanceAt historical replay.
func (r *LedgerRepository) SumBefore(ctx context.Context, walletID uuid.UUID, at time.Time) (int64, error) {
	q := r.getQuerier(ctx)

	query := `SELECT COALESCE(SUM(signed_amount_cents), 0) FROM ledger_entries WHERE wallet_id = $1 AND created_at <= $2`

	var sum int64
	if err := q.QueryRow(ctx, query, walletID, at).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

func scanLedgerEntries(rows pgx.Rows) ([]*entities.LedgerEntry, error) {
	entries := make([]*entities.LedgerEntry, 0)

	for rows.Next() {
		var (
			id, walletID                      uuid.UUID
			signedAmountCents, balanceAfter   int64
			entryType, description, txID      string
			createdAt                         time.Time
		)

		if err := rows.Scan(&id, &walletID, &signedAmountCents, &entryType, &description, &txID, &balanceAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}

		entries = append(entries, entities.ReconstructLedgerEntry(
			id, walletID, signedAmountCents, entities.LedgerEntryType(entryType), description, txID, balanceAfter, createdAt,
		))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}

	return entries, nil
}
