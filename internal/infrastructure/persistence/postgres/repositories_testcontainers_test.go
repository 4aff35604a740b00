// Package postgres - интеграционные тесты для PostgreSQL repositories с testcontainers.
//
// Запуск тестов:
//
//	go test ./internal/infrastructure/persistence/postgres/...
//
// Требования:
//   - Docker Desktop запущен
//   - testcontainers-go установлен
package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/domain/entities"
	domerrors "github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// ============================================
// Test Helpers
// ============================================

// testContainer хранит контейнер и pool для тестов.
type testContainer struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

// Shared container for all tests (performance optimization)
var sharedTestContainer *testContainer

func migrationScripts() []string {
	migrationsPath := filepath.Join("..", "..", "..", "..", "migrations")
	return []string{
		filepath.Join(migrationsPath, "000001_create_wallets.up.sql"),
		filepath.Join(migrationsPath, "000002_create_ledger_entries.up.sql"),
		filepath.Join(migrationsPath, "000003_create_pix_keys.up.sql"),
		filepath.Join(migrationsPath, "000004_create_pix_transfers.up.sql"),
		filepath.Join(migrationsPath, "000005_create_idempotency_records.up.sql"),
		filepath.Join(migrationsPath, "000006_create_outbox.up.sql"),
	}
}

// setupSharedTestDB создаёт или возвращает переиспользуемый PostgreSQL контейнер.
// Оптимизация: один контейнер для всех тестов вместо создания нового для каждого.
func setupSharedTestDB(t *testing.T) *testContainer {
	if sharedTestContainer != nil {
		cleanupTables(t, sharedTestContainer.pool)
		return sharedTestContainer
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(migrationScripts()...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	err = pool.Ping(ctx)
	require.NoError(t, err)

	sharedTestContainer = &testContainer{
		container: container,
		pool:      pool,
	}

	return sharedTestContainer
}

// cleanupTables очищает все таблицы для следующего теста.
func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	tables := []string{"outbox", "idempotency_records", "pix_transfers", "pix_keys", "ledger_entries", "wallets"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}

// ============================================
// WalletRepository Tests
// ============================================

func TestWalletRepository_Integration_Save(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("SaveNewWallet", func(t *testing.T) {
		wallet, err := entities.NewWallet("user-" + uuid.New().String())
		require.NoError(t, err)

		err = walletRepo.Save(ctx, wallet)
		assert.NoError(t, err)

		loaded, err := walletRepo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, wallet.ID(), loaded.ID())
		assert.Equal(t, wallet.UserID(), loaded.UserID())
		assert.Equal(t, int64(0), loaded.BalanceCents())
	})

	t.Run("DuplicateUser", func(t *testing.T) {
		userID := "dup-" + uuid.New().String()

		wallet1, _ := entities.NewWallet(userID)
		require.NoError(t, walletRepo.Save(ctx, wallet1))

		wallet2, _ := entities.NewWallet(userID)
		err := walletRepo.Save(ctx, wallet2)

		assert.Error(t, err)
		assert.ErrorIs(t, err, domerrors.ErrDuplicateUser)
	})

	t.Run("OptimisticLockingConflict", func(t *testing.T) {
		wallet, _ := entities.NewWallet("locking-" + uuid.New().String())
		require.NoError(t, walletRepo.Save(ctx, wallet))

		wallet1, _ := walletRepo.FindByID(ctx, wallet.ID())
		wallet2, _ := walletRepo.FindByID(ctx, wallet.ID())

		require.NoError(t, wallet1.Credit(valueobjects.FromMinorUnits(100)))
		require.NoError(t, walletRepo.Save(ctx, wallet1))

		require.NoError(t, wallet2.Credit(valueobjects.FromMinorUnits(200)))
		err := walletRepo.Save(ctx, wallet2)

		assert.Error(t, err)
		assert.True(t, domerrors.IsConcurrencyError(err))
	})
}

func TestWalletRepository_Integration_FindByUserID(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	userID := "find-" + uuid.New().String()
	wallet, _ := entities.NewWallet(userID)
	require.NoError(t, walletRepo.Save(ctx, wallet))

	found, err := walletRepo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID(), found.ID())

	_, err = walletRepo.FindByUserID(ctx, "nonexistent-"+uuid.New().String())
	assert.True(t, domerrors.IsNotFound(err))
}

func TestWalletRepository_Integration_FindByIDForUpdate(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	wallet, _ := entities.NewWallet("lock-" + uuid.New().String())
	require.NoError(t, walletRepo.Save(ctx, wallet))

	uow := NewUnitOfWork(tc.pool)
	err := uow.Execute(ctx, func(txCtx context.Context) error {
		locked, err := walletRepo.FindByIDForUpdate(txCtx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, wallet.ID(), locked.ID())
		return nil
	})
	require.NoError(t, err)
}

// ============================================
// LedgerRepository Tests
// ============================================

func TestLedgerRepository_Integration_AppendAndSum(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	ledgerRepo := NewLedgerRepository(tc.pool)
	ctx := context.Background()

	wallet, _ := entities.NewWallet("ledger-" + uuid.New().String())
	require.NoError(t, walletRepo.Save(ctx, wallet))

	entry1, err := entities.NewLedgerEntry(wallet.ID(), entities.LedgerEntryCredit, valueobjects.FromMinorUnits(10000), "deposit", "tx-1", valueobjects.FromMinorUnits(10000))
	require.NoError(t, err)
	require.NoError(t, ledgerRepo.Append(ctx, entry1))

	entry2, err := entities.NewLedgerEntry(wallet.ID(), entities.LedgerEntryDebit, valueobjects.FromMinorUnits(-3000), "withdrawal", "tx-2", valueobjects.FromMinorUnits(7000))
	require.NoError(t, err)
	require.NoError(t, ledgerRepo.Append(ctx, entry2))

	entries, err := ledgerRepo.FindByWalletID(ctx, wallet.ID(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	sum, err := ledgerRepo.SumBefore(ctx, wallet.ID(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(7000), sum)
}

// ============================================
// PixKeyRepository Tests
// ============================================

func TestPixKeyRepository_Integration_SaveAndResolve(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	pixKeyRepo := NewPixKeyRepository(tc.pool)
	ctx := context.Background()

	wallet, _ := entities.NewWallet("pixkey-" + uuid.New().String())
	require.NoError(t, walletRepo.Save(ctx, wallet))

	keyValue := "user-" + uuid.New().String() + "@example.com"
	pixKey, err := entities.NewPixKey(keyValue, valueobjects.PixKeyEmail, wallet.ID())
	require.NoError(t, err)
	require.NoError(t, pixKeyRepo.Save(ctx, pixKey))

	found, err := pixKeyRepo.FindByValue(ctx, keyValue)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID(), found.WalletID())

	exists, err := pixKeyRepo.ExistsByValue(ctx, keyValue)
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("DeactivatedKeyNotResolvable", func(t *testing.T) {
		pixKey.Deactivate()
		require.NoError(t, pixKeyRepo.Save(ctx, pixKey))

		_, err := pixKeyRepo.FindByValue(ctx, keyValue)
		assert.True(t, domerrors.IsNotFound(err))
	})
}

// ============================================
// PixTransferRepository Tests
// ============================================

func TestPixTransferRepository_Integration_SaveAndTransition(t *testing.T) {
	tc := setupSharedTestDB(t)

	walletRepo := NewWalletRepository(tc.pool)
	transferRepo := NewPixTransferRepository(tc.pool)
	ctx := context.Background()

	wallet, _ := entities.NewWallet("transfer-" + uuid.New().String())
	require.NoError(t, walletRepo.Save(ctx, wallet))

	endToEndID := "E" + uuid.New().String()[:18]
	idemKey := uuid.New().String()
	transfer, err := entities.NewPixTransfer(endToEndID, idemKey, wallet.ID(), "dest@example.com", valueobjects.FromMinorUnits(5000))
	require.NoError(t, err)
	require.NoError(t, transferRepo.Save(ctx, transfer))

	found, err := transferRepo.FindByEndToEndID(ctx, endToEndID)
	require.NoError(t, err)
	assert.Equal(t, entities.PixTransferPending, found.Status())

	require.NoError(t, found.Confirm())
	require.NoError(t, transferRepo.Save(ctx, found))

	reloaded, err := transferRepo.FindByID(ctx, transfer.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.PixTransferConfirmed, reloaded.Status())
	assert.NotNil(t, reloaded.ConfirmedAt())

	t.Run("DuplicateEndToEndID", func(t *testing.T) {
		dup, _ := entities.NewPixTransfer(endToEndID, uuid.New().String(), wallet.ID(), "dest@example.com", valueobjects.FromMinorUnits(1000))
		err := transferRepo.Save(ctx, dup)
		assert.Error(t, err)
	})
}

// ============================================
// IdempotencyRepository Tests
// ============================================

func TestIdempotencyRepository_Integration_InsertAndFind(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewIdempotencyRepository(tc.pool)
	ctx := context.Background()

	key := "transfer:" + uuid.New().String()
	record := ports.IdempotencyRecord{
		Key:            key,
		RequestHash:    "hash-1",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"id":"x"}`),
		CreatedAt:      time.Now().Unix(),
	}

	require.NoError(t, repo.Insert(ctx, record))

	found, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, record.RequestHash, found.RequestHash)
	assert.Equal(t, record.ResponseStatus, found.ResponseStatus)

	t.Run("DuplicateInsert", func(t *testing.T) {
		err := repo.Insert(ctx, record)
		assert.Error(t, err)
		assert.True(t, domerrors.IsAlreadyExists(err))
	})
}
