// Package container - Dependency Injection container for the application.
//
// Container управляет жизненным циклом всех зависимостей:
// - Создание (lazy initialization)
// - Доступ (доступ через getters)
// - Закрытие (cleanup)
//
// Pattern: Composition Root
// - Все зависимости собираются в одном месте
// - Легко тестировать
// - Легко заменять реализации
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/pixwallet/ledger/internal/adapters/http"
	"github.com/pixwallet/ledger/internal/adapters/http/middleware"
	"github.com/pixwallet/ledger/internal/application/idempotency"
	"github.com/pixwallet/ledger/internal/application/pixtransfer"
	"github.com/pixwallet/ledger/internal/application/ports"
	"github.com/pixwallet/ledger/internal/application/usecases/wallet"
	"github.com/pixwallet/ledger/internal/application/walletengine"
	"github.com/pixwallet/ledger/internal/config"
	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/infrastructure/cache"
	"github.com/pixwallet/ledger/internal/infrastructure/eventbus"
	"github.com/pixwallet/ledger/internal/infrastructure/persistence/postgres"
	"github.com/pixwallet/ledger/internal/pkg/tracing"
)

// relayInterval is how often the OutboxRelay polls for unpublished
// events. Not exposed in config: durability comes from the outbox table
// regardless of how often the relay wakes up.
const relayInterval = 2 * time.Second

// idempotencyGCInterval is how often expired idempotency cache entries
// and database rows are purged.
const idempotencyGCInterval = 1 * time.Hour

// reconcileInterval and pendingTransferTimeout drive the stale-pending
// reconciler: a transfer stuck in PENDING this long (debit applied, but
// no CONFIRMED/REJECTED webhook ever arrived) is force-rejected so its
// debit gets refunded instead of holding funds forever.
const (
	reconcileInterval     = 5 * time.Minute
	pendingTransferCutoff = 30 * time.Minute
	reconcileBatchSize    = 100
)

// ============================================
// Container
// ============================================

// Container - DI контейнер приложения.
type Container struct {
	config *config.Config
	logger *slog.Logger

	// Infrastructure
	pool        *pgxpool.Pool
	natsConn    *nats.Conn
	redisClient *redis.Client

	// Outbox relay: drains the transactional outbox onto NATS in its own
	// goroutine, canceled on Shutdown.
	outboxRelay *eventbus.OutboxRelay
	relayCancel context.CancelFunc
	tracingStop tracing.ShutdownFunc

	// Background jobs
	backgroundCancel context.CancelFunc

	// Repositories
	walletRepo      ports.WalletRepository
	ledgerRepo      ports.LedgerRepository
	pixKeyRepo      ports.PixKeyRepository
	pixTransferRepo ports.PixTransferRepository
	idempotencyRepo ports.IdempotencyRepository
	outboxRepo      *postgres.OutboxRepository

	// Unit of Work
	uow        ports.UnitOfWork
	uowFactory ports.UnitOfWorkFactory

	// Event Publisher (OutboxRepository implements it)
	eventPublisher ports.EventPublisher

	// Clock
	clock ports.Clock

	// Core services
	engine          *walletengine.Engine
	idempotencySvc  *idempotency.Service
	atomicService   *pixtransfer.AtomicService
	orchestrator    *pixtransfer.Orchestrator

	// Use Cases
	createWalletUC  *wallet.CreateWalletUseCase
	createPixKeyUC  *wallet.CreatePixKeyUseCase
	depositUC       *wallet.DepositUseCase
	withdrawUC      *wallet.WithdrawUseCase
	getBalanceUC    *wallet.GetBalanceUseCase
	getWalletUC     *wallet.GetWalletUseCase
	listWalletsUC   *wallet.ListWalletsUseCase

	// HTTP
	httpServer *http.Server
}

// New создаёт новый контейнер с заданной конфигурацией.
func New(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// ============================================
// Initialization
// ============================================

// Initialize инициализирует все зависимости.
func (c *Container) Initialize(ctx context.Context) error {
	c.logger = c.initLogger()
	c.logger.Info("Initializing application container...")

	// 0. Tracing (no-op TracerProvider when disabled)
	stop, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      c.config.Otel.Enabled,
		ServiceName:  c.config.Otel.ServiceName,
		OTLPEndpoint: c.config.Otel.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.tracingStop = stop

	// 1. Database
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database connected")

	// 2. Repositories
	c.initRepositories()
	c.logger.Info("Repositories initialized")

	// 3. Domain services (Wallet Engine, Idempotency, Atomic Transfer Service, Orchestrator)
	c.initServices()
	c.logger.Info("Domain services initialized")

	// 4. Outbox relay (NATS connection is best-effort; the outbox table
	// is what makes delivery durable, not the connection)
	c.initEventBus()

	// 4b. Background jobs: idempotency record GC, stale-pending reconciler
	c.initBackgroundJobs()

	// 5. Use Cases
	c.initUseCases()
	c.logger.Info("Use cases initialized")

	// 6. HTTP Server
	c.initHTTPServer()
	c.logger.Info("HTTP server initialized")

	c.logger.Info("Container initialization complete")
	return nil
}

// initEventBus connects to NATS and starts the outbox relay goroutine.
// A failed NATS connection is logged and no relay is started; rows stay
// pending in the outbox until a later start connects and its relay
// publishes them.
func (c *Container) initEventBus() {
	conn, err := eventbus.Connect(c.config.NATS.URL)
	if err != nil {
		c.logger.Warn("NATS connection failed, outbox relay not started; events stay pending in the outbox", "error", err)
		return
	}
	c.natsConn = conn

	publisher := eventbus.NewNATSPublisher(conn, c.config.NATS.SubjectPrefix)
	c.outboxRelay = eventbus.NewOutboxRelay(c.outboxRepo, publisher, c.logger, relayInterval)

	relayCtx, cancel := context.WithCancel(context.Background())
	c.relayCancel = cancel
	go c.outboxRelay.Run(relayCtx)
}

// initBackgroundJobs starts the idempotency record GC and the
// stale-pending-transfer reconciler, each on its own ticker, canceled
// together on Shutdown.
func (c *Container) initBackgroundJobs() {
	ctx, cancel := context.WithCancel(context.Background())
	c.backgroundCancel = cancel

	go c.runIdempotencyGC(ctx)
	go c.runPendingTransferReconciler(ctx)
}

// runIdempotencyGC periodically purges expired idempotency records, per
// §4.3's cleanupExpired.
func (c *Container) runIdempotencyGC(ctx context.Context) {
	ticker := time.NewTicker(idempotencyGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.idempotencySvc.CleanupExpired(ctx)
			if err != nil {
				c.logger.Error("idempotency GC failed", "error", err)
				continue
			}
			if n > 0 {
				c.logger.Info("idempotency GC removed expired records", "count", n)
			}
		}
	}
}

// runPendingTransferReconciler force-rejects transfers that have been
// PENDING for longer than pendingTransferCutoff: the debit already
// happened, but no CONFIRMED/REJECTED webhook ever arrived, so the
// funds would otherwise be held indefinitely. Rejecting runs through
// AtomicService.TransitionTo, the same path a REJECTED webhook takes,
// so the refund happens exactly once under the usual CAS discipline.
func (c *Container) runPendingTransferReconciler(ctx context.Context) {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reconcilePendingTransfersOnce(ctx)
		}
	}
}

func (c *Container) reconcilePendingTransfersOnce(ctx context.Context) {
	stale, err := c.pixTransferRepo.FindPendingOlderThan(ctx, int(pendingTransferCutoff.Seconds()), reconcileBatchSize)
	if err != nil {
		c.logger.Error("pending transfer reconciler: failed to load stale transfers", "error", err)
		return
	}

	for _, transfer := range stale {
		changed, err := c.atomicService.TransitionTo(ctx, transfer.EndToEndID(), entities.PixTransferRejected, "timed out waiting for confirmation")
		if err != nil {
			c.logger.Error("pending transfer reconciler: failed to reject stale transfer", "endToEndId", transfer.EndToEndID(), "error", err)
			continue
		}
		if changed {
			c.logger.Warn("pending transfer reconciler: force-rejected stale transfer", "endToEndId", transfer.EndToEndID())
		}
	}
}

// initLogger инициализирует логгер.
func (c *Container) initLogger() *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch c.config.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: c.config.App.Debug,
	}

	if c.config.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// initDatabase инициализирует подключение к БД.
func (c *Container) initDatabase(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(c.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = c.config.Database.MaxConnections
	poolConfig.MinConns = c.config.Database.MinConnections
	poolConfig.MaxConnLifetime = c.config.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.config.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.pool = pool
	return nil
}

// initRepositories инициализирует репозитории.
func (c *Container) initRepositories() {
	c.walletRepo = postgres.NewWalletRepository(c.pool)
	c.ledgerRepo = postgres.NewLedgerRepository(c.pool)
	c.pixKeyRepo = postgres.NewPixKeyRepository(c.pool)
	c.pixTransferRepo = postgres.NewPixTransferRepository(c.pool)
	c.idempotencyRepo = postgres.NewIdempotencyRepository(c.pool)
	c.outboxRepo = postgres.NewOutboxRepository(c.pool)

	// Unit of Work
	c.uow = postgres.NewUnitOfWork(c.pool)
	c.uowFactory = postgres.NewUnitOfWorkFactory(c.pool)

	// Event Publisher (OutboxRepository реализует интерфейс)
	c.eventPublisher = c.outboxRepo

	c.clock = ports.SystemClock{}
}

// initServices инициализирует доменные сервисы: Wallet Engine,
// Idempotency Service, Atomic Transfer Service и Transfer Orchestrator.
func (c *Container) initServices() {
	ledgerRepoConcrete := c.ledgerRepo.(*postgres.LedgerRepository)

	engineCfg := walletengine.Config{
		LeaseTimeout:         c.config.WalletEngine.LeaseTimeout,
		TransferLeaseTimeout: c.config.WalletEngine.TransferLeaseTimeout,
		MaxRetries:           c.config.WalletEngine.MaxRetries,
		RetryBackoff:         c.config.WalletEngine.RetryBackoff,
		MaxWalletLocks:       c.config.WalletEngine.MaxWalletLocks,
	}
	c.engine = walletengine.NewEngine(c.walletRepo, c.ledgerRepo, ledgerRepoConcrete, c.uowFactory, engineCfg)

	idempotencyCfg := idempotency.Config{
		RecordTTL:    c.config.Idempotency.RecordTTL,
		CacheTTL:     c.config.Idempotency.CacheTTL,
		CacheMaxSize: c.config.Idempotency.CacheMaxSize,
		LockMaxSize:  c.config.Idempotency.LockMaxSize,
	}
	c.idempotencySvc = idempotency.NewService(c.idempotencyRepo, c.uowFactory, c.clock, idempotencyCfg)

	stateCfg := pixtransfer.StateConfig{
		StateTTL:          c.config.Transfer.StateTTL,
		CleanupInterval:   c.config.Transfer.CleanupInterval,
		MaxTransferStates: c.config.Transfer.MaxTransferStates,
	}
	c.atomicService = pixtransfer.NewAtomicService(
		c.pixTransferRepo,
		c.pixKeyRepo,
		c.eventPublisher,
		c.uowFactory,
		c.engine,
		stateCfg,
	)

	c.orchestrator = pixtransfer.NewOrchestrator(
		c.idempotencySvc,
		c.pixKeyRepo,
		c.atomicService,
		c.clock,
		c.logger,
	)
}

// initUseCases инициализирует use cases.
func (c *Container) initUseCases() {
	c.createWalletUC = wallet.NewCreateWalletUseCase(c.walletRepo, c.eventPublisher, c.uow)
	c.createPixKeyUC = wallet.NewCreatePixKeyUseCase(c.walletRepo, c.pixKeyRepo, c.uow)
	c.depositUC = wallet.NewDepositUseCase(c.engine, c.eventPublisher, c.logger)
	c.withdrawUC = wallet.NewWithdrawUseCase(c.engine, c.eventPublisher, c.logger)
	c.getBalanceUC = wallet.NewGetBalanceUseCase(c.engine, c.clock)
	c.getWalletUC = wallet.NewGetWalletUseCase(c.walletRepo)
	c.listWalletsUC = wallet.NewListWalletsUseCase(c.walletRepo)
}

// initHTTPServer инициализирует HTTP сервер.
func (c *Container) initHTTPServer() {
	// Token validator
	var tokenValidator func(token string) (*middleware.AuthClaims, error)
	if c.config.Auth.EnableMockAuth {
		tokenValidator = middleware.MockTokenValidator
	}
	// В production здесь будет реальный JWT validator

	// Distributed rate limiting: when configured for Redis, every API
	// instance shares the same counters instead of the in-process
	// fixed-window map.
	var limiter middleware.Limiter
	if c.config.RateLimit.Backend == "redis" {
		c.redisClient = cache.NewClient(c.config.Redis.Addr, c.config.Redis.Password, c.config.Redis.DB)
		limiter = cache.NewRedisRateLimiter(c.redisClient, c.config.RateLimit.RequestsPerMinute, time.Minute)
	}

	// Router Config
	routerConfig := &http.RouterConfig{
		Logger:                c.logger,
		Pool:                  c.pool,
		Version:               c.config.App.Version,
		BuildTime:             c.config.App.BuildTime,
		Environment:           c.config.App.Environment,
		ServiceName:           c.config.Otel.ServiceName,
		AllowedOrigins:        c.config.CORS.AllowedOrigins,
		AuthTokenValidator:    tokenValidator,
		RateLimiter:           limiter,
		GlobalRateLimit:       c.config.RateLimit.RequestsPerMinute,
		GlobalRateLimitWindow: time.Minute,
	}

	// Build Router
	router := http.NewRouterBuilder(routerConfig).
		WithWalletUseCases(&http.WalletUseCases{
			CreateWallet: c.createWalletUC,
			Deposit:      c.depositUC,
			Withdraw:     c.withdrawUC,
			CreatePixKey: c.createPixKeyUC,
			GetBalance:   c.getBalanceUC,
			GetWallet:    c.getWalletUC,
			ListWallets:  c.listWalletsUC,
		}).
		WithPixUseCases(&http.PixUseCases{
			Orchestrator: c.orchestrator,
		}).
		Build()

	// Server Config
	serverConfig := &http.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            fmt.Sprintf("%d", c.config.Server.Port),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}

	c.httpServer = http.NewServer(serverConfig, router)
}

// ============================================
// Getters
// ============================================

// Config возвращает конфигурацию.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger возвращает логгер.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Pool возвращает пул соединений к БД.
func (c *Container) Pool() *pgxpool.Pool {
	return c.pool
}

// HTTPServer возвращает HTTP сервер.
func (c *Container) HTTPServer() *http.Server {
	return c.httpServer
}

// ============================================
// Repository Getters
// ============================================

// WalletRepository возвращает репозиторий кошельков.
func (c *Container) WalletRepository() ports.WalletRepository {
	return c.walletRepo
}

// LedgerRepository возвращает репозиторий ledger-записей.
func (c *Container) LedgerRepository() ports.LedgerRepository {
	return c.ledgerRepo
}

// PixKeyRepository возвращает репозиторий Pix-ключей.
func (c *Container) PixKeyRepository() ports.PixKeyRepository {
	return c.pixKeyRepo
}

// PixTransferRepository возвращает репозиторий Pix-переводов.
func (c *Container) PixTransferRepository() ports.PixTransferRepository {
	return c.pixTransferRepo
}

// UnitOfWork возвращает Unit of Work.
func (c *Container) UnitOfWork() ports.UnitOfWork {
	return c.uow
}

// ============================================
// Service Getters
// ============================================

// WalletEngine возвращает Wallet Engine.
func (c *Container) WalletEngine() *walletengine.Engine {
	return c.engine
}

// TransferOrchestrator возвращает Transfer Orchestrator.
func (c *Container) TransferOrchestrator() *pixtransfer.Orchestrator {
	return c.orchestrator
}

// ============================================
// Use Case Getters
// ============================================

// CreateWalletUseCase возвращает use case создания кошелька.
func (c *Container) CreateWalletUseCase() *wallet.CreateWalletUseCase {
	return c.createWalletUC
}

// CreatePixKeyUseCase возвращает use case привязки Pix-ключа.
func (c *Container) CreatePixKeyUseCase() *wallet.CreatePixKeyUseCase {
	return c.createPixKeyUC
}

// DepositUseCase возвращает use case пополнения кошелька.
func (c *Container) DepositUseCase() *wallet.DepositUseCase {
	return c.depositUC
}

// WithdrawUseCase возвращает use case списания с кошелька.
func (c *Container) WithdrawUseCase() *wallet.WithdrawUseCase {
	return c.withdrawUC
}

// GetBalanceUseCase возвращает use case получения баланса.
func (c *Container) GetBalanceUseCase() *wallet.GetBalanceUseCase {
	return c.getBalanceUC
}

// GetWalletUseCase возвращает use case получения кошелька.
func (c *Container) GetWalletUseCase() *wallet.GetWalletUseCase {
	return c.getWalletUC
}

// ListWalletsUseCase возвращает use case получения списка кошельков.
func (c *Container) ListWalletsUseCase() *wallet.ListWalletsUseCase {
	return c.listWalletsUC
}

// ============================================
// Shutdown
// ============================================

// Shutdown выполняет graceful shutdown всех компонентов.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	var errs []error

	// 1. HTTP Server
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// 2. Background jobs and outbox relay
	if c.backgroundCancel != nil {
		c.backgroundCancel()
	}
	if c.relayCancel != nil {
		c.relayCancel()
	}
	if c.natsConn != nil {
		c.natsConn.Close()
	}

	// 3. Redis
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis client close: %w", err))
		}
	}

	// 4. Tracing
	if c.tracingStop != nil {
		if err := c.tracingStop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	// 5. Database (даём время на завершение транзакций)
	if c.pool != nil {
		// Graceful close с таймаутом
		done := make(chan struct{})
		go func() {
			c.pool.Close()
			close(done)
		}()

		select {
		case <-done:
			c.logger.Info("Database connection closed")
		case <-ctx.Done():
			c.logger.Warn("Database close timeout")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// ============================================
// Run
// ============================================

// Run запускает приложение и ожидает сигнал завершения.
func (c *Container) Run() error {
	c.logger.Info("Starting PixLedger API Server",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
		slog.String("address", c.config.Server.Address()),
	)

	return c.httpServer.Run()
}

// ============================================
// Builder Pattern (Alternative)
// ============================================

// ContainerBuilder - builder для создания контейнера с кастомными компонентами.
type ContainerBuilder struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	eventPublisher ports.EventPublisher
}

// NewBuilder создаёт новый builder.
func NewBuilder(cfg *config.Config) *ContainerBuilder {
	return &ContainerBuilder{
		cfg: cfg,
	}
}

// WithLogger устанавливает кастомный логгер.
func (b *ContainerBuilder) WithLogger(logger *slog.Logger) *ContainerBuilder {
	b.logger = logger
	return b
}

// WithPool устанавливает готовый пул соединений.
func (b *ContainerBuilder) WithPool(pool *pgxpool.Pool) *ContainerBuilder {
	b.pool = pool
	return b
}

// WithEventPublisher устанавливает кастомный event publisher.
func (b *ContainerBuilder) WithEventPublisher(ep ports.EventPublisher) *ContainerBuilder {
	b.eventPublisher = ep
	return b
}

// Build создаёт контейнер.
func (b *ContainerBuilder) Build(ctx context.Context) (*Container, error) {
	c := New(b.cfg)

	// Use provided or initialize
	if b.logger != nil {
		c.logger = b.logger
	} else {
		c.logger = c.initLogger()
	}

	if b.pool != nil {
		c.pool = b.pool
	} else {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	}

	c.initRepositories()

	if b.eventPublisher != nil {
		c.eventPublisher = b.eventPublisher
	}

	c.initServices()
	c.initUseCases()
	c.initHTTPServer()

	return c, nil
}

// ============================================
// Health Check
// ============================================

// HealthStatus - статус здоровья приложения.
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  time.Duration     `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}

// Health возвращает статус здоровья приложения.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:  "healthy",
		Version: c.config.App.Version,
		Checks:  make(map[string]string),
	}

	// Database check
	if err := c.pool.Ping(ctx); err != nil {
		status.Status = "unhealthy"
		status.Checks["database"] = "error: " + err.Error()
	} else {
		status.Checks["database"] = "ok"
	}

	return status
}
