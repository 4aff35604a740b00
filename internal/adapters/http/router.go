// Package http - Router configuration for REST API.
//
// Router собирает все handlers и middleware в единую точку входа.
//
// Pattern: Composition Root
// - Все зависимости собираются здесь
// - Handlers получают только нужные им use cases
// - Middleware применяется к соответствующим группам routes
package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pixwallet/ledger/internal/adapters/http/common"
	"github.com/pixwallet/ledger/internal/adapters/http/handlers"
	"github.com/pixwallet/ledger/internal/adapters/http/middleware"
)

// ============================================
// Router Configuration
// ============================================

// RouterConfig - конфигурация роутера.
type RouterConfig struct {
	// Logger для middleware
	Logger *slog.Logger
	// Database pool для health checks
	Pool *pgxpool.Pool
	// Version приложения
	Version string
	// BuildTime время сборки
	BuildTime string
	// Environment (development, staging, production)
	Environment string
	// ServiceName labels spans emitted by the tracing middleware.
	ServiceName string
	// AllowedOrigins для CORS (production)
	AllowedOrigins []string
	// AuthTokenValidator - функция валидации токена (зарезервировано для
	// admin-маршрутов)
	AuthTokenValidator func(token string) (*middleware.AuthClaims, error)
	// RateLimiter overrides the global rate limiter's backend, e.g. with
	// cache.RedisRateLimiter for multi-instance deployments. Nil keeps
	// the in-process limiter.
	RateLimiter middleware.Limiter
	// GlobalRateLimit and GlobalRateLimitWindow size the global limiter
	// when RateLimiter is nil. Zero values fall back to
	// middleware.DefaultRateLimitConfig().
	GlobalRateLimit       int
	GlobalRateLimitWindow time.Duration
}

// DefaultRouterConfig - конфигурация по умолчанию для development.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Logger:             slog.Default(),
		Version:            "dev",
		BuildTime:          "unknown",
		Environment:        "development",
		AllowedOrigins:     []string{"*"},
		AuthTokenValidator: middleware.MockTokenValidator,
	}
}

// ============================================
// Use Case Providers
// ============================================

// WalletUseCases - provider для wallet use cases.
type WalletUseCases struct {
	CreateWallet handlers.CreateWalletUseCase
	Deposit      handlers.DepositUseCase
	Withdraw     handlers.WithdrawUseCase
	CreatePixKey handlers.CreatePixKeyUseCase
	GetBalance   handlers.GetWalletBalanceUseCase
	GetWallet    handlers.GetWalletUseCase
	ListWallets  handlers.ListWalletsUseCase
}

// PixUseCases - provider для Pix transfer use cases.
type PixUseCases struct {
	Orchestrator handlers.TransferOrchestrator
}

// ============================================
// Router Builder
// ============================================

// RouterBuilder - builder для создания роутера.
//
// Pattern: Builder
// - Позволяет пошагово настроить роутер
// - Проще тестировать
// - Можно переиспользовать части конфигурации
type RouterBuilder struct {
	config  *RouterConfig
	wallets *WalletUseCases
	pix     *PixUseCases
}

// NewRouterBuilder создаёт новый builder.
func NewRouterBuilder(config *RouterConfig) *RouterBuilder {
	if config == nil {
		config = DefaultRouterConfig()
	}
	return &RouterBuilder{
		config: config,
	}
}

// WithWalletUseCases добавляет wallet use cases.
func (b *RouterBuilder) WithWalletUseCases(useCases *WalletUseCases) *RouterBuilder {
	b.wallets = useCases
	return b
}

// WithPixUseCases добавляет Pix transfer use cases.
func (b *RouterBuilder) WithPixUseCases(useCases *PixUseCases) *RouterBuilder {
	b.pix = useCases
	return b
}

// Build создаёт сконфигурированный Gin Engine.
func (b *RouterBuilder) Build() *gin.Engine {
	// Настраиваем режим Gin
	if b.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Создаём router без default middleware
	router := gin.New()

	// Настраиваем кастомные валидаторы
	handlers.SetupValidator()

	// ============================================
	// Global Middleware
	// ============================================

	// 1. Recovery - должен быть первым
	router.Use(middleware.Recovery(&middleware.RecoveryConfig{
		Logger:           b.config.Logger,
		EnableStackTrace: b.config.Environment != "production",
	}))

	// 2. Request ID
	router.Use(middleware.RequestID())

	// 2b. Tracing - one span per request; a no-op when tracing.Setup was
	// never called (the global TracerProvider defaults to no-op).
	serviceName := b.config.ServiceName
	if serviceName == "" {
		serviceName = "pixledger"
	}
	router.Use(otelgin.Middleware(serviceName))

	// 3. CORS
	if b.config.Environment == "production" {
		router.Use(middleware.CORS(middleware.ProductionCORSConfig(b.config.AllowedOrigins)))
	} else {
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}

	// 4. Logging
	router.Use(middleware.Logging(&middleware.LoggingConfig{
		Logger:    b.config.Logger,
		SkipPaths: []string{"/health", "/live", "/ready", "/metrics"},
	}))

	// 5. Rate Limiting (global)
	rlConfig := middleware.DefaultRateLimitConfig()
	if b.config.GlobalRateLimit > 0 {
		rlConfig.Limit = b.config.GlobalRateLimit
	}
	if b.config.GlobalRateLimitWindow > 0 {
		rlConfig.Window = b.config.GlobalRateLimitWindow
	}
	rlConfig.Limiter = b.config.RateLimiter
	router.Use(middleware.RateLimit(rlConfig))

	// 6. Metrics (Prometheus)
	router.Use(middleware.Metrics())

	// ============================================
	// Metrics Endpoint (no auth)
	// ============================================

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============================================
	// Health Check Routes (no auth)
	// ============================================

	healthHandler := handlers.NewHealthHandler(
		b.config.Pool,
		b.config.Version,
		b.config.BuildTime,
	)
	healthHandler.RegisterRoutes(router)

	// ============================================
	// API v1 Routes
	// ============================================

	v1 := router.Group("/api/v1")

	// Wallet routes
	if b.wallets != nil {
		walletHandler := handlers.NewWalletHandler(
			b.wallets.CreateWallet,
			b.wallets.Deposit,
			b.wallets.Withdraw,
			b.wallets.CreatePixKey,
			b.wallets.GetBalance,
			b.wallets.GetWallet,
			b.wallets.ListWallets,
		)

		financialOps := v1.Group("")
		financialOps.Use(middleware.TransactionRateLimit())
		walletHandler.RegisterRoutes(financialOps)
	}

	// Pix transfer routes
	if b.pix != nil {
		pixHandler := handlers.NewPixHandler(b.pix.Orchestrator)

		pixOps := v1.Group("")
		pixOps.Use(middleware.TransactionRateLimit())
		pixHandler.RegisterRoutes(pixOps)
	}

	// ============================================
	// Admin Routes (admin role required)
	// ============================================

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.Auth(&middleware.AuthConfig{
		TokenValidator: b.config.AuthTokenValidator,
	}))
	adminGroup.Use(middleware.RequireRole("admin"))
	{
		// Административные маршруты (например, UpdateWalletStatusCommand)
		// подключаются здесь по мере необходимости.
	}

	// ============================================
	// 404 Handler
	// ============================================

	router.NoRoute(func(c *gin.Context) {
		common.Error(c, 404, &common.APIError{
			Code:    common.ErrCodeNotFound,
			Message: "Endpoint not found",
			Details: map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			},
		})
	})

	return router
}

// ============================================
// Quick Setup Functions
// ============================================

// NewRouter создаёт роутер с базовой конфигурацией (для простых случаев).
func NewRouter(config *RouterConfig) *gin.Engine {
	return NewRouterBuilder(config).Build()
}

// NewDevelopmentRouter создаёт роутер для development окружения.
func NewDevelopmentRouter() *gin.Engine {
	config := DefaultRouterConfig()
	config.Environment = "development"
	return NewRouter(config)
}

// NewProductionRouter создаёт роутер для production окружения.
func NewProductionRouter(pool *pgxpool.Pool, version string, allowedOrigins []string) *gin.Engine {
	config := &RouterConfig{
		Logger:         slog.Default(),
		Pool:           pool,
		Version:        version,
		Environment:    "production",
		AllowedOrigins: allowedOrigins,
		// В production нужен реальный token validator
		AuthTokenValidator: nil, // Должен быть установлен!
	}
	return NewRouter(config)
}
