// Package handlers - Wallet HTTP handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixwallet/ledger/internal/adapters/http/common"
	"github.com/pixwallet/ledger/internal/application/dtos"
)

// ============================================
// Use Case Interfaces
// ============================================

// CreateWalletUseCase - интерфейс для создания кошелька.
type CreateWalletUseCase interface {
	Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error)
}

// DepositUseCase - интерфейс для пополнения кошелька.
type DepositUseCase interface {
	Execute(ctx context.Context, cmd dtos.DepositCommand) (*dtos.WalletOperationDTO, error)
}

// WithdrawUseCase - интерфейс для списания с кошелька.
type WithdrawUseCase interface {
	Execute(ctx context.Context, cmd dtos.WithdrawCommand) (*dtos.WalletOperationDTO, error)
}

// CreatePixKeyUseCase - интерфейс для привязки Pix-ключа к кошельку.
type CreatePixKeyUseCase interface {
	Execute(ctx context.Context, cmd dtos.RegisterPixKeyCommand) (*dtos.PixKeyDTO, error)
}

// GetWalletBalanceUseCase - интерфейс для получения баланса кошелька.
type GetWalletBalanceUseCase interface {
	Execute(ctx context.Context, query dtos.GetBalanceQuery) (*dtos.BalanceDTO, error)
}

// GetWalletUseCase - интерфейс для получения кошелька.
type GetWalletUseCase interface {
	Execute(ctx context.Context, query dtos.GetWalletQuery) (*dtos.WalletDTO, error)
}

// ListWalletsUseCase - интерфейс для получения списка кошельков.
type ListWalletsUseCase interface {
	Execute(ctx context.Context, query dtos.ListWalletsQuery) (*dtos.WalletListDTO, error)
}

// ============================================
// Wallet Handler
// ============================================

// WalletHandler обрабатывает HTTP запросы для кошельков.
type WalletHandler struct {
	createWallet CreateWalletUseCase
	deposit      DepositUseCase
	withdraw     WithdrawUseCase
	createPixKey CreatePixKeyUseCase
	getBalance   GetWalletBalanceUseCase
	getWallet    GetWalletUseCase
	listWallets  ListWalletsUseCase
}

// NewWalletHandler создаёт новый WalletHandler.
func NewWalletHandler(
	createWallet CreateWalletUseCase,
	deposit DepositUseCase,
	withdraw WithdrawUseCase,
	createPixKey CreatePixKeyUseCase,
	getBalance GetWalletBalanceUseCase,
	getWallet GetWalletUseCase,
	listWallets ListWalletsUseCase,
) *WalletHandler {
	return &WalletHandler{
		createWallet: createWallet,
		deposit:      deposit,
		withdraw:     withdraw,
		createPixKey: createPixKey,
		getBalance:   getBalance,
		getWallet:    getWallet,
		listWallets:  listWallets,
	}
}

// ============================================
// Request DTOs
// ============================================

// CreateWalletRequest - запрос на создание кошелька.
//
// @Description Create wallet request body
type CreateWalletRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// DepositRequest - запрос на пополнение кошелька.
//
// @Description Deposit request body
type DepositRequest struct {
	Amount      string `json:"amount" binding:"required,money_amount"`
	Description string `json:"description,omitempty"`
}

// WithdrawRequest - запрос на списание с кошелька.
//
// @Description Withdraw request body
type WithdrawRequest struct {
	Amount      string `json:"amount" binding:"required,money_amount"`
	Description string `json:"description,omitempty"`
}

// RegisterPixKeyRequest - запрос на привязку Pix-ключа.
//
// @Description Register Pix key request body
type RegisterPixKeyRequest struct {
	KeyValue string `json:"keyValue" binding:"required"`
	KeyType  string `json:"keyType" binding:"required,pix_key_type"`
}

// WalletIDParam - параметр ID кошелька из URL.
type WalletIDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// BalanceQueryParams - query параметры запроса баланса.
type BalanceQueryParams struct {
	At string `form:"at"`
}

// ListWalletsParams - параметры для списка кошельков.
type ListWalletsParams struct {
	UserID string `form:"userId" binding:"omitempty"`
	Status string `form:"status" binding:"omitempty,oneof=ACTIVE SUSPENDED LOCKED CLOSED"`
}

// ============================================
// HTTP Handlers
// ============================================

// CreateWallet создаёт новый кошелёк.
//
// @Summary Create a new wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Param request body CreateWalletRequest true "Wallet data"
// @Success 201 {object} common.APIResponse{data=dtos.WalletDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse "Wallet already exists for this user (DUPLICATE_USER)"
// @Router /api/v1/wallets [post]
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req CreateWalletRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.CreateWalletCommand{UserID: req.UserID}

	result, err := h.createWallet.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// GetWallet возвращает кошелёк по ID.
//
// @Summary Get wallet by ID
// @Tags Wallets
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Success 200 {object} common.APIResponse{data=dtos.WalletDTO}
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/wallets/{id} [get]
func (h *WalletHandler) GetWallet(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	query := dtos.GetWalletQuery{WalletID: params.ID}

	result, err := h.getWallet.Execute(c.Request.Context(), query)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// ListWallets возвращает список кошельков с фильтрацией.
//
// @Summary List wallets
// @Tags Wallets
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20) maximum(100)
// @Param userId query string false "Filter by user ID"
// @Param status query string false "Filter by status" Enums(ACTIVE, SUSPENDED, LOCKED, CLOSED)
// @Success 200 {object} common.APIResponse{data=dtos.WalletListDTO}
// @Router /api/v1/wallets [get]
func (h *WalletHandler) ListWallets(c *gin.Context) {
	pagination := ParsePagination(c)

	var filters ListWalletsParams
	if !BindQuery(c, &filters) {
		return
	}

	query := dtos.ListWalletsQuery{
		Offset: pagination.Offset(),
		Limit:  pagination.PerPage,
	}

	if filters.UserID != "" {
		query.UserID = &filters.UserID
	}
	if filters.Status != "" {
		query.Status = &filters.Status
	}

	result, err := h.listWallets.Execute(c.Request.Context(), query)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	meta := BuildMeta(pagination, result.TotalCount)
	common.SuccessWithMeta(c, http.StatusOK, result, meta)
}

// GetBalance возвращает баланс кошелька, опционально на заданный момент
// времени (?at=ISO8601).
//
// @Summary Get wallet balance
// @Tags Wallets
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Param at query string false "Historical instant, RFC3339"
// @Success 200 {object} common.APIResponse{data=dtos.BalanceDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/wallets/{id}/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	var q BalanceQueryParams
	if !BindQuery(c, &q) {
		return
	}

	query := dtos.GetBalanceQuery{WalletID: params.ID}
	if q.At != "" {
		at, err := time.Parse(time.RFC3339, q.At)
		if err != nil {
			common.ValidationErrorResponse(c, []common.FieldError{
				{Field: "at", Message: "must be RFC3339", Code: "format"},
			})
			return
		}
		query.At = &at
	}

	result, err := h.getBalance.Execute(c.Request.Context(), query)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Deposit пополняет кошелёк внешними средствами.
//
// @Summary Deposit funds into a wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Param request body DepositRequest true "Deposit data"
// @Success 200 {object} common.APIResponse{data=dtos.WalletOperationDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/v1/wallets/{id}/deposit [post]
func (h *WalletHandler) Deposit(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	var req DepositRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.DepositCommand{
		WalletID:    params.ID,
		Amount:      req.Amount,
		Description: req.Description,
	}

	result, err := h.deposit.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// Withdraw списывает средства с кошелька.
//
// @Summary Withdraw funds from a wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Param request body WithdrawRequest true "Withdraw data"
// @Success 200 {object} common.APIResponse{data=dtos.WalletOperationDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Failure 422 {object} common.APIResponse "Insufficient balance"
// @Router /api/v1/wallets/{id}/withdraw [post]
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	var req WithdrawRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.WithdrawCommand{
		WalletID:    params.ID,
		Amount:      req.Amount,
		Description: req.Description,
	}

	result, err := h.withdraw.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// RegisterPixKey привязывает Pix-ключ к кошельку.
//
// @Summary Register a Pix key for a wallet
// @Tags Wallets
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID" format(uuid)
// @Param request body RegisterPixKeyRequest true "Pix key data"
// @Success 201 {object} common.APIResponse{data=dtos.PixKeyDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/v1/wallets/{id}/pix-keys [post]
func (h *WalletHandler) RegisterPixKey(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	var req RegisterPixKeyRequest
	if !BindJSON(c, &req) {
		return
	}

	cmd := dtos.RegisterPixKeyCommand{
		WalletID: params.ID,
		KeyValue: req.KeyValue,
		KeyType:  req.KeyType,
	}

	result, err := h.createPixKey.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// RegisterRoutes регистрирует маршруты для WalletHandler.
//
// Routes:
// - POST   /wallets                  - Create wallet
// - GET    /wallets                  - List wallets
// - GET    /wallets/:id              - Get wallet by ID
// - GET    /wallets/:id/balance      - Get wallet balance
// - POST   /wallets/:id/deposit      - Deposit funds
// - POST   /wallets/:id/withdraw     - Withdraw funds
// - POST   /wallets/:id/pix-keys     - Register a Pix key
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallets := router.Group("/wallets")
	{
		wallets.POST("", h.CreateWallet)
		wallets.GET("", h.ListWallets)
		wallets.GET("/:id", h.GetWallet)
		wallets.GET("/:id/balance", h.GetBalance)
		wallets.POST("/:id/deposit", h.Deposit)
		wallets.POST("/:id/withdraw", h.Withdraw)
		wallets.POST("/:id/pix-keys", h.RegisterPixKey)
	}
}
