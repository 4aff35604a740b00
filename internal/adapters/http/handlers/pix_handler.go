// Package handlers - Pix transfer HTTP handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pixwallet/ledger/internal/adapters/http/common"
	"github.com/pixwallet/ledger/internal/adapters/http/middleware"
	"github.com/pixwallet/ledger/internal/application/dtos"
	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// TransferOrchestrator - интерфейс Transfer Orchestrator-а, которым
// пользуется PixHandler. Объявлен здесь, а не как конкретный тип, чтобы
// обработчик не зависел от пакета pixtransfer напрямую.
type TransferOrchestrator interface {
	Initiate(ctx context.Context, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount valueobjects.Money) (*entities.PixTransfer, error)
	HandleWebhook(ctx context.Context, endToEndID, eventID, eventType string) error
}

// PixHandler обрабатывает HTTP запросы для Pix-переводов.
type PixHandler struct {
	orchestrator TransferOrchestrator
}

// NewPixHandler создаёт новый PixHandler.
func NewPixHandler(orchestrator TransferOrchestrator) *PixHandler {
	return &PixHandler{orchestrator: orchestrator}
}

// InitiateTransferRequest - тело запроса на инициацию Pix-перевода.
//
// @Description Initiate Pix transfer request body
type InitiateTransferRequest struct {
	FromWalletID string `json:"fromWalletId" binding:"required,uuid"`
	ToPixKey     string `json:"toPixKey" binding:"required"`
	Amount       string `json:"amount" binding:"required,money_amount"`
}

// WebhookEventRequest - тело входящего вебхука Pix-сети.
//
// @Description Pix network webhook event body
type WebhookEventRequest struct {
	EndToEndID string `json:"endToEndId" binding:"required"`
	EventID    string `json:"eventId" binding:"required"`
	EventType  string `json:"eventType" binding:"required"`
}

// InitiateTransfer инициирует Pix-перевод. Требует заголовок
// Idempotency-Key: ключ переданного заголовка делает повторную отправку
// того же запроса безопасной (см. Idempotency Service).
//
// @Summary Initiate a Pix transfer
// @Tags Pix
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body InitiateTransferRequest true "Transfer data"
// @Success 201 {object} common.APIResponse{data=dtos.PixTransferDTO}
// @Failure 400 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse "Destination Pix key not found"
// @Failure 422 {object} common.APIResponse "Insufficient funds"
// @Router /api/v1/pix/transfers [post]
func (h *PixHandler) InitiateTransfer(c *gin.Context) {
	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "Idempotency-Key", Message: "header is required", Code: "required"},
		})
		return
	}

	var req InitiateTransferRequest
	if !BindJSON(c, &req) {
		return
	}

	fromWalletID, err := uuid.Parse(req.FromWalletID)
	if err != nil {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "fromWalletId", Message: "invalid UUID", Code: "uuid"},
		})
		return
	}

	amount, err := valueobjects.FromMajorUnitsString(req.Amount)
	if err != nil {
		common.ValidationErrorResponse(c, []common.FieldError{
			{Field: "amount", Message: "invalid amount", Code: "money_amount"},
		})
		return
	}

	transfer, err := h.orchestrator.Initiate(c.Request.Context(), idempotencyKey, fromWalletID, req.ToPixKey, amount)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	middleware.RecordPixTransfer(string(transfer.Status()), transfer.Amount().Cents())
	common.Success(c, http.StatusCreated, dtos.ToPixTransferDTO(transfer))
}

// HandleWebhook receives asynchronous CONFIRMED/REJECTED status events
// from the Pix network. It always answers 200 once the event has been
// absorbed, idempotently, including for unrecognized event types and
// already-terminal transfers: the Pix network should not retry an event
// it considers delivered.
//
// @Summary Receive a Pix network webhook event
// @Tags Pix
// @Accept json
// @Produce json
// @Param request body WebhookEventRequest true "Webhook event"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/v1/pix/webhook [post]
func (h *PixHandler) HandleWebhook(c *gin.Context) {
	var req WebhookEventRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.orchestrator.HandleWebhook(c.Request.Context(), req.EndToEndID, req.EventID, req.EventType); err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"received": true})
}

// RegisterRoutes регистрирует маршруты для PixHandler.
//
// Routes:
// - POST /pix/transfers - Initiate a Pix transfer
// - POST /pix/webhook   - Receive a Pix network webhook event
func (h *PixHandler) RegisterRoutes(router *gin.RouterGroup) {
	pix := router.Group("/pix")
	{
		pix.POST("/transfers", h.InitiateTransfer)
		pix.POST("/webhook", h.HandleWebhook)
	}
}
