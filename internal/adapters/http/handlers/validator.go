// Package handlers содержит HTTP handlers для REST API.
//
// Handler - это Adapter в терминах Clean Architecture:
// - Принимает HTTP запрос
// - Преобразует в Command/Query DTO
// - Вызывает Use Case
// - Преобразует результат в HTTP ответ
//
// SOLID:
// - SRP: Каждый handler отвечает за один endpoint
// - DIP: Handler зависит от интерфейса Use Case
package handlers

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pixwallet/ledger/internal/adapters/http/common"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// ============================================
// Custom Validator Setup
// ============================================

var (
	setupOnce sync.Once
)

// SetupValidator настраивает кастомные валидаторы для Gin.
func SetupValidator() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			// Используем json tag для имён полей в ошибках
			v.RegisterTagNameFunc(func(fld reflect.StructField) string {
				name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
				if name == "-" {
					return ""
				}
				return name
			})

			// Регистрируем кастомные валидаторы
			_ = v.RegisterValidation("money_amount", validateMoneyAmount)
			_ = v.RegisterValidation("wallet_status", validateWalletStatus)
			_ = v.RegisterValidation("pix_key_type", validatePixKeyType)
		}
	})
}

// ============================================
// Custom Validators
// ============================================

// validateMoneyAmount проверяет формат суммы (decimal string, до 2 знаков после запятой).
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

func validateMoneyAmount(fl validator.FieldLevel) bool {
	amount := fl.Field().String()
	return moneyPattern.MatchString(amount)
}

// validateWalletStatus проверяет статус кошелька.
func validateWalletStatus(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	validStatuses := map[string]bool{
		"ACTIVE":    true,
		"SUSPENDED": true,
		"LOCKED":    true,
		"CLOSED":    true,
	}
	return validStatuses[status]
}

// validatePixKeyType проверяет тип Pix-ключа.
func validatePixKeyType(fl validator.FieldLevel) bool {
	keyType := fl.Field().String()
	return valueobjects.PixKeyType(keyType).IsValid()
}

// ============================================
// Validation Error Handling
// ============================================

// HandleValidationErrors преобразует ошибки валидации в HTTP ответ.
func HandleValidationErrors(c *gin.Context, err error) {
	var fieldErrors []common.FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			fieldErrors = append(fieldErrors, common.FieldError{
				Field:   fieldErr.Field(),
				Message: getValidationMessage(fieldErr),
				Code:    fieldErr.Tag(),
			})
		}
	}

	if len(fieldErrors) == 0 {
		// Если не удалось распарсить - общая ошибка
		common.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	common.ValidationErrorResponse(c, fieldErrors)
}

// getValidationMessage возвращает человекочитаемое сообщение об ошибке.
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too short (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too long (maximum: " + fe.Param() + ")"
	case "len":
		return "Value must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "Value must be one of: " + fe.Param()
	case "money_amount":
		return "Invalid amount format (use decimal like '100.50')"
	case "wallet_status":
		return "Invalid wallet status"
	case "pix_key_type":
		return "Invalid Pix key type"
	default:
		return "Invalid value"
	}
}

// ============================================
// Request Parsing Helpers
// ============================================

// BindJSON биндит JSON тело запроса и возвращает ошибку если что-то не так.
// Возвращает true если успешно, false если была ошибка (ответ уже отправлен).
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindQuery биндит query параметры.
func BindQuery[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// BindURI биндит URI параметры.
func BindURI[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindUri(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// ============================================
// Pagination Helper
// ============================================

// PaginationParams - параметры пагинации из query string.
type PaginationParams struct {
	Page    int `form:"page" binding:"min=1"`
	PerPage int `form:"per_page" binding:"min=1,max=100"`
}

// DefaultPaginationParams возвращает параметры по умолчанию.
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{
		Page:    1,
		PerPage: 20,
	}
}

// Offset вычисляет offset для SQL запроса.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePagination парсит параметры пагинации из запроса.
func ParsePagination(c *gin.Context) PaginationParams {
	params := DefaultPaginationParams()

	if page := c.Query("page"); page != "" {
		if p := parseInt(page); p > 0 {
			params.Page = p
		}
	}

	if perPage := c.Query("per_page"); perPage != "" {
		if pp := parseInt(perPage); pp > 0 && pp <= 100 {
			params.PerPage = pp
		}
	}

	return params
}

// parseInt парсит строку в int.
func parseInt(s string) int {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// BuildMeta создаёт мета-информацию для пагинированного ответа.
func BuildMeta(params PaginationParams, total int) *common.APIMeta {
	totalPages := total / params.PerPage
	if total%params.PerPage > 0 {
		totalPages++
	}

	return &common.APIMeta{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
