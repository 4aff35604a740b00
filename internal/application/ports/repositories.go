// Package ports определяет интерфейсы (порты) для внешних зависимостей.
// Эти интерфейсы реализуются в Infrastructure Layer.
//
// SOLID Principles:
// - DIP: Application зависит от абстракций, не от конкретных реализаций
// - ISP: Каждый интерфейс фокусируется на одной сущности
// - SRP: Repository отвечает только за persistence
//
// Pattern: Repository Pattern + Ports & Adapters (Hexagonal Architecture)
package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/entities"
)

// WalletRepository определяет контракт для хранения кошельков.
//
// Важно: Wallet - это Aggregate Root. Repository сохраняет его атомарно,
// с проверкой optimistic-locking версии на Save.
type WalletRepository interface {
	// Save сохраняет кошелёк с проверкой версии (optimistic locking).
	// Если version не совпадает, возвращает ConcurrencyError.
	Save(ctx context.Context, wallet *entities.Wallet) error

	// FindByID загружает кошелёк по ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByIDForUpdate загружает кошелёк и берёт pessimistic row lock
	// (SELECT ... FOR UPDATE). Используется движком кошелька внутри
	// REQUIRES_NEW транзакции перевода, чтобы сериализовать конкурентные
	// дебеты/кредиты одного и того же кошелька.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)

	// FindByUserID находит кошелёк пользователя. У пользователя ровно один
	// кошелёк.
	FindByUserID(ctx context.Context, userID string) (*entities.Wallet, error)

	// ExistsByUserID проверяет существование без загрузки всей entity.
	ExistsByUserID(ctx context.Context, userID string) (bool, error)

	// List возвращает кошельки с фильтрацией и пагинацией.
	List(ctx context.Context, filter WalletFilter, offset, limit int) ([]*entities.Wallet, error)
}

// WalletFilter определяет критерии фильтрации для кошельков.
type WalletFilter struct {
	UserID *string
	Status *entities.WalletStatus
}

// LedgerRepository определяет контракт для хранения ledger-записей.
// Записи неизменяемы: после Append ни одна запись не обновляется и не
// удаляется.
type LedgerRepository interface {
	// Append сохраняет новую запись. Вызывается в той же транзакции, что и
	// изменение баланса кошелька.
	Append(ctx context.Context, entry *entities.LedgerEntry) error

	// FindByWalletID возвращает записи кошелька в хронологическом порядке,
	// постранично.
	FindByWalletID(ctx context.Context, walletID uuid.UUID, offset, limit int) ([]*entities.LedgerEntry, error)

	// FindByTransactionID возвращает все записи, связанные с одной
	// транзакцией (перевод затрагивает два кошелька - два entries).
	FindByTransactionID(ctx context.Context, transactionID string) ([]*entities.LedgerEntry, error)
}

// PixKeyRepository определяет контракт для хранения Pix-ключей.
type PixKeyRepository interface {
	// Save сохраняет ключ (create or update, напр. Deactivate).
	Save(ctx context.Context, key *entities.PixKey) error

	// FindByValue находит активный ключ по его значению. Используется для
	// разрешения получателя перевода.
	FindByValue(ctx context.Context, keyValue string) (*entities.PixKey, error)

	// FindByWalletID возвращает все ключи, привязанные к кошельку.
	FindByWalletID(ctx context.Context, walletID uuid.UUID) ([]*entities.PixKey, error)

	// ExistsByValue проверяет уникальность значения ключа перед созданием.
	ExistsByValue(ctx context.Context, keyValue string) (bool, error)
}

// PixTransferRepository определяет контракт для хранения переводов.
type PixTransferRepository interface {
	// Save сохраняет перевод (create или обновление статуса) с проверкой
	// version (optimistic locking) - первый терминальный переход выигрывает.
	Save(ctx context.Context, transfer *entities.PixTransfer) error

	// FindByID загружает перевод по ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entities.PixTransfer, error)

	// FindByEndToEndID загружает перевод по его end-to-end идентификатору
	// (уникален).
	FindByEndToEndID(ctx context.Context, endToEndID string) (*entities.PixTransfer, error)

	// FindByIdempotencyKey загружает перевод по ключу идемпотентности
	// (уникален) - используется для обнаружения повторных попыток отправки.
	FindByIdempotencyKey(ctx context.Context, key string) (*entities.PixTransfer, error)

	// FindPendingOlderThan возвращает зависшие PENDING-переводы старше
	// cutoff. Используется фоновым ревизором для принудительного Reject.
	FindPendingOlderThan(ctx context.Context, cutoffSeconds int, limit int) ([]*entities.PixTransfer, error)
}

// IdempotencyRecord - сохранённый результат одной идемпотентной операции,
// ключируемый по Idempotency-Key заголовка запроса.
type IdempotencyRecord struct {
	Key            string
	RequestHash    string
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      int64 // unix seconds, чтобы не тянуть time в application DTO
}

// IdempotencyRepository определяет контракт для хранения идемпотентных
// ответов. Первый успешный запрос с данным ключом сохраняет свою запись;
// последующие запросы с тем же ключом и тем же телом получают
// сохранённый ответ вместо повторного выполнения операции.
type IdempotencyRepository interface {
	// Insert пытается атомарно вставить новую запись. Возвращает
	// ErrEntityAlreadyExists, если ключ уже занят (конкурентный первый
	// запрос уже выиграл гонку).
	Insert(ctx context.Context, record IdempotencyRecord) error

	// FindByKey ищет существующую запись.
	FindByKey(ctx context.Context, key string) (*IdempotencyRecord, error)

	// DeleteOlderThan удаляет записи старше retention-порога. Вызывается
	// фоновой сборкой мусора.
	DeleteOlderThan(ctx context.Context, cutoffSeconds int64) (int64, error)
}
