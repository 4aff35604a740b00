package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/errors"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

// PixKey is a routing alias pointing to exactly one wallet.
type PixKey struct {
	id        uuid.UUID
	keyValue  string
	keyType   valueobjects.PixKeyType
	walletID  uuid.UUID
	isActive  bool
	createdAt time.Time
}

// NewPixKey creates a new, active Pix key.
func NewPixKey(keyValue string, keyType valueobjects.PixKeyType, walletID uuid.UUID) (*PixKey, error) {
	if keyValue == "" {
		return nil, errors.ValidationError{Field: "keyValue", Message: "keyValue is required"}
	}
	if !keyType.IsValid() {
		return nil, errors.ValidationError{Field: "keyType", Message: "invalid Pix key type"}
	}

	return &PixKey{
		id:        uuid.New(),
		keyValue:  keyValue,
		keyType:   keyType,
		walletID:  walletID,
		isActive:  true,
		createdAt: time.Now(),
	}, nil
}

// ReconstructPixKey hydrates a PixKey from storage.
func ReconstructPixKey(id uuid.UUID, keyValue string, keyType valueobjects.PixKeyType, walletID uuid.UUID, isActive bool, createdAt time.Time) *PixKey {
	return &PixKey{
		id:        id,
		keyValue:  keyValue,
		keyType:   keyType,
		walletID:  walletID,
		isActive:  isActive,
		createdAt: createdAt,
	}
}

func (k *PixKey) ID() uuid.UUID                   { return k.id }
func (k *PixKey) KeyValue() string                { return k.keyValue }
func (k *PixKey) KeyType() valueobjects.PixKeyType { return k.keyType }
func (k *PixKey) WalletID() uuid.UUID             { return k.walletID }
func (k *PixKey) IsActive() bool                  { return k.isActive }
func (k *PixKey) CreatedAt() time.Time            { return k.createdAt }

// Deactivate marks the key inactive; it stays un-reusable by another wallet.
func (k *PixKey) Deactivate() {
	k.isActive = false
}
