package dtos

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/entities"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWalletDTO(t *testing.T) {
	wallet, err := entities.NewWallet("user-123")
	require.NoError(t, err)

	dto := ToWalletDTO(wallet)

	assert.Equal(t, wallet.ID().String(), dto.ID)
	assert.Equal(t, "user-123", dto.UserID)
	assert.Equal(t, "ACTIVE", dto.Status)
	assert.Equal(t, "0.00", dto.Balance)
	assert.Equal(t, int64(0), dto.Version)
	assert.False(t, dto.CreatedAt.IsZero())
}

func TestToWalletDTO_WithBalance(t *testing.T) {
	wallet, err := entities.NewWallet("user-456")
	require.NoError(t, err)

	amount := valueobjects.FromMinorUnits(10000) // $100.00

	err = wallet.Credit(amount)
	require.NoError(t, err)

	dto := ToWalletDTO(wallet)

	assert.Equal(t, "100.00", dto.Balance)
	assert.Equal(t, int64(1), dto.Version)
}

func TestToWalletDTOList(t *testing.T) {
	wallet1, _ := entities.NewWallet("user-1")
	wallet2, _ := entities.NewWallet("user-2")

	wallets := []*entities.Wallet{wallet1, wallet2}

	result := ToWalletDTOList(wallets)

	assert.Len(t, result, 2)
	assert.Equal(t, "user-1", result[0].UserID)
	assert.Equal(t, "user-2", result[1].UserID)
}

func TestToWalletDTOList_Empty(t *testing.T) {
	var wallets []*entities.Wallet

	result := ToWalletDTOList(wallets)

	assert.Len(t, result, 0)
	assert.NotNil(t, result)
}

func TestToPixKeyDTO(t *testing.T) {
	walletID := uuid.New()

	key, err := entities.NewPixKey("user@example.com", valueobjects.PixKeyEmail, walletID)
	require.NoError(t, err)

	dto := ToPixKeyDTO(key)

	assert.Equal(t, key.ID().String(), dto.ID)
	assert.Equal(t, walletID.String(), dto.WalletID)
	assert.Equal(t, "user@example.com", dto.KeyValue)
	assert.Equal(t, "EMAIL", dto.KeyType)
	assert.True(t, dto.IsActive)
}

func TestToPixTransferDTO(t *testing.T) {
	fromWalletID := uuid.New()
	amount := valueobjects.FromMinorUnits(5000)

	transfer, err := entities.NewPixTransfer("E123", "idem-1", fromWalletID, "dest@example.com", amount)
	require.NoError(t, err)

	dto := ToPixTransferDTO(transfer)

	assert.Equal(t, transfer.ID().String(), dto.ID)
	assert.Equal(t, "E123", dto.EndToEndID)
	assert.Equal(t, "idem-1", dto.IdempotencyKey)
	assert.Equal(t, fromWalletID.String(), dto.FromWalletID)
	assert.Equal(t, "dest@example.com", dto.ToPixKey)
	assert.Equal(t, "50.00", dto.Amount)
	assert.Equal(t, "PENDING", dto.Status)
	assert.Nil(t, dto.ConfirmedAt)
	assert.Nil(t, dto.RejectedAt)
}

func TestToPixTransferDTO_Confirmed(t *testing.T) {
	fromWalletID := uuid.New()
	amount := valueobjects.FromMinorUnits(5000)

	transfer, err := entities.NewPixTransfer("E456", "idem-2", fromWalletID, "dest@example.com", amount)
	require.NoError(t, err)

	err = transfer.Confirm()
	require.NoError(t, err)

	dto := ToPixTransferDTO(transfer)

	assert.Equal(t, "CONFIRMED", dto.Status)
	assert.NotNil(t, dto.ConfirmedAt)
}
