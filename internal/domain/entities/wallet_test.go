package entities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pixwallet/ledger/internal/domain/valueobjects"
)

func TestWalletStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   WalletStatus
		expected bool
	}{
		{"ACTIVE is valid", WalletStatusActive, true},
		{"SUSPENDED is valid", WalletStatusSuspended, true},
		{"LOCKED is valid", WalletStatusLocked, true},
		{"CLOSED is valid", WalletStatusClosed, true},
		{"Invalid status", WalletStatus("INVALID"), false},
		{"Empty status", WalletStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("WalletStatus.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewWallet_Success(t *testing.T) {
	userID := "user-123"

	wallet, err := NewWallet(userID)
	if err != nil {
		t.Fatalf("NewWallet() error = %v, want nil", err)
	}

	if wallet.ID() == uuid.Nil {
		t.Error("Wallet ID should not be nil")
	}
	if wallet.UserID() != userID {
		t.Errorf("Wallet UserID = %v, want %v", wallet.UserID(), userID)
	}
	if wallet.Status() != WalletStatusActive {
		t.Errorf("Wallet Status = %v, want %v", wallet.Status(), WalletStatusActive)
	}
	if !wallet.Balance().IsZero() {
		t.Errorf("Balance should be zero, got %v", wallet.Balance())
	}
	if wallet.Version() != 0 {
		t.Errorf("Version = %v, want 0", wallet.Version())
	}
}

func TestNewWallet_EmptyUserID(t *testing.T) {
	_, err := NewWallet("")
	if err == nil {
		t.Fatal("NewWallet() with empty userID should return error")
	}
}

func TestReconstructWallet(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	wallet := ReconstructWallet(id, "user-123", 10000, 5, WalletStatusActive, now, now)

	if wallet.ID() != id {
		t.Errorf("ID = %v, want %v", wallet.ID(), id)
	}
	if wallet.UserID() != "user-123" {
		t.Errorf("UserID = %v, want user-123", wallet.UserID())
	}
	if wallet.BalanceCents() != 10000 {
		t.Errorf("BalanceCents = %v, want 10000", wallet.BalanceCents())
	}
	if wallet.Version() != 5 {
		t.Errorf("Version = %v, want 5", wallet.Version())
	}
}

func TestWallet_IsActive(t *testing.T) {
	tests := []struct {
		name     string
		status   WalletStatus
		expected bool
	}{
		{"Active wallet", WalletStatusActive, true},
		{"Suspended wallet", WalletStatusSuspended, false},
		{"Locked wallet", WalletStatusLocked, false},
		{"Closed wallet", WalletStatusClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &Wallet{status: tt.status}
			if got := wallet.IsActive(); got != tt.expected {
				t.Errorf("IsActive() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWallet_CanDebit(t *testing.T) {
	tests := []struct {
		name      string
		status    WalletStatus
		wantError bool
	}{
		{"Active wallet can debit", WalletStatusActive, false},
		{"Suspended wallet cannot debit", WalletStatusSuspended, true},
		{"Locked wallet cannot debit", WalletStatusLocked, true},
		{"Closed wallet cannot debit", WalletStatusClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &Wallet{status: tt.status}
			err := wallet.CanDebit()
			if (err != nil) != tt.wantError {
				t.Errorf("CanDebit() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestWallet_CanCredit(t *testing.T) {
	tests := []struct {
		name      string
		status    WalletStatus
		wantError bool
	}{
		{"Active wallet can credit", WalletStatusActive, false},
		{"Suspended wallet can credit", WalletStatusSuspended, false},
		{"Locked wallet can credit", WalletStatusLocked, false},
		{"Closed wallet cannot credit", WalletStatusClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &Wallet{id: uuid.New(), status: tt.status}
			err := wallet.CanCredit()
			if (err != nil) != tt.wantError {
				t.Errorf("CanCredit() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestWallet_HasSufficientBalance(t *testing.T) {
	wallet := &Wallet{balanceCents: 10000}

	tests := []struct {
		name     string
		amount   valueobjects.Money
		expected bool
	}{
		{"Sufficient balance", valueobjects.FromMinorUnits(5000), true},
		{"Exact balance", valueobjects.FromMinorUnits(10000), true},
		{"Insufficient balance", valueobjects.FromMinorUnits(15000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wallet.HasSufficientBalance(tt.amount); got != tt.expected {
				t.Errorf("HasSufficientBalance() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWallet_Credit(t *testing.T) {
	t.Run("successful credit", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		amount := valueobjects.FromMinorUnits(10000)

		if err := wallet.Credit(amount); err != nil {
			t.Fatalf("Credit() error = %v, want nil", err)
		}
		if !wallet.Balance().Equals(amount) {
			t.Errorf("Balance = %v, want %v", wallet.Balance(), amount)
		}
		if wallet.Version() != 1 {
			t.Errorf("Version = %v, want 1", wallet.Version())
		}
	})

	t.Run("credit closed wallet fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		wallet.status = WalletStatusClosed

		if err := wallet.Credit(valueobjects.FromMinorUnits(10000)); err == nil {
			t.Fatal("Credit() on closed wallet should return error")
		}
	})

	t.Run("credit suspended wallet succeeds", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		wallet.status = WalletStatusSuspended

		if err := wallet.Credit(valueobjects.FromMinorUnits(10000)); err != nil {
			t.Fatalf("Credit() on suspended wallet should succeed, got %v", err)
		}
	})

	t.Run("credit multiple times accumulates", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		_ = wallet.Credit(valueobjects.FromMinorUnits(10000))
		_ = wallet.Credit(valueobjects.FromMinorUnits(5000))

		if wallet.BalanceCents() != 15000 {
			t.Errorf("BalanceCents = %v, want 15000", wallet.BalanceCents())
		}
		if wallet.Version() != 2 {
			t.Errorf("Version = %v, want 2", wallet.Version())
		}
	})

	t.Run("credit non-positive amount fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		if err := wallet.Credit(valueobjects.Zero()); err == nil {
			t.Fatal("Credit() with zero amount should fail")
		}
	})
}

func TestWallet_Debit(t *testing.T) {
	t.Run("successful debit", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		_ = wallet.Credit(valueobjects.FromMinorUnits(10000))
		version := wallet.Version()

		if err := wallet.Debit(valueobjects.FromMinorUnits(3000)); err != nil {
			t.Fatalf("Debit() error = %v, want nil", err)
		}
		if wallet.BalanceCents() != 7000 {
			t.Errorf("BalanceCents = %v, want 7000", wallet.BalanceCents())
		}
		if wallet.Version() != version+1 {
			t.Error("Version not incremented")
		}
	})

	t.Run("debit suspended wallet fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		wallet.status = WalletStatusSuspended

		if err := wallet.Debit(valueobjects.FromMinorUnits(1000)); err == nil {
			t.Fatal("Debit() on suspended wallet should return error")
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		if err := wallet.Debit(valueobjects.FromMinorUnits(10000)); err == nil {
			t.Fatal("Debit() with insufficient balance should return error")
		}
	})

	t.Run("debit exact balance zeroes it out", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		amount := valueobjects.FromMinorUnits(10000)
		_ = wallet.Credit(amount)

		if err := wallet.Debit(amount); err != nil {
			t.Fatalf("Debit() exact balance error = %v", err)
		}
		if !wallet.Balance().IsZero() {
			t.Errorf("Balance should be zero, got %v", wallet.Balance())
		}
	})

	t.Run("debit balance-1 fails with insufficient funds", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		_ = wallet.Credit(valueobjects.FromMinorUnits(99))
		if err := wallet.Debit(valueobjects.FromMinorUnits(100)); err == nil {
			t.Fatal("Debit() of balance+1 should fail")
		}
	})
}

func TestWallet_Suspend(t *testing.T) {
	t.Run("suspend active wallet", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		if err := wallet.Suspend(); err != nil {
			t.Fatalf("Suspend() error = %v, want nil", err)
		}
		if wallet.Status() != WalletStatusSuspended {
			t.Errorf("Status = %v, want %v", wallet.Status(), WalletStatusSuspended)
		}
	})

	t.Run("suspend closed wallet fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		wallet.status = WalletStatusClosed
		if err := wallet.Suspend(); err == nil {
			t.Fatal("Suspend() closed wallet should return error")
		}
	})
}

func TestWallet_Activate(t *testing.T) {
	t.Run("activate suspended wallet", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		_ = wallet.Suspend()

		if err := wallet.Activate(); err != nil {
			t.Fatalf("Activate() error = %v, want nil", err)
		}
		if wallet.Status() != WalletStatusActive {
			t.Errorf("Status = %v, want %v", wallet.Status(), WalletStatusActive)
		}
	})

	t.Run("activate closed wallet fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		wallet.status = WalletStatusClosed
		if err := wallet.Activate(); err == nil {
			t.Fatal("Activate() closed wallet should return error")
		}
	})
}

func TestWallet_Lock(t *testing.T) {
	wallet, _ := NewWallet("user-1")
	if err := wallet.Lock(); err != nil {
		t.Fatalf("Lock() error = %v, want nil", err)
	}
	if wallet.Status() != WalletStatusLocked {
		t.Errorf("Status = %v, want %v", wallet.Status(), WalletStatusLocked)
	}
}

func TestWallet_Close(t *testing.T) {
	t.Run("close wallet with zero balance", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		if err := wallet.Close(); err != nil {
			t.Fatalf("Close() error = %v, want nil", err)
		}
		if wallet.Status() != WalletStatusClosed {
			t.Errorf("Status = %v, want %v", wallet.Status(), WalletStatusClosed)
		}
	})

	t.Run("close wallet with non-zero balance fails", func(t *testing.T) {
		wallet, _ := NewWallet("user-1")
		_ = wallet.Credit(valueobjects.FromMinorUnits(10000))

		if err := wallet.Close(); err == nil {
			t.Fatal("Close() with non-zero balance should return error")
		}
	})
}

func TestWallet_UpdatedAtChanges(t *testing.T) {
	wallet, _ := NewWallet("user-1")
	initialUpdatedAt := wallet.UpdatedAt()
	time.Sleep(10 * time.Millisecond)

	_ = wallet.Credit(valueobjects.FromMinorUnits(10000))

	if !wallet.UpdatedAt().After(initialUpdatedAt) {
		t.Error("UpdatedAt should change after Credit operation")
	}
}
