package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBalanceApply(t *testing.T) {
	tests := []struct {
		name      string
		movement  Movement
		wantCash  string
		wantBills string
		wantCoins string
		wantBank  string
	}{
		{
			name:     "income lands in bills",
			movement: Movement{Type: MovementIncome, Channel: ChannelCashBills, Amount: decimal.RequireFromString("30")},
			wantCash: "1030", wantBills: "1030", wantCoins: "0", wantBank: "0",
		},
		{
			name:     "expense drains bills",
			movement: Movement{Type: MovementExpense, Channel: ChannelCashBills, Amount: decimal.RequireFromString("-50")},
			wantCash: "950", wantBills: "950", wantCoins: "0", wantBank: "0",
		},
		{
			name:     "coin income tracked separately",
			movement: Movement{Type: MovementIncome, Channel: ChannelCashCoins, Amount: decimal.RequireFromString("2.50")},
			wantCash: "1002.50", wantBills: "1000", wantCoins: "2.50", wantBank: "0",
		},
		{
			name:     "bank income leaves cash untouched",
			movement: Movement{Type: MovementIncome, Channel: ChannelBank, Amount: decimal.RequireFromString("200")},
			wantCash: "1000", wantBills: "1000", wantCoins: "0", wantBank: "200",
		},
		{
			name:     "bank expense only moves bank bucket",
			movement: Movement{Type: MovementExpense, Channel: ChannelBank, Amount: decimal.RequireFromString("-75")},
			wantCash: "1000", wantBills: "1000", wantCoins: "0", wantBank: "-75",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Balance{
				PointID:    "pt-1",
				CurrencyID: "usd",
				Amount:     decimal.RequireFromString("1000"),
				CashBills:  decimal.RequireFromString("1000"),
				CashCoins:  decimal.Zero,
				Bank:       decimal.Zero,
			}

			if err := b.Apply(&tt.movement); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !b.Amount.Equal(decimal.RequireFromString(tt.wantCash)) {
				t.Fatalf("amount = %s, want %s", b.Amount, tt.wantCash)
			}
			if !b.CashBills.Equal(decimal.RequireFromString(tt.wantBills)) {
				t.Fatalf("bills = %s, want %s", b.CashBills, tt.wantBills)
			}
			if !b.CashCoins.Equal(decimal.RequireFromString(tt.wantCoins)) {
				t.Fatalf("coins = %s, want %s", b.CashCoins, tt.wantCoins)
			}
			if !b.Bank.Equal(decimal.RequireFromString(tt.wantBank)) {
				t.Fatalf("bank = %s, want %s", b.Bank, tt.wantBank)
			}
			if !b.CashConsistent() {
				t.Fatal("cash breakdown drifted from amount")
			}
		})
	}
}

func TestBalanceApply_UnknownTypeFails(t *testing.T) {
	b := NewZeroBalance("pt-1", "usd")
	m := &Movement{Type: MovementType("LEGACY"), Channel: ChannelCashBills, Amount: decimal.NewFromInt(5)}

	if err := b.Apply(m); !errors.Is(err, ErrInvalidMovementType) {
		t.Fatalf("expected type error, got %v", err)
	}
}

func TestBalanceValidateExpense(t *testing.T) {
	b := &Balance{Amount: decimal.RequireFromString("980")}

	if err := b.ValidateExpense(decimal.RequireFromString("-1200")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	if err := b.ValidateExpense(decimal.RequireFromString("-980")); err != nil {
		t.Fatalf("exact amount should pass: %v", err)
	}
}

func TestBalanceReset(t *testing.T) {
	b := &Balance{
		Amount:    decimal.RequireFromString("312.40"),
		CashBills: decimal.RequireFromString("300"),
		CashCoins: decimal.RequireFromString("12.40"),
		Bank:      decimal.RequireFromString("55"),
	}

	b.Reset(decimal.RequireFromString("1000"))

	if !b.Amount.Equal(decimal.RequireFromString("1000")) || !b.CashBills.Equal(decimal.RequireFromString("1000")) || !b.CashCoins.IsZero() {
		t.Fatalf("reset mismatch: amount=%s bills=%s coins=%s", b.Amount, b.CashBills, b.CashCoins)
	}

	// bank bucket survives a cash re-anchor
	if !b.Bank.Equal(decimal.RequireFromString("55")) {
		t.Fatalf("bank bucket changed on reset: %s", b.Bank)
	}
}

func TestCashConsistent_Tolerance(t *testing.T) {
	b := &Balance{
		Amount:    decimal.RequireFromString("100.01"),
		CashBills: decimal.RequireFromString("100"),
	}

	if !b.CashConsistent() {
		t.Fatal("0.01 gap should be within tolerance")
	}

	b.Amount = decimal.RequireFromString("100.05")
	if b.CashConsistent() {
		t.Fatal("0.05 gap should exceed tolerance")
	}
}
