package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashTolerance is the maximum allowed gap between the materialized
// cash amount and the bills+coins breakdown, absorbing accumulated
// decimal rounding from legacy imports.
var CashTolerance = decimal.RequireFromString("0.02")

// Balance is the materialized per-(point, currency) state derived from
// the ledger. Amount covers cash only; the bank bucket is tracked
// separately and never folded into Amount. Mutated exclusively by the
// recorder, reconciliation corrections and chain repair.
type Balance struct {
	PointID    string
	CurrencyID string
	Amount     decimal.Decimal
	CashBills  decimal.Decimal
	CashCoins  decimal.Decimal
	Bank       decimal.Decimal
	Version    int64
	UpdatedAt  time.Time
}

// NewZeroBalance returns the default balance for a (point, currency)
// pair that has no movements yet.
func NewZeroBalance(pointID, currencyID string) *Balance {
	return &Balance{
		PointID:    pointID,
		CurrencyID: currencyID,
		Amount:     decimal.Zero,
		CashBills:  decimal.Zero,
		CashCoins:  decimal.Zero,
		Bank:       decimal.Zero,
	}
}

// CashConsistent reports whether Amount matches the bills+coins
// breakdown within tolerance.
func (b *Balance) CashConsistent() bool {
	gap := b.Amount.Sub(b.CashBills.Add(b.CashCoins)).Abs()
	return gap.LessThanOrEqual(CashTolerance)
}

// ValidateExpense checks that an expense of the given magnitude is
// covered by the available cash amount.
func (b *Balance) ValidateExpense(amount decimal.Decimal) error {
	if amount.Abs().GreaterThan(b.Amount) {
		return ErrInsufficientBalance
	}
	return nil
}

// Apply routes a movement's effect into the aggregate: the cash delta
// into Amount plus the matching cash bucket, bank-channel amounts into
// the bank bucket.
func (b *Balance) Apply(m *Movement) error {
	cashDelta, err := m.CashDelta()
	if err != nil {
		return err
	}

	switch m.Channel {
	case ChannelBank:
		bankDelta, err := Delta(m.Type, m.Amount)
		if err != nil {
			return err
		}
		b.Bank = b.Bank.Add(bankDelta)
	case ChannelCashCoins:
		b.Amount = b.Amount.Add(cashDelta)
		b.CashCoins = b.CashCoins.Add(cashDelta)
	default:
		b.Amount = b.Amount.Add(cashDelta)
		b.CashBills = b.CashBills.Add(cashDelta)
	}

	b.Version++
	return nil
}

// Reset replaces the cash amount with a new base, used when an anchor
// is assigned. The whole base lands in the bills bucket; coins are
// folded back to zero.
func (b *Balance) Reset(amount decimal.Decimal) {
	b.Amount = amount
	b.CashBills = amount
	b.CashCoins = decimal.Zero
	b.Version++
}
