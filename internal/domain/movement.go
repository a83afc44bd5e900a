package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a ledger movement. The set is closed: any
// type outside it is rejected at validation time instead of being
// treated as a raw signed delta.
type MovementType string

const (
	MovementIncome         MovementType = "INCOME"
	MovementExpense        MovementType = "EXPENSE"
	MovementAdjustment     MovementType = "ADJUSTMENT"
	MovementInitial        MovementType = "INITIAL"
	MovementTransferReturn MovementType = "TRANSFER_RETURN"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIncome, MovementExpense, MovementAdjustment, MovementInitial, MovementTransferReturn:
		return true
	}
	return false
}

// Channel identifies which bucket of a balance a movement settles in.
// It is a first-class column so bank activity never has to be inferred
// from description text.
type Channel string

const (
	ChannelCashBills Channel = "CASH_BILLS"
	ChannelCashCoins Channel = "CASH_COINS"
	ChannelBank      Channel = "BANK"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelCashBills, ChannelCashCoins, ChannelBank:
		return true
	}
	return false
}

// ReferenceType ties a movement back to the operation that produced it.
type ReferenceType string

const (
	ReferenceExchange       ReferenceType = "EXCHANGE"
	ReferenceTransfer       ReferenceType = "TRANSFER"
	ReferenceExternalRemit  ReferenceType = "EXTERNAL_REMITTANCE"
	ReferenceReconciliation ReferenceType = "RECONCILIATION"
	ReferenceAnchor         ReferenceType = "ANCHOR"
	ReferenceReversal       ReferenceType = "REVERSAL"
	ReferenceManual         ReferenceType = "MANUAL"
)

// Movement is one immutable signed fact in a point's per-currency
// ledger. It is only ever written by the recorder; chain repair may
// correct PreviousBalance/NewBalance as an administrative exception,
// and the duplicate sweep may delete rows under a transaction.
type Movement struct {
	ID              string
	PointID         string
	CurrencyID      string
	Type            MovementType
	Channel         Channel
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	ReferenceType   ReferenceType
	ReferenceID     string
	Description     string
	ActorID         string
	Sequence        int64
	CreatedAt       time.Time
}

// Delta maps (type, amount) to the signed balance change the movement
// causes. INCOME and EXPENSE force the sign; ADJUSTMENT and
// TRANSFER_RETURN keep the caller-supplied sign; INITIAL seeds the
// anchor and contributes nothing to summation. Unknown types fail
// closed.
func Delta(t MovementType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case MovementIncome:
		return amount.Abs(), nil
	case MovementExpense:
		return amount.Abs().Neg(), nil
	case MovementAdjustment, MovementTransferReturn:
		return amount, nil
	case MovementInitial:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMovementType, t)
	}
}

// CashDelta is the movement's effect on the cash balance chain.
// Bank-channel movements settle in the bank bucket and leave the cash
// chain flat.
func (m *Movement) CashDelta() (decimal.Decimal, error) {
	if m.Channel == ChannelBank {
		return decimal.Zero, nil
	}
	return Delta(m.Type, m.Amount)
}

// NormalizedAmount returns the amount as it must be persisted:
// EXPENSE non-positive, INCOME non-negative, other types untouched.
func NormalizedAmount(t MovementType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case MovementIncome:
		return amount.Abs()
	case MovementExpense:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// Validate checks the movement's type, channel and sign convention.
func (m *Movement) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMovementType, m.Type)
	}
	if !m.Channel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, m.Channel)
	}
	if m.PointID == "" || m.CurrencyID == "" {
		return fmt.Errorf("%w: point and currency are required", ErrValidation)
	}
	switch m.Type {
	case MovementExpense:
		if m.Amount.IsPositive() {
			return fmt.Errorf("%w: expense amount must be non-positive", ErrValidation)
		}
	case MovementIncome:
		if m.Amount.IsNegative() {
			return fmt.Errorf("%w: income amount must be non-negative", ErrValidation)
		}
	}
	return nil
}

// DedupKey reports whether the movement carries a reference usable for
// duplicate detection.
func (m *Movement) DedupKey() bool {
	return m.ReferenceType != "" && m.ReferenceID != ""
}

// IsCorrection reports whether the movement is a reconciliation-posted
// aggregate correction. Corrections repair the aggregate against an
// external edit that never passed through the ledger, so replay and the
// chain walk treat them as a resync point rather than business volume.
func (m *Movement) IsCorrection() bool {
	return m.Type == MovementAdjustment && m.ReferenceType == ReferenceReconciliation
}
