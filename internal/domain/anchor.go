package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitialBalance anchors ledger replay for one (point, currency) pair.
// At most one anchor is active per pair at any time; superseded anchors
// are deactivated, never deleted.
type InitialBalance struct {
	ID         string
	PointID    string
	CurrencyID string
	Amount     decimal.Decimal
	AssignedAt time.Time
	AssignedBy string
	Active     bool
}
