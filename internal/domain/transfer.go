package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus is the lifecycle of an inter-branch transfer as seen
// by the ledger core.
type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferInTransit TransferStatus = "IN_TRANSIT"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// Transfer is an inter-branch cash or bank movement between two points.
// The origin-side EXPENSE is posted when the transfer is dispatched;
// only an IN_TRANSIT transfer may be cancelled, which posts a
// compensating TRANSFER_RETURN at the origin. Completion posts the
// destination-side INCOME. COMPLETED and CANCELLED are terminal.
type Transfer struct {
	ID            string
	OriginPointID string
	DestPointID   string
	CurrencyID    string
	Amount        decimal.Decimal
	Channel       Channel
	Status        TransferStatus
	Description   string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate validates a new transfer request.
func (t *Transfer) Validate() error {
	if t.OriginPointID == t.DestPointID {
		return fmt.Errorf("%w: origin and destination are the same point", ErrValidation)
	}
	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}
	if !t.Channel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, t.Channel)
	}
	return nil
}

// CanTransition reports whether the transfer may move to next.
func (t *Transfer) CanTransition(next TransferStatus) bool {
	switch t.Status {
	case TransferPending:
		return next == TransferInTransit
	case TransferInTransit:
		return next == TransferCompleted || next == TransferCancelled
	}
	return false
}

// CanCancel reports whether cancelling the transfer would trigger a
// compensating movement. Only in-transit transfers qualify.
func (t *Transfer) CanCancel() bool {
	return t.Status == TransferInTransit
}

// ReturnChannel is where a cancelled transfer's funds flow back:
// cash-settled transfers return to bills, bank-settled to the bank
// bucket.
func (t *Transfer) ReturnChannel() Channel {
	if t.Channel == ChannelBank {
		return ChannelBank
	}
	return ChannelCashBills
}
