package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// RecordMovementRequest represents a request to record a movement.
type RecordMovementRequest struct {
	PointID                 string           `json:"point_id"`
	CurrencyID              string           `json:"currency_id"`
	Type                    string           `json:"type"`
	Channel                 string           `json:"channel,omitempty"`
	Amount                  decimal.Decimal  `json:"amount"`
	ExpectedPreviousBalance *decimal.Decimal `json:"expected_previous_balance,omitempty"`
	ReferenceType           string           `json:"reference_type,omitempty"`
	ReferenceID             string           `json:"reference_id,omitempty"`
	Description             string           `json:"description,omitempty"`
	ActorID                 string           `json:"actor_id,omitempty"`
	AllowOverdraft          bool             `json:"allow_overdraft,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordMovementRequest) ToUseCaseInput() usecase.RecordMovementInput {
	return usecase.RecordMovementInput{
		PointID:                 r.PointID,
		CurrencyID:              r.CurrencyID,
		Type:                    domain.MovementType(r.Type),
		Channel:                 domain.Channel(r.Channel),
		Amount:                  r.Amount,
		ExpectedPreviousBalance: r.ExpectedPreviousBalance,
		ReferenceType:           domain.ReferenceType(r.ReferenceType),
		ReferenceID:             r.ReferenceID,
		Description:             r.Description,
		ActorID:                 r.ActorID,
		AllowOverdraft:          r.AllowOverdraft,
	}
}

// SetAnchorRequest represents a request to assign an initial balance anchor.
type SetAnchorRequest struct {
	PointID    string          `json:"point_id"`
	CurrencyID string          `json:"currency_id"`
	Amount     decimal.Decimal `json:"amount"`
	ActorID    string          `json:"actor_id,omitempty"`
	Detail     string          `json:"detail,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SetAnchorRequest) ToUseCaseInput() usecase.SetAnchorInput {
	return usecase.SetAnchorInput{
		PointID:    r.PointID,
		CurrencyID: r.CurrencyID,
		Amount:     r.Amount,
		ActorID:    r.ActorID,
		Detail:     r.Detail,
	}
}

// CreateTransferRequest represents a request to open a transfer.
type CreateTransferRequest struct {
	OriginPointID string `json:"origin_point_id"`
	DestPointID   string `json:"dest_point_id"`
	CurrencyID    string `json:"currency_id"`
	Amount        string `json:"amount"`
	Channel       string `json:"channel,omitempty"`
	Description   string `json:"description,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransferRequest) ToUseCaseInput() usecase.CreateTransferInput {
	return usecase.CreateTransferInput{
		OriginPointID: r.OriginPointID,
		DestPointID:   r.DestPointID,
		CurrencyID:    r.CurrencyID,
		Amount:        r.Amount,
		Channel:       domain.Channel(r.Channel),
		Description:   r.Description,
		ActorID:       r.ActorID,
	}
}

// TransferActionRequest carries the actor and optional reason for a
// transfer state transition.
type TransferActionRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ReverseMovementRequest represents a request to reverse a movement.
type ReverseMovementRequest struct {
	ActorID string `json:"actor_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ReconcileRequest selects the stream and cutoff for a replay.
type ReconcileRequest struct {
	PointID    string     `json:"point_id"`
	CurrencyID string     `json:"currency_id"`
	AsOf       *time.Time `json:"as_of,omitempty"`
}

// ApplyCorrectionRequest resolves a previously reported drift.
type ApplyCorrectionRequest struct {
	PointID    string     `json:"point_id"`
	CurrencyID string     `json:"currency_id"`
	AsOf       *time.Time `json:"as_of,omitempty"`
	Mode       string     `json:"mode"`
	ActorID    string     `json:"actor_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}
