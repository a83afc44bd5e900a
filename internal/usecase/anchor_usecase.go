package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

// AnchorUseCase manages initial balance anchors: the base a ledger
// replay starts from. Anchors are set when a branch opens and re-set
// when an operator accepts a reconciliation discrepancy.
type AnchorUseCase struct {
	txManager  TransactionManager
	anchorRepo AnchorRepository
	auditRepo  AuditRepository
	outboxRepo OutboxRepository
	recorder   *RecorderUseCase
	idGen      IDGenerator
}

// NewAnchorUseCase creates a new AnchorUseCase.
func NewAnchorUseCase(
	txManager TransactionManager,
	anchorRepo AnchorRepository,
	auditRepo AuditRepository,
	outboxRepo OutboxRepository,
	recorder *RecorderUseCase,
	idGen IDGenerator,
) *AnchorUseCase {
	return &AnchorUseCase{
		txManager:  txManager,
		anchorRepo: anchorRepo,
		auditRepo:  auditRepo,
		outboxRepo: outboxRepo,
		recorder:   recorder,
		idGen:      idGen,
	}
}

// SetAnchorInput represents input for assigning an anchor.
type SetAnchorInput struct {
	PointID    string
	CurrencyID string
	Amount     decimal.Decimal
	ActorID    string
	Detail     string
}

// SetAnchor deactivates the current anchor, inserts the new one and
// posts the INITIAL movement that resets the chain, all in one
// transaction under the balance row lock.
func (uc *AnchorUseCase) SetAnchor(ctx context.Context, input SetAnchorInput) (*domain.InitialBalance, error) {
	if input.PointID == "" || input.CurrencyID == "" {
		return nil, fmt.Errorf("%w: point and currency are required", domain.ErrValidation)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: anchor amount cannot be negative", domain.ErrValidation)
	}

	now := time.Now().UTC()

	anchor := &domain.InitialBalance{
		ID:         uc.idGen.Generate(),
		PointID:    input.PointID,
		CurrencyID: input.CurrencyID,
		Amount:     input.Amount,
		AssignedAt: now,
		AssignedBy: input.ActorID,
		Active:     true,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	previous, err := uc.anchorRepo.GetActive(ctx, input.PointID, input.CurrencyID)
	if err != nil && !errors.Is(err, domain.ErrAnchorNotFound) {
		return nil, err
	}

	if previous != nil {
		if err := uc.anchorRepo.DeactivateTx(ctx, tx, input.PointID, input.CurrencyID); err != nil {
			return nil, err
		}
	}

	if err := uc.anchorRepo.CreateTx(ctx, tx, anchor); err != nil {
		return nil, err
	}

	// The INITIAL movement carries the base reset through the recorder
	// so the chain invariant survives the re-anchor.
	_, err = uc.recorder.RecordInTx(ctx, tx, RecordMovementInput{
		PointID:       input.PointID,
		CurrencyID:    input.CurrencyID,
		Type:          domain.MovementInitial,
		Channel:       domain.ChannelCashBills,
		Amount:        input.Amount,
		ReferenceType: domain.ReferenceAnchor,
		ReferenceID:   anchor.ID,
		Description:   input.Detail,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return nil, err
	}

	audit := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		ActorID:      input.ActorID,
		Action:       string(domain.AuditActionAnchorSet),
		PointID:      input.PointID,
		CurrencyID:   input.CurrencyID,
		ResourceType: "initial_balance",
		ResourceID:   anchor.ID,
		BeforeState:  domain.MarshalState(previous),
		AfterState:   domain.MarshalState(anchor),
		Detail:       input.Detail,
		CreatedAt:    now,
	}

	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   anchor.ID,
		AggregateType: domain.AggregateTypeBalance,
		EventType:     domain.EventTypeAnchorSet,
		Payload: domain.MarshalState(domain.AnchorSetEvent{
			AnchorID:   anchor.ID,
			PointID:    anchor.PointID,
			CurrencyID: anchor.CurrencyID,
			Amount:     anchor.Amount.String(),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.recorder.InvalidateBalance(ctx, input.PointID, input.CurrencyID)

	return anchor, nil
}

// GetActive returns the active anchor for a stream.
func (uc *AnchorUseCase) GetActive(ctx context.Context, pointID, currencyID string) (*domain.InitialBalance, error) {
	return uc.anchorRepo.GetActive(ctx, pointID, currencyID)
}
