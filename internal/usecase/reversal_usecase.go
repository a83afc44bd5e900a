package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/metrics"
)

// ReversalUseCase drives the transfer lifecycle the ledger consumes and
// posts compensating movements for cancellations. Reversal is just
// another movement through the recorder; originals are never edited.
type ReversalUseCase struct {
	txManager    TransactionManager
	transferRepo TransferRepository
	movementRepo MovementRepository
	outboxRepo   OutboxRepository
	recorder     *RecorderUseCase
	idGen        IDGenerator
	metrics      *metrics.Metrics
}

// NewReversalUseCase creates a new ReversalUseCase.
func NewReversalUseCase(
	txManager TransactionManager,
	transferRepo TransferRepository,
	movementRepo MovementRepository,
	outboxRepo OutboxRepository,
	recorder *RecorderUseCase,
	idGen IDGenerator,
) *ReversalUseCase {
	return &ReversalUseCase{
		txManager:    txManager,
		transferRepo: transferRepo,
		movementRepo: movementRepo,
		outboxRepo:   outboxRepo,
		recorder:     recorder,
		idGen:        idGen,
	}
}

// WithMetrics enables Prometheus instrumentation. m may be nil.
func (uc *ReversalUseCase) WithMetrics(m *metrics.Metrics) *ReversalUseCase {
	uc.metrics = m
	return uc
}

// CreateTransferInput represents input for opening a transfer.
type CreateTransferInput struct {
	OriginPointID string
	DestPointID   string
	CurrencyID    string
	Amount        string
	Channel       domain.Channel
	Description   string
	ActorID       string
}

// CreateTransfer opens a PENDING transfer. No ledger movement is
// posted until dispatch.
func (uc *ReversalUseCase) CreateTransfer(ctx context.Context, input CreateTransferInput) (*domain.Transfer, error) {
	amount, err := domain.ParseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	transfer := &domain.Transfer{
		ID:            uc.idGen.Generate(),
		OriginPointID: input.OriginPointID,
		DestPointID:   input.DestPointID,
		CurrencyID:    input.CurrencyID,
		Amount:        amount,
		Channel:       input.Channel,
		Status:        domain.TransferPending,
		Description:   input.Description,
		CreatedBy:     input.ActorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if transfer.Channel == "" {
		transfer.Channel = domain.ChannelCashBills
	}

	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	if err := uc.transferRepo.Create(ctx, transfer); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransfersCreated.Inc()
	}

	return transfer, nil
}

// Dispatch moves a PENDING transfer to IN_TRANSIT and posts the
// origin-side expense atomically with the status change.
func (uc *ReversalUseCase) Dispatch(ctx context.Context, transferID, actorID string) (*domain.Transfer, error) {
	return uc.transition(ctx, transferID, domain.TransferInTransit, func(ctx context.Context, tx Transaction, t *domain.Transfer) error {
		_, err := uc.recorder.RecordInTx(ctx, tx, RecordMovementInput{
			PointID:       t.OriginPointID,
			CurrencyID:    t.CurrencyID,
			Type:          domain.MovementExpense,
			Channel:       t.Channel,
			Amount:        t.Amount,
			ReferenceType: domain.ReferenceTransfer,
			ReferenceID:   t.ID,
			Description:   t.Description,
			ActorID:       actorID,
		})
		return err
	})
}

// Complete moves an IN_TRANSIT transfer to COMPLETED and posts the
// destination-side income.
func (uc *ReversalUseCase) Complete(ctx context.Context, transferID, actorID string) (*domain.Transfer, error) {
	return uc.transition(ctx, transferID, domain.TransferCompleted, func(ctx context.Context, tx Transaction, t *domain.Transfer) error {
		_, err := uc.recorder.RecordInTx(ctx, tx, RecordMovementInput{
			PointID:       t.DestPointID,
			CurrencyID:    t.CurrencyID,
			Type:          domain.MovementIncome,
			Channel:       t.Channel,
			Amount:        t.Amount,
			ReferenceType: domain.ReferenceTransfer,
			ReferenceID:   t.ID,
			Description:   t.Description,
			ActorID:       actorID,
		})
		return err
	})
}

// Cancel moves an IN_TRANSIT transfer to CANCELLED and posts the
// compensating TRANSFER_RETURN at the origin, routed back to the
// channel the transfer was settled from.
func (uc *ReversalUseCase) Cancel(ctx context.Context, transferID, actorID, reason string) (*domain.Transfer, error) {
	transfer, err := uc.transition(ctx, transferID, domain.TransferCancelled, func(ctx context.Context, tx Transaction, t *domain.Transfer) error {
		// The dispatch expense took -amount from the origin; the return
		// puts +amount back.
		movement, err := uc.recorder.RecordInTx(ctx, tx, RecordMovementInput{
			PointID:       t.OriginPointID,
			CurrencyID:    t.CurrencyID,
			Type:          domain.MovementTransferReturn,
			Channel:       t.ReturnChannel(),
			Amount:        t.Amount,
			ReferenceType: domain.ReferenceTransfer,
			ReferenceID:   t.ID,
			Description:   fmt.Sprintf("transfer %s cancelled: %s", t.ID, reason),
			ActorID:       actorID,
		})
		if err != nil {
			return err
		}

		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   t.ID,
			AggregateType: domain.AggregateTypeTransfer,
			EventType:     domain.EventTypeTransferCancelled,
			Payload: domain.MarshalState(domain.TransferCancelledEvent{
				TransferID:       t.ID,
				ReturnMovementID: movement.ID,
				OriginPointID:    t.OriginPointID,
				Amount:           t.Amount.String(),
				Reason:           reason,
			}),
			CreatedAt: time.Now().UTC(),
		}

		return uc.outboxRepo.Create(ctx, tx, event)
	})
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.TransferErrors.WithLabelValues("cancel").Inc()
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransfersCancelled.Inc()
	}

	return transfer, nil
}

// ReverseMovement posts a generic compensation for a single movement:
// an ADJUSTMENT carrying the negated delta on the same channel.
func (uc *ReversalUseCase) ReverseMovement(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error) {
	original, err := uc.movementRepo.GetByID(ctx, movementID)
	if err != nil {
		return nil, err
	}

	delta, err := domain.Delta(original.Type, original.Amount)
	if err != nil {
		return nil, err
	}

	return uc.recorder.Record(ctx, RecordMovementInput{
		PointID:       original.PointID,
		CurrencyID:    original.CurrencyID,
		Type:          domain.MovementAdjustment,
		Channel:       original.Channel,
		Amount:        delta.Neg(),
		ReferenceType: domain.ReferenceReversal,
		ReferenceID:   original.ID,
		Description:   fmt.Sprintf("reversal of movement %s: %s", original.ID, reason),
		ActorID:       actorID,
	})
}

// GetTransfer retrieves a transfer by ID.
func (uc *ReversalUseCase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return uc.transferRepo.GetByID(ctx, id)
}

// ListTransfersByPoint lists transfers touching a point.
func (uc *ReversalUseCase) ListTransfersByPoint(ctx context.Context, pointID string, limit, offset int) ([]*domain.Transfer, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.transferRepo.ListByPoint(ctx, pointID, limit, offset)
}

// transition locks the transfer, validates the state machine, runs the
// ledger side effect and persists the status change, all in one
// transaction.
func (uc *ReversalUseCase) transition(
	ctx context.Context,
	transferID string,
	next domain.TransferStatus,
	effect func(ctx context.Context, tx Transaction, t *domain.Transfer) error,
) (*domain.Transfer, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	transfer, err := uc.transferRepo.GetByIDForUpdate(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}

	if !transfer.CanTransition(next) {
		if next == domain.TransferCancelled {
			return nil, fmt.Errorf("%w: status is %s", domain.ErrTransferNotCancellable, transfer.Status)
		}
		return nil, fmt.Errorf("%w: cannot move %s transfer to %s", domain.ErrValidation, transfer.Status, next)
	}

	if err := effect(ctx, tx, transfer); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := uc.transferRepo.UpdateStatus(ctx, tx, transfer.ID, next, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	transfer.Status = next
	transfer.UpdatedAt = now

	uc.recorder.InvalidateBalance(ctx, transfer.OriginPointID, transfer.CurrencyID)
	uc.recorder.InvalidateBalance(ctx, transfer.DestPointID, transfer.CurrencyID)

	return transfer, nil
}
