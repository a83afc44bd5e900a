package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/infrastructure/metrics"
)

// RecorderUseCase is the only sanctioned write path into the ledger.
// Every balance mutation in the system, including anchors, corrections
// and compensations, funnels through here.
type RecorderUseCase struct {
	txManager    TransactionManager
	balanceRepo  BalanceRepository
	movementRepo MovementRepository
	outboxRepo   OutboxRepository
	idGen        IDGenerator
	cache        Cache
	retrier      Retryer
	metrics      *metrics.Metrics
	tolerance    decimal.Decimal
}

// NewRecorderUseCase creates a new RecorderUseCase. cache may be nil.
func NewRecorderUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	movementRepo MovementRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	cache Cache,
) *RecorderUseCase {
	return &RecorderUseCase{
		txManager:    txManager,
		balanceRepo:  balanceRepo,
		movementRepo: movementRepo,
		outboxRepo:   outboxRepo,
		idGen:        idGen,
		cache:        cache,
		tolerance:    decimal.RequireFromString(DriftTolerance),
	}
}

// WithRetrier makes Record retry transient database contention, such
// as deadlocks between two streams' balance-row locks.
func (uc *RecorderUseCase) WithRetrier(r Retryer) *RecorderUseCase {
	uc.retrier = r
	return uc
}

// WithMetrics enables Prometheus instrumentation. m may be nil.
func (uc *RecorderUseCase) WithMetrics(m *metrics.Metrics) *RecorderUseCase {
	uc.metrics = m
	return uc
}

// RecordMovementInput represents input for recording a movement.
type RecordMovementInput struct {
	PointID    string
	CurrencyID string
	Type       domain.MovementType
	Channel    domain.Channel
	Amount     decimal.Decimal
	// ExpectedPreviousBalance, when set, makes the write conditional on
	// the balance not having moved since the caller read it.
	ExpectedPreviousBalance *decimal.Decimal
	ReferenceType           domain.ReferenceType
	ReferenceID             string
	Description             string
	ActorID                 string
	// AllowOverdraft lets an expense drive the balance negative.
	AllowOverdraft bool
}

func (in *RecordMovementInput) validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidMovementType, in.Type)
	}
	if in.Channel == "" {
		in.Channel = domain.ChannelCashBills
	}
	if !in.Channel.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidChannel, in.Channel)
	}
	if in.PointID == "" || in.CurrencyID == "" {
		return fmt.Errorf("%w: point and currency are required", domain.ErrValidation)
	}
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return err
	}
	return domain.ValidateDescription(in.Description)
}

// Record posts one movement in its own transaction. Retried calls with
// the same (point, currency, type, reference) key return the movement
// already posted instead of double-posting.
func (uc *RecorderUseCase) Record(ctx context.Context, input RecordMovementInput) (*domain.Movement, error) {
	if err := input.validate(); err != nil {
		uc.observeRejection(err)
		return nil, err
	}

	var movement *domain.Movement
	post := func() error {
		tx, err := uc.txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		movement, err = uc.RecordInTx(ctx, tx, input)
		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, post)
	} else {
		err = post()
	}
	if err != nil {
		uc.observeRejection(err)
		return nil, err
	}

	uc.InvalidateBalance(ctx, input.PointID, input.CurrencyID)

	return movement, nil
}

// RecordInTx posts one movement inside a caller-owned transaction. The
// caller is responsible for committing and for invalidating the balance
// cache afterwards. Sibling use cases (reversal, anchoring,
// corrections) use this so their status changes land atomically with
// the ledger write.
func (uc *RecorderUseCase) RecordInTx(ctx context.Context, tx Transaction, input RecordMovementInput) (*domain.Movement, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	// Dedup before any write: a retried call finds the first posting.
	if input.ReferenceType != "" && input.ReferenceID != "" {
		existing, err := uc.movementRepo.GetByReference(ctx, tx, input.PointID, input.CurrencyID, input.Type, input.ReferenceType, input.ReferenceID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrMovementNotFound) {
			return nil, err
		}
	}

	balance, err := uc.lockBalance(ctx, tx, input.PointID, input.CurrencyID)
	if err != nil {
		return nil, err
	}

	if input.ExpectedPreviousBalance != nil {
		gap := balance.Amount.Sub(*input.ExpectedPreviousBalance).Abs()
		if gap.GreaterThan(uc.tolerance) {
			return nil, fmt.Errorf("%w: expected %s, found %s",
				domain.ErrConcurrencyConflict, input.ExpectedPreviousBalance, balance.Amount)
		}
	}

	amount := domain.NormalizedAmount(input.Type, input.Amount)

	if input.Type == domain.MovementExpense && !input.AllowOverdraft {
		if err := uc.validateFunds(balance, input.Channel, amount); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()

	movement := &domain.Movement{
		ID:              uc.idGen.Generate(),
		PointID:         input.PointID,
		CurrencyID:      input.CurrencyID,
		Type:            input.Type,
		Channel:         input.Channel,
		Amount:          amount,
		PreviousBalance: balance.Amount,
		ReferenceType:   input.ReferenceType,
		ReferenceID:     input.ReferenceID,
		Description:     input.Description,
		ActorID:         input.ActorID,
		CreatedAt:       now,
	}

	if input.Type == domain.MovementInitial {
		// An anchor is a base reset, not a delta: the chain restarts at
		// the anchored amount.
		movement.NewBalance = amount
		balance.Reset(amount)
	} else {
		cashDelta, err := movement.CashDelta()
		if err != nil {
			return nil, err
		}
		movement.NewBalance = balance.Amount.Add(cashDelta)
		if err := balance.Apply(movement); err != nil {
			return nil, err
		}
	}

	if err := movement.Validate(); err != nil {
		return nil, err
	}

	if err := uc.movementRepo.Create(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := uc.balanceRepo.Update(ctx, tx, balance, now); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   movement.ID,
		AggregateType: domain.AggregateTypeMovement,
		EventType:     domain.EventTypeMovementRecorded,
		Payload: domain.MarshalState(domain.MovementRecordedEvent{
			MovementID: movement.ID,
			PointID:    movement.PointID,
			CurrencyID: movement.CurrencyID,
			Type:       string(movement.Type),
			Channel:    string(movement.Channel),
			Amount:     movement.Amount.String(),
			NewBalance: movement.NewBalance.String(),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	uc.observeRecorded(movement)

	return movement, nil
}

func (uc *RecorderUseCase) observeRecorded(m *domain.Movement) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.MovementsRecorded.WithLabelValues(string(m.Type), string(m.Channel)).Inc()
	uc.metrics.MovementAmount.Observe(m.Amount.Abs().InexactFloat64())
	uc.metrics.StreamBalance.WithLabelValues(m.PointID, m.CurrencyID).Set(m.NewBalance.InexactFloat64())
}

func (uc *RecorderUseCase) observeRejection(err error) {
	if uc.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrConcurrencyConflict):
		uc.metrics.ConcurrencyConflicts.Inc()
		uc.metrics.MovementRejections.WithLabelValues("concurrency_conflict").Inc()
	case errors.Is(err, domain.ErrInsufficientBalance):
		uc.metrics.MovementRejections.WithLabelValues("insufficient_balance").Inc()
	case errors.Is(err, domain.ErrDuplicateMovement):
		uc.metrics.MovementRejections.WithLabelValues("duplicate").Inc()
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidMovementType),
		errors.Is(err, domain.ErrInvalidChannel),
		errors.Is(err, domain.ErrInvalidAmount):
		uc.metrics.MovementRejections.WithLabelValues("validation").Inc()
	}
}

// InvalidateBalance drops the cached balance for a stream after a
// committed mutation.
func (uc *RecorderUseCase) InvalidateBalance(ctx context.Context, pointID, currencyID string) {
	if uc.cache == nil {
		return
	}
	_ = uc.cache.Delete(ctx, balanceCacheKey(pointID, currencyID))
}

func (uc *RecorderUseCase) lockBalance(ctx context.Context, tx Transaction, pointID, currencyID string) (*domain.Balance, error) {
	balance, err := uc.balanceRepo.GetForUpdate(ctx, tx, pointID, currencyID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, domain.ErrBalanceNotFound) {
		return nil, err
	}

	// First movement on this stream: materialize the zero row. The
	// insert itself takes the row lock.
	balance = domain.NewZeroBalance(pointID, currencyID)
	if err := uc.balanceRepo.CreateTx(ctx, tx, balance); err != nil {
		return nil, err
	}

	return balance, nil
}

func (uc *RecorderUseCase) validateFunds(balance *domain.Balance, channel domain.Channel, amount decimal.Decimal) error {
	if channel == domain.ChannelBank {
		if amount.Abs().GreaterThan(balance.Bank) {
			return domain.ErrInsufficientBalance
		}
		return nil
	}
	return balance.ValidateExpense(amount)
}

func balanceCacheKey(pointID, currencyID string) string {
	return "balance:" + pointID + ":" + currencyID
}
