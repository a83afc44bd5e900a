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

// CorrectionMode selects how an operator resolves reported drift.
type CorrectionMode string

const (
	// CorrectionAdjust posts an ADJUSTMENT moving the aggregate to the
	// theoretical balance.
	CorrectionAdjust CorrectionMode = "adjust"
	// CorrectionReanchor accepts the recorded balance by assigning a
	// new anchor equal to it.
	CorrectionReanchor CorrectionMode = "reanchor"
)

// ReconciliationUseCase replays the ledger from the active anchor and
// compares the theoretical balance against the materialized aggregate.
// Findings are data; corrections are explicit and operator-invoked.
type ReconciliationUseCase struct {
	balanceRepo  BalanceRepository
	movementRepo MovementRepository
	anchorRepo   AnchorRepository
	auditRepo    AuditRepository
	outboxRepo   OutboxRepository
	txManager    TransactionManager
	recorder     *RecorderUseCase
	anchors      *AnchorUseCase
	idGen        IDGenerator
	metrics      *metrics.Metrics
	tolerance    decimal.Decimal
}

// NewReconciliationUseCase creates a new ReconciliationUseCase.
func NewReconciliationUseCase(
	balanceRepo BalanceRepository,
	movementRepo MovementRepository,
	anchorRepo AnchorRepository,
	auditRepo AuditRepository,
	outboxRepo OutboxRepository,
	txManager TransactionManager,
	recorder *RecorderUseCase,
	anchors *AnchorUseCase,
	idGen IDGenerator,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		balanceRepo:  balanceRepo,
		movementRepo: movementRepo,
		anchorRepo:   anchorRepo,
		auditRepo:    auditRepo,
		outboxRepo:   outboxRepo,
		txManager:    txManager,
		recorder:     recorder,
		anchors:      anchors,
		idGen:        idGen,
		tolerance:    decimal.RequireFromString(DriftTolerance),
	}
}

// WithTolerance overrides the drift tolerance.
func (uc *ReconciliationUseCase) WithTolerance(tolerance decimal.Decimal) *ReconciliationUseCase {
	uc.tolerance = tolerance
	return uc
}

// WithMetrics enables Prometheus instrumentation. m may be nil.
func (uc *ReconciliationUseCase) WithMetrics(m *metrics.Metrics) *ReconciliationUseCase {
	uc.metrics = m
	return uc
}

// ReconciliationResult is one stream's replay outcome.
type ReconciliationResult struct {
	PointID       string
	CurrencyID    string
	AnchorID      string
	AnchorAmount  decimal.Decimal
	MissingAnchor bool
	Theoretical   decimal.Decimal
	Recorded      decimal.Decimal
	Drift         decimal.Decimal
	Reconciled    bool
	Movements     int
	ExcludedBank  int
	// Corrections counts reconciliation-posted adjustments in the
	// window. Each is a resync of the fold, not business volume.
	Corrections int
	AsOf        time.Time
	CheckedAt   time.Time
}

// Reconcile replays one stream up to asOf (zero value means now).
func (uc *ReconciliationUseCase) Reconcile(ctx context.Context, pointID, currencyID string, asOf time.Time) (*ReconciliationResult, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	result := &ReconciliationResult{
		PointID:    pointID,
		CurrencyID: currencyID,
		AsOf:       asOf,
		CheckedAt:  time.Now().UTC(),
	}

	theoretical := decimal.Zero
	replayFrom := time.Time{}

	anchor, err := uc.anchorRepo.GetActiveAt(ctx, pointID, currencyID, asOf)
	switch {
	case err == nil:
		theoretical = anchor.Amount
		replayFrom = anchor.AssignedAt
		result.AnchorID = anchor.ID
		result.AnchorAmount = anchor.Amount
	case errors.Is(err, domain.ErrAnchorNotFound):
		// Replay from zero; flagged so tooling can surface it.
		result.MissingAnchor = true
	default:
		return nil, err
	}

	movements, err := uc.movementRepo.ListForReplay(ctx, pointID, currencyID, replayFrom, asOf)
	if err != nil {
		return nil, err
	}

	for _, m := range movements {
		// Bank activity is tracked in its own bucket and must not
		// double-count into the cash replay.
		if m.Channel == domain.ChannelBank {
			result.ExcludedBank++
			continue
		}
		if m.Type == domain.MovementInitial {
			// The anchor already carries the base; a later INITIAL in
			// the window resets the fold to its recorded base.
			theoretical = m.NewBalance
			continue
		}
		if m.IsCorrection() {
			// A correction moved the aggregate to the theoretical value
			// of its time. It compensates an external edit that was
			// never a ledger fact, so folding its delta would reopen
			// the very drift it closed. Resync on its result instead.
			theoretical = m.NewBalance
			result.Corrections++
			continue
		}

		delta, err := domain.Delta(m.Type, m.Amount)
		if err != nil {
			return nil, fmt.Errorf("movement %s: %w", m.ID, err)
		}

		theoretical = theoretical.Add(delta)
		result.Movements++
	}

	balance, err := uc.balanceRepo.Get(ctx, pointID, currencyID)
	if err != nil {
		if !errors.Is(err, domain.ErrBalanceNotFound) {
			return nil, err
		}
		balance = domain.NewZeroBalance(pointID, currencyID)
	}

	result.Theoretical = theoretical
	result.Recorded = balance.Amount
	result.Drift = balance.Amount.Sub(theoretical)
	result.Reconciled = result.Drift.Abs().LessThanOrEqual(uc.tolerance)

	uc.observeRun(result)

	return result, nil
}

func (uc *ReconciliationUseCase) observeRun(result *ReconciliationResult) {
	if uc.metrics == nil {
		return
	}
	status := "drift"
	if result.Reconciled {
		status = "reconciled"
	}
	uc.metrics.ReconciliationRuns.WithLabelValues(status).Inc()
	uc.metrics.ReconciliationDrift.WithLabelValues(result.PointID, result.CurrencyID).Set(result.Drift.InexactFloat64())
	uc.metrics.ReconciliationLatency.Observe(time.Since(result.CheckedAt).Seconds())
}

// ReconciliationReport aggregates replay results across all streams.
type ReconciliationReport struct {
	TotalStreams      int
	ReconciledStreams int
	Discrepancies     []*ReconciliationResult
	CheckedAt         time.Time
}

// ReconcileAll replays every stream that has movements.
func (uc *ReconciliationUseCase) ReconcileAll(ctx context.Context, asOf time.Time) (*ReconciliationReport, error) {
	streams, err := uc.movementRepo.ListStreams(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, s := range streams {
		result, err := uc.Reconcile(ctx, s.PointID, s.CurrencyID, asOf)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s/%s: %w", s.PointID, s.CurrencyID, err)
		}

		report.TotalStreams++
		if result.Reconciled {
			report.ReconciledStreams++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}

// ApplyCorrection resolves reported drift. Never called automatically:
// operational tooling presents the result to a human first. Both modes
// run through the recorder so the chain invariant holds.
func (uc *ReconciliationUseCase) ApplyCorrection(ctx context.Context, result *ReconciliationResult, mode CorrectionMode, actorID, reason string) (*domain.Movement, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil reconciliation result", domain.ErrValidation)
	}
	if result.Reconciled {
		return nil, fmt.Errorf("%w: stream is reconciled, nothing to correct", domain.ErrValidation)
	}

	switch mode {
	case CorrectionAdjust:
		movement, err := uc.correctByAdjustment(ctx, result, actorID, reason)
		if err != nil {
			return nil, err
		}
		uc.observeCorrection(CorrectionAdjust)
		return movement, nil
	case CorrectionReanchor:
		_, err := uc.anchors.SetAnchor(ctx, SetAnchorInput{
			PointID:    result.PointID,
			CurrencyID: result.CurrencyID,
			Amount:     result.Recorded,
			ActorID:    actorID,
			Detail:     fmt.Sprintf("re-anchor accepting drift %s: %s", result.Drift, reason),
		})
		if err != nil {
			return nil, err
		}
		uc.observeCorrection(CorrectionReanchor)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown correction mode %q", domain.ErrValidation, mode)
	}
}

func (uc *ReconciliationUseCase) observeCorrection(mode CorrectionMode) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.CorrectionsApplied.WithLabelValues(string(mode)).Inc()
}

func (uc *ReconciliationUseCase) correctByAdjustment(ctx context.Context, result *ReconciliationResult, actorID, reason string) (*domain.Movement, error) {
	correctionID := uc.idGen.Generate()
	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Moving the aggregate to theoretical means posting the negated drift.
	movement, err := uc.recorder.RecordInTx(ctx, tx, RecordMovementInput{
		PointID:       result.PointID,
		CurrencyID:    result.CurrencyID,
		Type:          domain.MovementAdjustment,
		Channel:       domain.ChannelCashBills,
		Amount:        result.Drift.Neg(),
		ReferenceType: domain.ReferenceReconciliation,
		ReferenceID:   correctionID,
		Description:   reason,
		ActorID:       actorID,
	})
	if err != nil {
		return nil, err
	}

	audit := &domain.AuditLog{
		ID:           uc.idGen.Generate(),
		ActorID:      actorID,
		Action:       string(domain.AuditActionCorrection),
		PointID:      result.PointID,
		CurrencyID:   result.CurrencyID,
		ResourceType: "movement",
		ResourceID:   movement.ID,
		BeforeState:  domain.MarshalState(map[string]string{"recorded": result.Recorded.String()}),
		AfterState:   domain.MarshalState(map[string]string{"recorded": result.Theoretical.String()}),
		Detail:       reason,
		CreatedAt:    now,
	}

	if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   movement.ID,
		AggregateType: domain.AggregateTypeBalance,
		EventType:     domain.EventTypeBalanceCorrected,
		Payload: domain.MarshalState(domain.BalanceCorrectedEvent{
			PointID:     result.PointID,
			CurrencyID:  result.CurrencyID,
			Drift:       result.Drift.String(),
			Theoretical: result.Theoretical.String(),
			Mode:        string(CorrectionAdjust),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.recorder.InvalidateBalance(ctx, result.PointID, result.CurrencyID)

	return movement, nil
}
