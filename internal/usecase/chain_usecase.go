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

// ChainUseCase verifies and repairs the per-stream balance chain: each
// movement's stored previous balance must equal the prior movement's
// resulting balance. It also owns the explicit duplicate sweep, the
// only procedure allowed to delete ledger rows.
type ChainUseCase struct {
	txManager    TransactionManager
	balanceRepo  BalanceRepository
	movementRepo MovementRepository
	anchorRepo   AnchorRepository
	auditRepo    AuditRepository
	recorder     *RecorderUseCase
	idGen        IDGenerator
	metrics      *metrics.Metrics
	tolerance    decimal.Decimal
}

// NewChainUseCase creates a new ChainUseCase.
func NewChainUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	movementRepo MovementRepository,
	anchorRepo AnchorRepository,
	auditRepo AuditRepository,
	recorder *RecorderUseCase,
	idGen IDGenerator,
) *ChainUseCase {
	return &ChainUseCase{
		txManager:    txManager,
		balanceRepo:  balanceRepo,
		movementRepo: movementRepo,
		anchorRepo:   anchorRepo,
		auditRepo:    auditRepo,
		recorder:     recorder,
		idGen:        idGen,
		tolerance:    decimal.RequireFromString(DriftTolerance),
	}
}

// WithMetrics enables Prometheus instrumentation. m may be nil.
func (uc *ChainUseCase) WithMetrics(m *metrics.Metrics) *ChainUseCase {
	uc.metrics = m
	return uc
}

// ChainBreak is one detected discontinuity.
type ChainBreak struct {
	MovementID string
	Sequence   int64
	Expected   decimal.Decimal
	Actual     decimal.Decimal
}

// ChainReport is the outcome of a chain integrity check.
type ChainReport struct {
	PointID    string
	CurrencyID string
	Checked    int
	Breaks     []ChainBreak
	CheckedAt  time.Time
}

// Intact reports whether the chain had no breaks.
func (r *ChainReport) Intact() bool {
	return len(r.Breaks) == 0
}

// Check walks one stream in sequence order and reports every entry
// whose stored previous balance disagrees with the running chain.
// Report-only: findings are data, never auto-fixed.
func (uc *ChainUseCase) Check(ctx context.Context, pointID, currencyID string) (*ChainReport, error) {
	movements, err := uc.movementRepo.ListAllOrdered(ctx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	report := &ChainReport{
		PointID:    pointID,
		CurrencyID: currencyID,
		Breaks:     make([]ChainBreak, 0),
		CheckedAt:  time.Now().UTC(),
	}

	if len(movements) == 0 {
		return report, nil
	}

	expected, err := uc.chainBase(ctx, pointID, currencyID, movements[0])
	if err != nil {
		return nil, err
	}

	for _, m := range movements {
		report.Checked++

		if m.Type == domain.MovementInitial || m.IsCorrection() {
			// Base resets and reconciliation corrections restart the
			// chain at their recorded balance. A correction's previous
			// balance is the externally edited aggregate it repaired,
			// not the prior entry's result.
			expected = m.NewBalance
			continue
		}

		if m.PreviousBalance.Sub(expected).Abs().GreaterThan(uc.tolerance) {
			report.Breaks = append(report.Breaks, ChainBreak{
				MovementID: m.ID,
				Sequence:   m.Sequence,
				Expected:   expected,
				Actual:     m.PreviousBalance,
			})
			// Resynchronize on the row's stored result so one broken
			// row is not reported as N cascading breaks.
			expected = m.NewBalance
			continue
		}

		cashDelta, err := m.CashDelta()
		if err != nil {
			return nil, fmt.Errorf("movement %s: %w", m.ID, err)
		}
		expected = expected.Add(cashDelta)
	}

	if uc.metrics != nil && len(report.Breaks) > 0 {
		uc.metrics.ChainBreaksDetected.Add(float64(len(report.Breaks)))
	}

	return report, nil
}

// CheckAll checks every stream with movements.
func (uc *ChainUseCase) CheckAll(ctx context.Context) ([]*ChainReport, error) {
	streams, err := uc.movementRepo.ListStreams(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*ChainReport, 0, len(streams))
	for _, s := range streams {
		report, err := uc.Check(ctx, s.PointID, s.CurrencyID)
		if err != nil {
			return nil, fmt.Errorf("check %s/%s: %w", s.PointID, s.CurrencyID, err)
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// ChainRewrite describes one movement the repair would (or did) rewrite.
type ChainRewrite struct {
	MovementID     string
	Sequence       int64
	PreviousBefore decimal.Decimal
	PreviousAfter  decimal.Decimal
	NewBefore      decimal.Decimal
	NewAfter       decimal.Decimal
}

// RepairReport is the outcome of a chain repair run.
type RepairReport struct {
	PointID       string
	CurrencyID    string
	Checked       int
	Rewrites      []ChainRewrite
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Applied       bool
	RepairedAt    time.Time
}

// Repair recomputes the chain for one stream and rewrites every entry
// whose stored balances disagree, then aligns the aggregate with the
// final recomputed balance. With apply=false it only reports what it
// would change. Apply mode runs in one transaction under the balance
// lock and audit-logs every rewritten row.
func (uc *ChainUseCase) Repair(ctx context.Context, pointID, currencyID string, apply bool, actorID string) (*RepairReport, error) {
	report := &RepairReport{
		PointID:    pointID,
		CurrencyID: currencyID,
		Rewrites:   make([]ChainRewrite, 0),
		RepairedAt: time.Now().UTC(),
	}

	if !apply {
		movements, err := uc.movementRepo.ListAllOrdered(ctx, pointID, currencyID)
		if err != nil {
			return nil, err
		}

		balance, err := uc.balanceRepo.Get(ctx, pointID, currencyID)
		if err != nil {
			if !errors.Is(err, domain.ErrBalanceNotFound) {
				return nil, err
			}
			balance = domain.NewZeroBalance(pointID, currencyID)
		}

		if _, err := uc.planRepair(ctx, report, movements, balance.Amount); err != nil {
			return nil, err
		}
		uc.observeRepair(report)

		return report, nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	balance, err := uc.balanceRepo.GetForUpdate(ctx, tx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	movements, err := uc.movementRepo.ListAllOrderedTx(ctx, tx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	if _, err := uc.planRepair(ctx, report, movements, balance.Amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	for _, rw := range report.Rewrites {
		if err := uc.movementRepo.UpdateChain(ctx, tx, rw.MovementID, rw.PreviousAfter, rw.NewAfter); err != nil {
			return nil, err
		}

		audit := &domain.AuditLog{
			ID:           uc.idGen.Generate(),
			ActorID:      actorID,
			Action:       string(domain.AuditActionChainRepair),
			PointID:      pointID,
			CurrencyID:   currencyID,
			ResourceType: "movement",
			ResourceID:   rw.MovementID,
			BeforeState: domain.MarshalState(map[string]string{
				"previous_balance": rw.PreviousBefore.String(),
				"new_balance":      rw.NewBefore.String(),
			}),
			AfterState: domain.MarshalState(map[string]string{
				"previous_balance": rw.PreviousAfter.String(),
				"new_balance":      rw.NewAfter.String(),
			}),
			CreatedAt: now,
		}

		if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	if !report.BalanceAfter.Equal(balance.Amount) {
		// Keep the bills bucket aligned so the cash breakdown invariant
		// survives the correction.
		diff := report.BalanceAfter.Sub(balance.Amount)
		balance.Amount = report.BalanceAfter
		balance.CashBills = balance.CashBills.Add(diff)
		balance.Version++

		if err := uc.balanceRepo.Update(ctx, tx, balance, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.recorder.InvalidateBalance(ctx, pointID, currencyID)
	report.Applied = true
	uc.observeRepair(report)

	return report, nil
}

func (uc *ChainUseCase) observeRepair(report *RepairReport) {
	if uc.metrics == nil || len(report.Rewrites) == 0 {
		return
	}
	mode := "dry_run"
	if report.Applied {
		mode = "apply"
	}
	uc.metrics.ChainRepairs.WithLabelValues(mode).Inc()
}

// planRepair fills the report with the rewrites a repair would make.
func (uc *ChainUseCase) planRepair(ctx context.Context, report *RepairReport, movements []*domain.Movement, recorded decimal.Decimal) (*RepairReport, error) {
	report.BalanceBefore = recorded
	report.BalanceAfter = recorded

	if len(movements) == 0 {
		return report, nil
	}

	running, err := uc.chainBase(ctx, report.PointID, report.CurrencyID, movements[0])
	if err != nil {
		return nil, err
	}

	for _, m := range movements {
		report.Checked++

		var next decimal.Decimal
		if m.Type == domain.MovementInitial || m.IsCorrection() {
			// Anchors and corrections are authoritative bases: rewriting
			// them would undo the repair they carry.
			running = m.NewBalance
			next = m.NewBalance
		} else {
			cashDelta, err := m.CashDelta()
			if err != nil {
				return nil, fmt.Errorf("movement %s: %w", m.ID, err)
			}
			next = running.Add(cashDelta)
		}

		if !m.PreviousBalance.Equal(running) || !m.NewBalance.Equal(next) {
			if m.Type != domain.MovementInitial && !m.IsCorrection() {
				report.Rewrites = append(report.Rewrites, ChainRewrite{
					MovementID:     m.ID,
					Sequence:       m.Sequence,
					PreviousBefore: m.PreviousBalance,
					PreviousAfter:  running,
					NewBefore:      m.NewBalance,
					NewAfter:       next,
				})
			}
		}

		running = next
	}

	report.BalanceAfter = running

	return report, nil
}

// chainBase resolves what the first movement's previous balance should
// be: the active anchor's amount, or the first entry's own stored
// previous balance when no anchor exists.
func (uc *ChainUseCase) chainBase(ctx context.Context, pointID, currencyID string, first *domain.Movement) (decimal.Decimal, error) {
	anchor, err := uc.anchorRepo.GetActive(ctx, pointID, currencyID)
	if err == nil {
		return anchor.Amount, nil
	}
	if errors.Is(err, domain.ErrAnchorNotFound) {
		return first.PreviousBalance, nil
	}
	return decimal.Zero, err
}

// DedupReport is the outcome of a duplicate sweep.
type DedupReport struct {
	PointID    string
	CurrencyID string
	Groups     int
	Removed    []string
	Applied    bool
	SweptAt    time.Time
}

// SweepDuplicates finds movements sharing a dedup reference key and
// removes all but the earliest of each group, then repairs the chain.
// The deletion and the chain rewrite share one transaction.
func (uc *ChainUseCase) SweepDuplicates(ctx context.Context, pointID, currencyID string, apply bool, actorID string) (*DedupReport, error) {
	report := &DedupReport{
		PointID:    pointID,
		CurrencyID: currencyID,
		Removed:    make([]string, 0),
		SweptAt:    time.Now().UTC(),
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if apply {
		if _, err := uc.balanceRepo.GetForUpdate(ctx, tx, pointID, currencyID); err != nil {
			return nil, err
		}
	}

	groups, err := uc.movementRepo.FindDuplicateGroups(ctx, tx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		report.Groups++

		// The earliest posting by sequence is the real one.
		for _, dup := range group[1:] {
			report.Removed = append(report.Removed, dup.ID)

			if !apply {
				continue
			}

			if err := uc.movementRepo.Delete(ctx, tx, dup.ID); err != nil {
				return nil, err
			}

			audit := &domain.AuditLog{
				ID:           uc.idGen.Generate(),
				ActorID:      actorID,
				Action:       string(domain.AuditActionDuplicateRemoval),
				PointID:      pointID,
				CurrencyID:   currencyID,
				ResourceType: "movement",
				ResourceID:   dup.ID,
				BeforeState:  domain.MarshalState(dup),
				CreatedAt:    now,
			}

			if err := uc.auditRepo.CreateTx(ctx, tx, audit); err != nil {
				return nil, err
			}
		}
	}

	if !apply || len(report.Removed) == 0 {
		return report, nil
	}

	// Deleting rows leaves holes in the chain: recompute it in the
	// same transaction.
	movements, err := uc.movementRepo.ListAllOrderedTx(ctx, tx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	balance, err := uc.balanceRepo.GetForUpdate(ctx, tx, pointID, currencyID)
	if err != nil {
		return nil, err
	}

	repair := &RepairReport{PointID: pointID, CurrencyID: currencyID, Rewrites: make([]ChainRewrite, 0)}
	if _, err := uc.planRepair(ctx, repair, movements, balance.Amount); err != nil {
		return nil, err
	}

	for _, rw := range repair.Rewrites {
		if err := uc.movementRepo.UpdateChain(ctx, tx, rw.MovementID, rw.PreviousAfter, rw.NewAfter); err != nil {
			return nil, err
		}
	}

	if !repair.BalanceAfter.Equal(balance.Amount) {
		diff := repair.BalanceAfter.Sub(balance.Amount)
		balance.Amount = repair.BalanceAfter
		balance.CashBills = balance.CashBills.Add(diff)
		balance.Version++

		if err := uc.balanceRepo.Update(ctx, tx, balance, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.recorder.InvalidateBalance(ctx, pointID, currencyID)
	report.Applied = true

	if uc.metrics != nil {
		uc.metrics.DuplicatesRemoved.Add(float64(len(report.Removed)))
	}

	return report, nil
}
