package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// MovementResponse represents a movement in API responses.
type MovementResponse struct {
	ID              string          `json:"id"`
	PointID         string          `json:"point_id"`
	CurrencyID      string          `json:"currency_id"`
	Type            string          `json:"type"`
	Channel         string          `json:"channel"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	ActorID         string          `json:"actor_id,omitempty"`
	Sequence        int64           `json:"sequence"`
	CreatedAt       time.Time       `json:"created_at"`
}

// MovementFromDomain converts a domain movement to a response.
func MovementFromDomain(m *domain.Movement) *MovementResponse {
	return &MovementResponse{
		ID:              m.ID,
		PointID:         m.PointID,
		CurrencyID:      m.CurrencyID,
		Type:            string(m.Type),
		Channel:         string(m.Channel),
		Amount:          m.Amount,
		PreviousBalance: m.PreviousBalance,
		NewBalance:      m.NewBalance,
		ReferenceType:   string(m.ReferenceType),
		ReferenceID:     m.ReferenceID,
		Description:     m.Description,
		ActorID:         m.ActorID,
		Sequence:        m.Sequence,
		CreatedAt:       m.CreatedAt,
	}
}

// MovementsFromDomain converts domain movements to responses.
func MovementsFromDomain(movements []*domain.Movement) []*MovementResponse {
	result := make([]*MovementResponse, len(movements))
	for i, m := range movements {
		result[i] = MovementFromDomain(m)
	}
	return result
}

// BalanceResponse represents a materialized balance in API responses.
type BalanceResponse struct {
	PointID    string          `json:"point_id"`
	CurrencyID string          `json:"currency_id"`
	Amount     decimal.Decimal `json:"amount"`
	CashBills  decimal.Decimal `json:"cash_bills"`
	CashCoins  decimal.Decimal `json:"cash_coins"`
	Bank       decimal.Decimal `json:"bank"`
	Version    int64           `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		PointID:    b.PointID,
		CurrencyID: b.CurrencyID,
		Amount:     b.Amount,
		CashBills:  b.CashBills,
		CashCoins:  b.CashCoins,
		Bank:       b.Bank,
		Version:    b.Version,
		UpdatedAt:  b.UpdatedAt,
	}
}

// BalancesFromDomain converts domain balances to responses.
func BalancesFromDomain(balances []*domain.Balance) []*BalanceResponse {
	result := make([]*BalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = BalanceFromDomain(b)
	}
	return result
}

// AnchorResponse represents an initial balance anchor in API responses.
type AnchorResponse struct {
	ID         string          `json:"id"`
	PointID    string          `json:"point_id"`
	CurrencyID string          `json:"currency_id"`
	Amount     decimal.Decimal `json:"amount"`
	AssignedAt time.Time       `json:"assigned_at"`
	AssignedBy string          `json:"assigned_by,omitempty"`
	Active     bool            `json:"active"`
}

// AnchorFromDomain converts a domain anchor to a response.
func AnchorFromDomain(a *domain.InitialBalance) *AnchorResponse {
	return &AnchorResponse{
		ID:         a.ID,
		PointID:    a.PointID,
		CurrencyID: a.CurrencyID,
		Amount:     a.Amount,
		AssignedAt: a.AssignedAt,
		AssignedBy: a.AssignedBy,
		Active:     a.Active,
	}
}

// TransferResponse represents a transfer in API responses.
type TransferResponse struct {
	ID            string          `json:"id"`
	OriginPointID string          `json:"origin_point_id"`
	DestPointID   string          `json:"dest_point_id"`
	CurrencyID    string          `json:"currency_id"`
	Amount        decimal.Decimal `json:"amount"`
	Channel       string          `json:"channel"`
	Status        string          `json:"status"`
	Description   string          `json:"description,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TransferFromDomain converts a domain transfer to a response.
func TransferFromDomain(t *domain.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:            t.ID,
		OriginPointID: t.OriginPointID,
		DestPointID:   t.DestPointID,
		CurrencyID:    t.CurrencyID,
		Amount:        t.Amount,
		Channel:       string(t.Channel),
		Status:        string(t.Status),
		Description:   t.Description,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// TransfersFromDomain converts domain transfers to responses.
func TransfersFromDomain(transfers []*domain.Transfer) []*TransferResponse {
	result := make([]*TransferResponse, len(transfers))
	for i, t := range transfers {
		result[i] = TransferFromDomain(t)
	}
	return result
}

// ReconciliationResponse represents one stream's replay outcome.
type ReconciliationResponse struct {
	PointID       string          `json:"point_id"`
	CurrencyID    string          `json:"currency_id"`
	AnchorID      string          `json:"anchor_id,omitempty"`
	AnchorAmount  decimal.Decimal `json:"anchor_amount"`
	MissingAnchor bool            `json:"missing_anchor"`
	Theoretical   decimal.Decimal `json:"theoretical"`
	Recorded      decimal.Decimal `json:"recorded"`
	Drift         decimal.Decimal `json:"drift"`
	Reconciled    bool            `json:"reconciled"`
	Movements     int             `json:"movements"`
	ExcludedBank  int             `json:"excluded_bank"`
	Corrections   int             `json:"corrections"`
	AsOf          time.Time       `json:"as_of"`
	CheckedAt     time.Time       `json:"checked_at"`
}

// ReconciliationFromResult converts a replay result to a response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		PointID:       r.PointID,
		CurrencyID:    r.CurrencyID,
		AnchorID:      r.AnchorID,
		AnchorAmount:  r.AnchorAmount,
		MissingAnchor: r.MissingAnchor,
		Theoretical:   r.Theoretical,
		Recorded:      r.Recorded,
		Drift:         r.Drift,
		Reconciled:    r.Reconciled,
		Movements:     r.Movements,
		ExcludedBank:  r.ExcludedBank,
		Corrections:   r.Corrections,
		AsOf:          r.AsOf,
		CheckedAt:     r.CheckedAt,
	}
}

// ReconciliationReportResponse aggregates replay results across streams.
type ReconciliationReportResponse struct {
	TotalStreams      int                       `json:"total_streams"`
	ReconciledStreams int                       `json:"reconciled_streams"`
	Discrepancies     []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt         time.Time                 `json:"checked_at"`
}

// ReconciliationReportFromResult converts a full replay report.
func ReconciliationReportFromResult(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromResult(d)
	}
	return &ReconciliationReportResponse{
		TotalStreams:      r.TotalStreams,
		ReconciledStreams: r.ReconciledStreams,
		Discrepancies:     discrepancies,
		CheckedAt:         r.CheckedAt,
	}
}

// ChainBreakResponse is one detected chain discontinuity.
type ChainBreakResponse struct {
	MovementID string          `json:"movement_id"`
	Sequence   int64           `json:"sequence"`
	Expected   decimal.Decimal `json:"expected"`
	Actual     decimal.Decimal `json:"actual"`
}

// ChainReportResponse is the outcome of a chain integrity check.
type ChainReportResponse struct {
	PointID    string               `json:"point_id"`
	CurrencyID string               `json:"currency_id"`
	Checked    int                  `json:"checked"`
	Intact     bool                 `json:"intact"`
	Breaks     []ChainBreakResponse `json:"breaks"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// ChainReportFromResult converts a chain check report.
func ChainReportFromResult(r *usecase.ChainReport) *ChainReportResponse {
	breaks := make([]ChainBreakResponse, len(r.Breaks))
	for i, b := range r.Breaks {
		breaks[i] = ChainBreakResponse{
			MovementID: b.MovementID,
			Sequence:   b.Sequence,
			Expected:   b.Expected,
			Actual:     b.Actual,
		}
	}
	return &ChainReportResponse{
		PointID:    r.PointID,
		CurrencyID: r.CurrencyID,
		Checked:    r.Checked,
		Intact:     r.Intact(),
		Breaks:     breaks,
		CheckedAt:  r.CheckedAt,
	}
}

// ChainReportsFromResults converts chain reports for every stream.
func ChainReportsFromResults(reports []*usecase.ChainReport) []*ChainReportResponse {
	result := make([]*ChainReportResponse, len(reports))
	for i, r := range reports {
		result[i] = ChainReportFromResult(r)
	}
	return result
}

// ChainRewriteResponse describes one movement a repair rewrites.
type ChainRewriteResponse struct {
	MovementID     string          `json:"movement_id"`
	Sequence       int64           `json:"sequence"`
	PreviousBefore decimal.Decimal `json:"previous_before"`
	PreviousAfter  decimal.Decimal `json:"previous_after"`
	NewBefore      decimal.Decimal `json:"new_before"`
	NewAfter       decimal.Decimal `json:"new_after"`
}

// RepairReportResponse is the outcome of a chain repair run.
type RepairReportResponse struct {
	PointID       string                 `json:"point_id"`
	CurrencyID    string                 `json:"currency_id"`
	Checked       int                    `json:"checked"`
	Rewrites      []ChainRewriteResponse `json:"rewrites"`
	BalanceBefore decimal.Decimal        `json:"balance_before"`
	BalanceAfter  decimal.Decimal        `json:"balance_after"`
	Applied       bool                   `json:"applied"`
	RepairedAt    time.Time              `json:"repaired_at"`
}

// RepairReportFromResult converts a chain repair report.
func RepairReportFromResult(r *usecase.RepairReport) *RepairReportResponse {
	rewrites := make([]ChainRewriteResponse, len(r.Rewrites))
	for i, w := range r.Rewrites {
		rewrites[i] = ChainRewriteResponse{
			MovementID:     w.MovementID,
			Sequence:       w.Sequence,
			PreviousBefore: w.PreviousBefore,
			PreviousAfter:  w.PreviousAfter,
			NewBefore:      w.NewBefore,
			NewAfter:       w.NewAfter,
		}
	}
	return &RepairReportResponse{
		PointID:       r.PointID,
		CurrencyID:    r.CurrencyID,
		Checked:       r.Checked,
		Rewrites:      rewrites,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		Applied:       r.Applied,
		RepairedAt:    r.RepairedAt,
	}
}

// DedupReportResponse is the outcome of a duplicate sweep.
type DedupReportResponse struct {
	PointID    string    `json:"point_id"`
	CurrencyID string    `json:"currency_id"`
	Groups     int       `json:"groups"`
	Removed    []string  `json:"removed"`
	Applied    bool      `json:"applied"`
	SweptAt    time.Time `json:"swept_at"`
}

// DedupReportFromResult converts a duplicate sweep report.
func DedupReportFromResult(r *usecase.DedupReport) *DedupReportResponse {
	return &DedupReportResponse{
		PointID:    r.PointID,
		CurrencyID: r.CurrencyID,
		Groups:     r.Groups,
		Removed:    r.Removed,
		Applied:    r.Applied,
		SweptAt:    r.SweptAt,
	}
}

// AuditLogResponse represents an audit log entry in API responses.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id,omitempty"`
	Action       string         `json:"action"`
	PointID      string         `json:"point_id"`
	CurrencyID   string         `json:"currency_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogFromDomain converts a domain audit log to a response.
func AuditLogFromDomain(l *domain.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:           l.ID,
		ActorID:      l.ActorID,
		Action:       l.Action,
		PointID:      l.PointID,
		CurrencyID:   l.CurrencyID,
		ResourceType: l.ResourceType,
		ResourceID:   l.ResourceID,
		BeforeState:  l.BeforeState,
		AfterState:   l.AfterState,
		Detail:       l.Detail,
		CreatedAt:    l.CreatedAt,
	}
}

// AuditLogsFromDomain converts domain audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = AuditLogFromDomain(l)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
