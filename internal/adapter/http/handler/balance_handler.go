package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
)

// balanceReader serves balance lookups and historical cuts.
type balanceReader interface {
	Get(ctx context.Context, pointID, currencyID string) (*domain.Balance, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Balance, error)
	AmountAt(ctx context.Context, pointID, currencyID string, at time.Time) (decimal.Decimal, error)
}

// BalanceHandler handles balance-related HTTP requests.
type BalanceHandler struct {
	balances balanceReader
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balances balanceReader) *BalanceHandler {
	return &BalanceHandler{balances: balances}
}

// Get retrieves the current balance for a stream.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	balance, err := h.balances.Get(r.Context(), pointID, currencyID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// List lists materialized balances.
func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	balances, err := h.balances.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list balances", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(balances))
}

// History returns the ledger balance at a past cutoff.
func (h *BalanceHandler) History(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	at := parseTimeQuery(r, "at")
	if at.IsZero() {
		at = time.Now().UTC()
	}

	amount, err := h.balances.AmountAt(r.Context(), pointID, currencyID, at)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to compute historical balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"point_id":    pointID,
		"currency_id": currencyID,
		"at":          at,
		"amount":      amount,
	})
}
