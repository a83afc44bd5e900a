package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// reconciliationService replays streams and resolves drift.
type reconciliationService interface {
	Reconcile(ctx context.Context, pointID, currencyID string, asOf time.Time) (*usecase.ReconciliationResult, error)
	ReconcileAll(ctx context.Context, asOf time.Time) (*usecase.ReconciliationReport, error)
	ApplyCorrection(ctx context.Context, result *usecase.ReconciliationResult, mode usecase.CorrectionMode, actorID, reason string) (*domain.Movement, error)
}

// ReconciliationHandler handles reconciliation HTTP requests.
type ReconciliationHandler struct {
	reconciler reconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciler reconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler}
}

// Reconcile replays one stream and reports drift. Read-only.
func (h *ReconciliationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.PointID == "" || req.CurrencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	asOf := time.Time{}
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	result, err := h.reconciler.Reconcile(r.Context(), req.PointID, req.CurrencyID, asOf)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reconcile", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}

// ReconcileAll replays every stream with movements. Read-only.
func (h *ReconciliationHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	asOf := parseTimeQuery(r, "as_of")

	report, err := h.reconciler.ReconcileAll(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reconcile streams", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromResult(report))
}

// ApplyCorrection re-runs the replay and resolves the reported drift
// with the requested mode. The replay happens server-side so the
// correction is always computed against fresh state.
func (h *ReconciliationHandler) ApplyCorrection(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplyCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.PointID == "" || req.CurrencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	asOf := time.Time{}
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	result, err := h.reconciler.Reconcile(r.Context(), req.PointID, req.CurrencyID, asOf)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reconcile", err.Error())
		return
	}

	correction, err := h.reconciler.ApplyCorrection(r.Context(), result, usecase.CorrectionMode(req.Mode), req.ActorID, req.Reason)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to apply correction", err.Error())
		return
	}

	response := map[string]any{
		"reconciliation": dto.ReconciliationFromResult(result),
	}
	if correction != nil {
		response["correction"] = dto.MovementFromDomain(correction)
	}

	writeJSON(w, http.StatusCreated, response)
}
