package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// chainService checks, repairs and deduplicates ledger chains.
type chainService interface {
	Check(ctx context.Context, pointID, currencyID string) (*usecase.ChainReport, error)
	CheckAll(ctx context.Context) ([]*usecase.ChainReport, error)
	Repair(ctx context.Context, pointID, currencyID string, apply bool, actorID string) (*usecase.RepairReport, error)
	SweepDuplicates(ctx context.Context, pointID, currencyID string, apply bool, actorID string) (*usecase.DedupReport, error)
}

// ChainHandler handles chain integrity HTTP requests.
type ChainHandler struct {
	chains chainService
}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler(chains chainService) *ChainHandler {
	return &ChainHandler{chains: chains}
}

// Check walks one stream and reports breaks. Read-only.
func (h *ChainHandler) Check(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	report, err := h.chains.Check(r.Context(), pointID, currencyID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to check chain", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ChainReportFromResult(report))
}

// CheckAll checks every stream with movements. Read-only.
func (h *ChainHandler) CheckAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.chains.CheckAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check chains", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ChainReportsFromResults(reports))
}

// Repair recomputes one stream's chain. Dry-run unless apply=true.
func (h *ChainHandler) Repair(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	apply := parseBoolQuery(r, "apply")
	actorID := r.URL.Query().Get("actor_id")

	report, err := h.chains.Repair(r.Context(), pointID, currencyID, apply, actorID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to repair chain", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RepairReportFromResult(report))
}

// SweepDuplicates removes double-posted movements. Dry-run unless apply=true.
func (h *ChainHandler) SweepDuplicates(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	apply := parseBoolQuery(r, "apply")
	actorID := r.URL.Query().Get("actor_id")

	report, err := h.chains.SweepDuplicates(r.Context(), pointID, currencyID, apply, actorID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to sweep duplicates", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.DedupReportFromResult(report))
}
