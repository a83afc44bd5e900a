package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// anchorService manages initial balance anchors.
type anchorService interface {
	SetAnchor(ctx context.Context, input usecase.SetAnchorInput) (*domain.InitialBalance, error)
	GetActive(ctx context.Context, pointID, currencyID string) (*domain.InitialBalance, error)
}

// AnchorHandler handles initial-balance anchor HTTP requests.
type AnchorHandler struct {
	anchors anchorService
}

// NewAnchorHandler creates a new AnchorHandler.
func NewAnchorHandler(anchors anchorService) *AnchorHandler {
	return &AnchorHandler{anchors: anchors}
}

// Set assigns a new anchor, superseding any active one.
func (h *AnchorHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req dto.SetAnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	anchor, err := h.anchors.SetAnchor(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to set anchor", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AnchorFromDomain(anchor))
}

// GetActive retrieves the active anchor for a stream.
func (h *AnchorHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	anchor, err := h.anchors.GetActive(r.Context(), pointID, currencyID)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get anchor", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AnchorFromDomain(anchor))
}
