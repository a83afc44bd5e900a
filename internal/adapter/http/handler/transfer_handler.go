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

// transferService drives the inter-branch transfer lifecycle.
type transferService interface {
	CreateTransfer(ctx context.Context, input usecase.CreateTransferInput) (*domain.Transfer, error)
	Dispatch(ctx context.Context, transferID, actorID string) (*domain.Transfer, error)
	Complete(ctx context.Context, transferID, actorID string) (*domain.Transfer, error)
	Cancel(ctx context.Context, transferID, actorID, reason string) (*domain.Transfer, error)
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	ListTransfersByPoint(ctx context.Context, pointID string, limit, offset int) ([]*domain.Transfer, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transfers transferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

// Create opens a new PENDING transfer.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	transfer, err := h.transfers.CreateTransfer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to create transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransferFromDomain(transfer))
}

// Get retrieves a transfer by ID.
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	transfer, err := h.transfers.GetTransfer(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}

// Dispatch marks the transfer in transit and posts the origin expense.
func (h *TransferHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransferActionRequest) (*domain.Transfer, error) {
		return h.transfers.Dispatch(ctx, id, req.ActorID)
	})
}

// Complete marks the transfer delivered and posts the destination income.
func (h *TransferHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransferActionRequest) (*domain.Transfer, error) {
		return h.transfers.Complete(ctx, id, req.ActorID)
	})
}

// Cancel cancels an in-transit transfer and posts the compensating return.
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(ctx context.Context, id string, req dto.TransferActionRequest) (*domain.Transfer, error) {
		return h.transfers.Cancel(ctx, id, req.ActorID, req.Reason)
	})
}

func (h *TransferHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string, req dto.TransferActionRequest) (*domain.Transfer, error)) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	var req dto.TransferActionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	transfer, err := fn(r.Context(), id, req)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to update transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferFromDomain(transfer))
}

// ListByPoint lists transfers touching a point as origin or destination.
func (h *TransferHandler) ListByPoint(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	if pointID == "" {
		writeError(w, http.StatusBadRequest, "missing point ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	transfers, err := h.transfers.ListTransfersByPoint(r.Context(), pointID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list transfers", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransfersFromDomain(transfers))
}
