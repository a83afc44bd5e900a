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

// movementRecorder is the slice of the recorder the handler needs.
type movementRecorder interface {
	Record(ctx context.Context, input usecase.RecordMovementInput) (*domain.Movement, error)
}

// movementReader serves movement lookups and stream listings.
type movementReader interface {
	Get(ctx context.Context, id string) (*domain.Movement, error)
	ListByStream(ctx context.Context, pointID, currencyID string, limit, offset int) ([]*domain.Movement, error)
}

// movementReverser posts compensating adjustments.
type movementReverser interface {
	ReverseMovement(ctx context.Context, movementID, actorID, reason string) (*domain.Movement, error)
}

// MovementHandler handles movement-related HTTP requests.
type MovementHandler struct {
	recorder movementRecorder
	reader   movementReader
	reverser movementReverser
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(recorder movementRecorder, reader movementReader, reverser movementReverser) *MovementHandler {
	return &MovementHandler{
		recorder: recorder,
		reader:   reader,
		reverser: reverser,
	}
}

// Record posts one movement to the ledger.
func (h *MovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req dto.RecordMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	movement, err := h.recorder.Record(r.Context(), req.ToUseCaseInput())
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to record movement", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.MovementFromDomain(movement))
}

// Get retrieves a movement by ID.
func (h *MovementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing movement ID", "")
		return
	}

	movement, err := h.reader.Get(r.Context(), id)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to get movement", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.MovementFromDomain(movement))
}

// ListByStream lists the newest movements of one (point, currency) stream.
func (h *MovementHandler) ListByStream(w http.ResponseWriter, r *http.Request) {
	pointID := chi.URLParam(r, "pointID")
	currencyID := chi.URLParam(r, "currencyID")
	if pointID == "" || currencyID == "" {
		writeError(w, http.StatusBadRequest, "missing point or currency ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	movements, err := h.reader.ListByStream(r.Context(), pointID, currencyID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list movements", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.MovementsFromDomain(movements))
}

// Reverse posts a compensating adjustment for a movement.
func (h *MovementHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing movement ID", "")
		return
	}

	var req dto.ReverseMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	reversal, err := h.reverser.ReverseMovement(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		status := mapDomainError(err)
		writeError(w, status, "failed to reverse movement", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.MovementFromDomain(reversal))
}
