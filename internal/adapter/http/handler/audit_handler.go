package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/dto"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// AuditHandler serves the administrative audit trail.
type AuditHandler struct {
	audits usecase.AuditRepository
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audits usecase.AuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// ListByResource lists audit entries for one resource.
func (h *AuditHandler) ListByResource(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "resourceType")
	resourceID := chi.URLParam(r, "resourceID")
	if resourceType == "" || resourceID == "" {
		writeError(w, http.StatusBadRequest, "missing resource type or ID", "")
		return
	}

	logs, err := h.audits.ListByResource(r.Context(), resourceType, resourceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit logs", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}
