package domain

import (
	"encoding/json"
	"time"
)

// AuditLog records every administrative mutation of ledger state:
// chain-repair rewrites, reconciliation corrections, duplicate
// removals. Normal recorder writes are not audited here; the ledger
// itself is their audit trail.
type AuditLog struct {
	ID           string
	ActorID      string
	Action       string
	PointID      string
	CurrencyID   string
	ResourceType string
	ResourceID   string
	BeforeState  JSON
	AfterState   JSON
	Detail       string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionChainRepair      AuditAction = "chain.repair"
	AuditActionDuplicateRemoval AuditAction = "chain.dedup"
	AuditActionCorrection       AuditAction = "reconciliation.correct"
	AuditActionAnchorSet        AuditAction = "anchor.set"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}
