package domain

import "time"

// Event types
const (
	EventTypeMovementRecorded  = "movement.recorded"
	EventTypeTransferCancelled = "transfer.cancelled"
	EventTypeBalanceCorrected  = "balance.corrected"
	EventTypeAnchorSet         = "anchor.set"
)

// Aggregate types
const (
	AggregateTypeMovement = "movement"
	AggregateTypeTransfer = "transfer"
	AggregateTypeBalance  = "balance"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// MovementRecordedEvent payload
type MovementRecordedEvent struct {
	MovementID string `json:"movement_id"`
	PointID    string `json:"point_id"`
	CurrencyID string `json:"currency_id"`
	Type       string `json:"type"`
	Channel    string `json:"channel"`
	Amount     string `json:"amount"`
	NewBalance string `json:"new_balance"`
}

// TransferCancelledEvent payload
type TransferCancelledEvent struct {
	TransferID       string `json:"transfer_id"`
	ReturnMovementID string `json:"return_movement_id"`
	OriginPointID    string `json:"origin_point_id"`
	Amount           string `json:"amount"`
	Reason           string `json:"reason"`
}

// BalanceCorrectedEvent payload
type BalanceCorrectedEvent struct {
	PointID     string `json:"point_id"`
	CurrencyID  string `json:"currency_id"`
	Drift       string `json:"drift"`
	Theoretical string `json:"theoretical"`
	Mode        string `json:"mode"`
}

// AnchorSetEvent payload
type AnchorSetEvent struct {
	AnchorID   string `json:"anchor_id"`
	PointID    string `json:"point_id"`
	CurrencyID string `json:"currency_id"`
	Amount     string `json:"amount"`
}
