/**
 * @description
 * This file defines the message payloads exchanged over RabbitMQ: lifecycle
 * events this service publishes for downstream consumers (notifications,
 * analytics) and the normalized settlement events it consumes from the
 * payments edge. Delivery of notifications themselves is out of scope here;
 * publishing is the integration surface.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingEventPayload is published on every booking lifecycle transition under
// routing keys of the form booking.<status>.
type BookingEventPayload struct {
	BookingID    uuid.UUID  `json:"booking_id"`
	CustomerID   uuid.UUID  `json:"customer_id"`
	WorkerID     uuid.UUID  `json:"worker_id"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
	Status       string     `json:"status"`
	WorkType     string     `json:"work_type"`
	Reason       string     `json:"reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// RatingSubmittedPayload is published when a rating lands and the worker
// aggregate has been recomputed.
type RatingSubmittedPayload struct {
	BookingID     uuid.UUID `json:"booking_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	WorkerID      uuid.UUID `json:"worker_id"`
	Rating        int       `json:"rating"`
	AverageRating float64   `json:"average_rating"`
	TotalRatings  int       `json:"total_ratings"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// WithdrawalRequestedPayload is published when a withdrawal posts so the
// payout edge can pick it up.
type WithdrawalRequestedPayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id"`
	UserID        uuid.UUID `json:"user_id"`
	Amount        int64     `json:"amount"` // in minor units
	PaymentMethod string    `json:"payment_method"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ContractorAssignedPayload is published by the audited admin assignment of a
// contractor to a contract worker.
type ContractorAssignedPayload struct {
	WorkerID     uuid.UUID `json:"worker_id"`
	ContractorID uuid.UUID `json:"contractor_id"`
	AssignedBy   uuid.UUID `json:"assigned_by"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// PaymentSettlementEvent is the normalized message the payments edge emits for
// gateway captures and payout settlement updates. Recharge captures carry the
// user and amount; withdrawal updates carry the ledger transaction id.
type PaymentSettlementEvent struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	Status           string    `json:"status"`
	UserID           string    `json:"user_id,omitempty"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	GatewayReference string    `json:"gateway_reference,omitempty"`
	Amount           int64     `json:"amount,omitempty"` // in minor units
	PaymentMethod    string    `json:"payment_method,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
