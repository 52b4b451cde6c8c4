/**
 * @description
 * This file defines the booking domain model and its state machine. A booking is
 * one requested service engagement between a customer and a worker, optionally
 * managed by a contractor. Status moves only along the adjacency table below;
 * each transition stamps its timestamp exactly once.
 *
 * @notes
 * - The adjacency table is the single source of truth for legal transitions.
 *   The administrative completed -> cancelled exception is deliberately NOT in
 *   the table; it is gated behind the admin service path instead.
 * - CancelledBy records which side ended the booking (customer, admin, or the
 *   cleanup job) so terminal rows stay auditable.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// DefaultRejectReason is recorded when a rejection omits its reason.
const DefaultRejectReason = "No reason provided"

// Parties that may end a booking.
const (
	CancelledByCustomer   = "customer"
	CancelledByWorker     = "worker"
	CancelledByContractor = "contractor"
	CancelledByAdmin      = "admin"
	CancelledBySystem     = "system"
)

// bookingTransitions is the forward adjacency of the booking state machine.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusAccepted, BookingStatusRejected},
	BookingStatusAccepted:   {BookingStatusConfirmed, BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
}

// CanTransition reports whether from -> to is a legal booking transition.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no regular transition leaves the status.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCancelled || s == BookingStatusCompleted
}

// CustomerMayCancelFrom reports whether a customer-initiated cancellation is
// permitted from the status. Customers cannot stop work already in progress.
func CustomerMayCancelFrom(s BookingStatus) bool {
	return s == BookingStatusPending || s == BookingStatusAccepted || s == BookingStatusConfirmed
}

// Booking represents one service engagement. Maps to the `bookings` table.
// WalletTransactionID back-references the payment that funded the booking;
// RefundTransactionID the refund posted when a funded booking ends without
// completing. At most one of each exists per booking.
type Booking struct {
	ID                  uuid.UUID     `json:"id"`
	CustomerID          uuid.UUID     `json:"customer_id"`
	WorkerID            uuid.UUID     `json:"worker_id"`
	ContractorID        *uuid.UUID    `json:"contractor_id,omitempty"`
	WorkType            string        `json:"work_type"`
	Location            string        `json:"location"`
	Notes               *string       `json:"notes,omitempty"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             *time.Time    `json:"end_date,omitempty"`
	PaymentMethod       string        `json:"payment_method"`
	Budget              *int64        `json:"budget,omitempty"` // in minor units
	UseWallet           bool          `json:"use_wallet"`
	WalletTransactionID *uuid.UUID    `json:"wallet_transaction_id,omitempty"`
	RefundTransactionID *uuid.UUID    `json:"refund_transaction_id,omitempty"`
	FinalPrice          *int64        `json:"final_price,omitempty"` // in minor units, fixed at completion
	Status              BookingStatus `json:"status"`
	AcceptedAt          *time.Time    `json:"accepted_at,omitempty"`
	ConfirmedAt         *time.Time    `json:"confirmed_at,omitempty"`
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	CancelledAt         *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy         *string       `json:"cancelled_by,omitempty"`
	RejectedAt          *time.Time    `json:"rejected_at,omitempty"`
	RejectedReason      *string       `json:"rejected_reason,omitempty"`
	HasRated            bool          `json:"has_rated"`
	RatingSubmittedAt   *time.Time    `json:"rating_submitted_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// CreateBookingRequest is the DTO for customer booking creation.
type CreateBookingRequest struct {
	WorkerID      uuid.UUID  `json:"worker_id"`
	WorkType      string     `json:"work_type"`
	Location      string     `json:"location"`
	Notes         *string    `json:"notes,omitempty"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	PaymentMethod string     `json:"payment_method"`
	Budget        *int64     `json:"budget,omitempty"` // in minor units
	UseWallet     bool       `json:"use_wallet"`
}

// RejectBookingRequest carries the optional rejection reason.
type RejectBookingRequest struct {
	Reason string `json:"reason"`
}

// CompleteBookingRequest optionally fixes the final price at completion.
type CompleteBookingRequest struct {
	FinalPrice *int64 `json:"final_price,omitempty"` // in minor units
}

// BookingListOptions controls pagination and status filtering for listings.
type BookingListOptions struct {
	Status BookingStatus
	Limit  int
	Offset int
}
