/**
 * @description
 * This file contains the booking lifecycle logic: creation with optional
 * wallet funding, the status state machine, and role-scoped listings.
 *
 * Transitions are written compare-and-set against the status the caller
 * observed. When a wallet-funded booking ends without completing, the refund
 * posts inside the same database transaction as the status flip, so the
 * ledger and the booking can never disagree about whether money came back.
 *
 * @dependencies
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq (via Service): For booking lifecycle events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

// ErrMissingFields rejects booking creation without the required fields.
var ErrMissingFields = errors.New("worker_id, work_type, location and start_date are required")

// CreateBooking validates and persists a customer's booking request.
//
// When wallet funding is requested, the payment posts atomically with the
// booking: insufficient balance means no booking and no ledger row. Contract
// workers must already have a contractor assigned; creation never picks one
// implicitly.
func (s *Service) CreateBooking(ctx context.Context, customerID uuid.UUID, req domain.CreateBookingRequest) (*domain.Booking, error) {
	if err := s.checkRateLimit(ctx, "booking_create", customerID, s.bookingRateLimitPerMinute); err != nil {
		return nil, err
	}

	// 1. Validate the payload.
	req.WorkType = strings.TrimSpace(req.WorkType)
	req.Location = strings.TrimSpace(req.Location)
	if req.WorkerID == uuid.Nil || req.WorkType == "" || req.Location == "" || req.StartDate.IsZero() {
		return nil, ErrMissingFields
	}
	if req.StartDate.Before(time.Now()) {
		return nil, ErrStartDateInPast
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, ErrInvalidDateRange
	}
	if customerID == req.WorkerID {
		return nil, ErrSelfBooking
	}

	// 2. Resolve the worker and route through their contractor.
	worker, err := s.repo.FindUserByID(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if !worker.Role.IsWorker() {
		return nil, ErrInvalidRole
	}

	var contractorID *uuid.UUID
	if worker.Role == domain.RoleContractWorker {
		if worker.ContractorID == nil {
			return nil, ErrContractorUnresolved
		}
		contractorID = worker.ContractorID
	}

	// 3. Normalize the payment method. Wallet funding forces the method.
	method := strings.TrimSpace(req.PaymentMethod)
	if req.UseWallet {
		method = domain.PaymentMethodWallet
	} else {
		if method == "" {
			method = domain.PaymentMethodCash
		}
		switch method {
		case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodBankTransfer:
		default:
			return nil, ErrInvalidPaymentMethod
		}
	}

	booking := &domain.Booking{
		CustomerID:    customerID,
		WorkerID:      worker.ID,
		ContractorID:  contractorID,
		WorkType:      req.WorkType,
		Location:      req.Location,
		Notes:         req.Notes,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		PaymentMethod: method,
		Budget:        req.Budget,
		UseWallet:     req.UseWallet,
		Status:        domain.BookingStatusPending,
	}

	// 4. Persist, funding from the wallet when requested.
	if req.UseWallet {
		if req.Budget == nil || *req.Budget <= 0 {
			return nil, ErrMissingBudget
		}
		account, err := s.repo.FindAccountByUserID(ctx, customerID)
		if err != nil {
			return nil, err
		}
		payment := domain.PostTransactionParams{
			AccountID:     account.ID,
			Type:          domain.TransactionTypePayment,
			Status:        domain.TransactionStatusCompleted,
			Amount:        *req.Budget,
			PaymentMethod: domain.PaymentMethodWallet,
			Description:   fmt.Sprintf("Wallet payment for %s booking", req.WorkType),
		}
		if _, err := s.repo.CreateBookingWithPayment(ctx, booking, payment); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.CreateBooking(ctx, booking); err != nil {
			return nil, err
		}
	}

	// 5. Announce the new booking.
	s.publishBookingEvent(ctx, "booking.created", booking, "")

	return booking, nil
}

// ListBookings returns the caller's bookings from their side of the
// marketplace: customers see bookings they placed, workers bookings assigned
// to them, contractors bookings routed through their pool.
func (s *Service) ListBookings(ctx context.Context, userID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := normalizeBookingListOptions(&opts); err != nil {
		return nil, err
	}

	switch user.Role {
	case domain.RoleIndependentWorker, domain.RoleContractWorker:
		return s.repo.ListBookingsByWorker(ctx, userID, opts)
	case domain.RoleContractor:
		return s.repo.ListBookingsByContractor(ctx, userID, opts)
	default:
		return s.repo.ListBookingsByCustomer(ctx, userID, opts)
	}
}

// GetBooking returns a booking visible to the caller. Bookings the caller is
// not a party to are reported as not found.
func (s *Service) GetBooking(ctx context.Context, userID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if bookingParty(userID, booking) {
		return booking, nil
	}

	actor, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleAdmin {
		return booking, nil
	}

	return nil, store.ErrBookingNotFound
}

// AcceptBooking moves a pending booking to accepted. Worker-side only.
func (s *Service) AcceptBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.workerSideTransition(ctx, actorID, bookingID, domain.BookingStatusAccepted, store.TransitionParams{}, "booking.accepted", "")
}

// RejectBooking moves a pending booking to rejected, recording the reason.
// Worker-side only. Wallet-funded bookings are refunded in the same unit.
func (s *Service) RejectBooking(ctx context.Context, actorID, bookingID uuid.UUID, reason string) (*domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.DefaultRejectReason
	}
	params := store.TransitionParams{RejectedReason: &reason}
	return s.workerSideTransition(ctx, actorID, bookingID, domain.BookingStatusRejected, params, "booking.rejected", reason)
}

// ConfirmBooking moves an accepted booking to confirmed. Worker-side only.
func (s *Service) ConfirmBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.workerSideTransition(ctx, actorID, bookingID, domain.BookingStatusConfirmed, store.TransitionParams{}, "booking.confirmed", "")
}

// StartBooking moves an accepted or confirmed booking to in_progress.
// Worker-side only.
func (s *Service) StartBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.workerSideTransition(ctx, actorID, bookingID, domain.BookingStatusInProgress, store.TransitionParams{}, "booking.started", "")
}

// CompleteBooking moves an in_progress booking to completed and fixes the
// final price (explicit price, or the budget when none is given). Worker-side
// only. Completion does not touch the ledger; payout settlement is a separate
// pipeline.
func (s *Service) CompleteBooking(ctx context.Context, actorID, bookingID uuid.UUID, finalPrice *int64) (*domain.Booking, error) {
	if finalPrice != nil && *finalPrice <= 0 {
		return nil, ErrInvalidAmount
	}
	params := store.TransitionParams{FinalPrice: finalPrice}
	return s.workerSideTransition(ctx, actorID, bookingID, domain.BookingStatusCompleted, params, "booking.completed", "")
}

// CancelBooking ends a booking on behalf of one of its parties.
//
// Customers may cancel while the booking is pending, accepted, or confirmed;
// the worker side may additionally cancel work in progress. Cancelling an
// already-cancelled booking is an error, not a no-op.
func (s *Service) CancelBooking(ctx context.Context, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var cancelledBy string
	switch {
	case actorID == booking.CustomerID:
		cancelledBy = domain.CancelledByCustomer
		if !domain.CustomerMayCancelFrom(booking.Status) {
			return nil, ErrInvalidTransition
		}
	case actorID == booking.WorkerID:
		cancelledBy = domain.CancelledByWorker
		if !domain.CanTransition(booking.Status, domain.BookingStatusCancelled) {
			return nil, ErrInvalidTransition
		}
	case booking.ContractorID != nil && actorID == *booking.ContractorID:
		cancelledBy = domain.CancelledByContractor
		if !domain.CanTransition(booking.Status, domain.BookingStatusCancelled) {
			return nil, ErrInvalidTransition
		}
	default:
		return nil, ErrForbidden
	}

	params := store.TransitionParams{CancelledBy: &cancelledBy}
	updated, err := s.performTransition(ctx, booking, domain.BookingStatusCancelled, params, false)
	if err != nil {
		return nil, err
	}

	s.publishBookingEvent(ctx, "booking.cancelled", updated, "")

	return updated, nil
}

// AdminCancelBooking force-cancels a booking, including the administrative
// completed -> cancelled exception. Cancelling a completed booking does not
// reverse its ledger effects; wallet refunds apply only to bookings that had
// not completed.
func (s *Service) AdminCancelBooking(ctx context.Context, adminID, bookingID uuid.UUID) (*domain.Booking, error) {
	admin, err := s.repo.FindUserByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusCancelled || booking.Status == domain.BookingStatusRejected {
		return nil, ErrInvalidTransition
	}

	cancelledBy := domain.CancelledByAdmin
	params := store.TransitionParams{CancelledBy: &cancelledBy}
	updated, err := s.performTransition(ctx, booking, domain.BookingStatusCancelled, params, false)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=booking msg=%q booking_id=%s admin_id=%s from=%s", "booking cancelled by admin", bookingID, adminID, booking.Status)
	s.publishBookingEvent(ctx, "booking.cancelled", updated, "")

	return updated, nil
}

// workerSideTransition is the shared path for accept, reject, confirm, start,
// and complete: authorize the worker side, tolerate replays of an applied
// transition, validate adjacency, then compare-and-set.
func (s *Service) workerSideTransition(ctx context.Context, actorID, bookingID uuid.UUID, to domain.BookingStatus, params store.TransitionParams, routingKey, reason string) (*domain.Booking, error) {
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !workerSideActor(actorID, booking) {
		return nil, ErrForbidden
	}

	// Replaying an already-applied transition is a no-op; the stamped
	// timestamp is never moved.
	if booking.Status == to {
		return booking, nil
	}
	if !domain.CanTransition(booking.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.performTransition(ctx, booking, to, params, true)
	if err != nil {
		return nil, err
	}

	s.publishBookingEvent(ctx, routingKey, updated, reason)

	return updated, nil
}

// performTransition runs the compare-and-set write, attaching the wallet
// refund when the booking's payment must come back (ending without
// completion). On a lost race the booking is re-read: reaching the target by
// another hand counts as success for idempotent transitions, anything else is
// an invalid transition.
func (s *Service) performTransition(ctx context.Context, booking *domain.Booking, to domain.BookingStatus, params store.TransitionParams, idempotent bool) (*domain.Booking, error) {
	needsRefund := (to == domain.BookingStatusRejected || to == domain.BookingStatusCancelled) &&
		booking.UseWallet && booking.WalletTransactionID != nil &&
		booking.RefundTransactionID == nil && booking.Status != domain.BookingStatusCompleted

	var updated *domain.Booking
	var err error
	if needsRefund {
		payment, perr := s.repo.FindTransactionByID(ctx, *booking.WalletTransactionID)
		if perr != nil {
			return nil, perr
		}
		refund := domain.PostTransactionParams{
			AccountID:     payment.AccountID,
			Type:          domain.TransactionTypeRefund,
			Status:        domain.TransactionStatusCompleted,
			Amount:        payment.Amount,
			PaymentMethod: domain.PaymentMethodWallet,
			Description:   fmt.Sprintf("Refund for %s booking", to),
		}
		updated, _, err = s.repo.TransitionBookingWithRefund(ctx, booking.ID, booking.Status, to, params, refund)
	} else {
		updated, err = s.repo.TransitionBookingStatus(ctx, booking.ID, booking.Status, to, params)
	}

	if err != nil {
		if errors.Is(err, store.ErrBookingStatusConflict) {
			current, rerr := s.repo.FindBookingByID(ctx, booking.ID)
			if rerr != nil {
				return nil, rerr
			}
			if idempotent && current.Status == to {
				return current, nil
			}
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	return updated, nil
}

func (s *Service) publishBookingEvent(ctx context.Context, routingKey string, booking *domain.Booking, reason string) {
	event := domain.BookingEventPayload{
		BookingID:    booking.ID,
		CustomerID:   booking.CustomerID,
		WorkerID:     booking.WorkerID,
		ContractorID: booking.ContractorID,
		Status:       string(booking.Status),
		WorkType:     booking.WorkType,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, routingKey, event); err != nil {
		log.Printf("WARN: Failed to publish %s event for booking %s: %v", routingKey, booking.ID, err)
	}
}

func workerSideActor(actorID uuid.UUID, booking *domain.Booking) bool {
	if actorID == booking.WorkerID {
		return true
	}
	return booking.ContractorID != nil && actorID == *booking.ContractorID
}

func bookingParty(userID uuid.UUID, booking *domain.Booking) bool {
	if userID == booking.CustomerID || userID == booking.WorkerID {
		return true
	}
	return booking.ContractorID != nil && userID == *booking.ContractorID
}

func normalizeBookingListOptions(opts *domain.BookingListOptions) error {
	switch opts.Status {
	case "", domain.BookingStatusPending, domain.BookingStatusAccepted, domain.BookingStatusRejected,
		domain.BookingStatusConfirmed, domain.BookingStatusInProgress,
		domain.BookingStatusCompleted, domain.BookingStatusCancelled:
	default:
		return ErrInvalidFilter
	}

	if opts.Limit <= 0 {
		opts.Limit = defaultPageSize
	}
	if opts.Limit > maxPageSize {
		opts.Limit = maxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return nil
}
