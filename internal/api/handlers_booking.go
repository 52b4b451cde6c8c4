/**
 * @description
 * This file contains HTTP handlers for booking lifecycle endpoints: creation,
 * listing, detail, and the status transitions (accept, reject, confirm,
 * start, complete, cancel). Handlers parse requests, call the application
 * service, and map service errors to HTTP statuses.
 *
 * @dependencies
 * - encoding/json, errors, io, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For route parameters.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/app"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

func mapBookingError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found."
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "Wallet account not found."
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "Insufficient wallet balance."
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Not allowed to act on this booking."
	case errors.Is(err, app.ErrInvalidTransition),
		errors.Is(err, app.ErrContractorUnresolved):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrMissingFields),
		errors.Is(err, app.ErrStartDateInPast),
		errors.Is(err, app.ErrInvalidDateRange),
		errors.Is(err, app.ErrSelfBooking),
		errors.Is(err, app.ErrMissingBudget),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidPaymentMethod),
		errors.Is(err, app.ErrInvalidRole),
		errors.Is(err, app.ErrInvalidFilter):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, "Could not process booking request."
}

// bookingIDFromRequest parses the {id} route parameter.
func bookingIDFromRequest(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// CreateBookingHandler creates a new booking for the authenticated customer.
func (h *Handlers) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	customerID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	var req domain.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), customerID, req)
	if err != nil {
		if h.writeRateLimited(w, err) {
			return
		}
		status, msg := mapBookingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=create_booking outcome=failed customer_id=%s err=%v", customerID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusCreated, booking)
}

// ListBookingsHandler lists bookings for the caller's side of the
// marketplace: customers see bookings they placed, workers see bookings
// placed with them, contractors see their whole fleet.
func (h *Handlers) ListBookingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	limit, err := parseOptionalPositiveInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := parseOptionalPositiveInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	opts := domain.BookingListOptions{
		Status: domain.BookingStatus(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status")))),
		Limit:  limit,
		Offset: offset,
	}

	bookings, err := h.service.ListBookings(r.Context(), userID, opts)
	if err != nil {
		status, msg := mapBookingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=list_bookings outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, bookings)
}

// GetBookingHandler returns one booking visible to the caller.
func (h *Handlers) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	bookingID, err := bookingIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.service.GetBooking(r.Context(), userID, bookingID)
	if err != nil {
		status, msg := mapBookingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=get_booking outcome=failed user_id=%s booking_id=%s err=%v", userID, bookingID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, booking)
}

// AcceptBookingHandler moves a pending booking to accepted.
func (h *Handlers) AcceptBookingHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, "accept_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.AcceptBooking(r.Context(), actorID, bookingID)
	})
}

// RejectBookingHandler moves a pending booking to rejected. The body may
// carry an optional reason.
func (h *Handlers) RejectBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RejectBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.transitionBooking(w, r, "reject_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.RejectBooking(r.Context(), actorID, bookingID, req.Reason)
	})
}

// ConfirmBookingHandler moves an accepted booking to confirmed.
func (h *Handlers) ConfirmBookingHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, "confirm_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.ConfirmBooking(r.Context(), actorID, bookingID)
	})
}

// StartBookingHandler moves a confirmed booking to in progress.
func (h *Handlers) StartBookingHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, "start_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.StartBooking(r.Context(), actorID, bookingID)
	})
}

// CompleteBookingHandler moves an in-progress booking to completed. The body
// may carry an optional final price.
func (h *Handlers) CompleteBookingHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.transitionBooking(w, r, "complete_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.CompleteBooking(r.Context(), actorID, bookingID, req.FinalPrice)
	})
}

// CancelBookingHandler cancels a booking on behalf of the caller. The service
// decides which source statuses the caller's role may cancel from.
func (h *Handlers) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, "cancel_booking", func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error) {
		return h.service.CancelBooking(r.Context(), actorID, bookingID)
	})
}

// transitionBooking is the shared handler chain for status transition
// endpoints: resolve the actor, parse the booking ID, run the transition, and
// map errors.
func (h *Handlers) transitionBooking(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	transition func(r *http.Request, actorID, bookingID uuid.UUID) (*domain.Booking, error),
) {
	actorID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	bookingID, err := bookingIDFromRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := transition(r, actorID, bookingID)
	if err != nil {
		status, msg := mapBookingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=%s outcome=failed actor_id=%s booking_id=%s err=%v", endpoint, actorID, bookingID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, booking)
}
