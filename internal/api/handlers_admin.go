/**
 * @description
 * This file contains HTTP handlers for administrative and internal
 * endpoints. Admin endpoints ride the regular JWT auth with the role check
 * enforced in the service layer. Internal endpoints are server-to-server
 * calls guarded by the shared API key middleware.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For route parameters.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/app"
	"github.com/workbridge/marketplace-service/internal/store"
)

type assignContractorPayload struct {
	ContractorID uuid.UUID `json:"contractor_id"`
}

type creditEarningsPayload struct {
	Amount           int64      `json:"amount"`
	Description      string     `json:"description"`
	RelatedBookingID *uuid.UUID `json:"related_booking_id,omitempty"`
}

type cleanupResponse struct {
	Expired int   `json:"expired"`
	Purged  int64 `json:"purged"`
}

func mapAdminError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, store.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found."
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "Wallet account not found."
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Admin privileges required."
	case errors.Is(err, app.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrInvalidRole),
		errors.Is(err, app.ErrInvalidAmount):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, "Could not process admin request."
}

// AssignContractorHandler attaches a contractor to a contract worker. The
// assignment is audited with the acting admin's ID.
func (h *Handlers) AssignContractorHandler(w http.ResponseWriter, r *http.Request) {
	adminID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	workerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid worker ID")
		return
	}

	var payload assignContractorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.ContractorID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "contractor_id is required")
		return
	}

	worker, err := h.service.AssignContractor(r.Context(), adminID, workerID, payload.ContractorID)
	if err != nil {
		status, msg := mapAdminError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=assign_contractor outcome=failed admin_id=%s worker_id=%s err=%v", adminID, workerID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, worker)
}

// AdminCancelBookingHandler cancels a booking on behalf of an administrator.
// Admins may cancel from any non-terminal status and, as the one exception,
// from completed.
func (h *Handlers) AdminCancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	adminID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.service.AdminCancelBooking(r.Context(), adminID, bookingID)
	if err != nil {
		status, msg := mapAdminError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=admin_cancel_booking outcome=failed admin_id=%s booking_id=%s err=%v", adminID, bookingID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, booking)
}

// CreditEarningsHandler credits a worker's wallet from an internal caller,
// for example when a settlement job pays out completed work.
func (h *Handlers) CreditEarningsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var payload creditEarningsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.service.CreditEarnings(r.Context(), userID, payload.Amount, payload.Description, payload.RelatedBookingID)
	if err != nil {
		status, msg := mapAdminError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=credit_earnings outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusCreated, transaction)
}

// RunBookingCleanupHandler triggers one booking cleanup pass outside the
// cron schedule.
func (h *Handlers) RunBookingCleanupHandler(w http.ResponseWriter, r *http.Request) {
	if h.cleanup == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Cleanup jobs are not configured.")
		return
	}

	expired, purged, err := h.cleanup.RunNow(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=run_cleanup outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Cleanup run failed.")
		return
	}

	h.writeJSON(w, http.StatusOK, cleanupResponse{
		Expired: expired,
		Purged:  purged,
	})
}
