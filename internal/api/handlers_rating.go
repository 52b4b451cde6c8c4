/**
 * @description
 * This file contains HTTP handlers for rating endpoints: submitting a rating
 * for a completed booking and listing a worker's ratings with the stored
 * aggregate.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: For route parameters.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
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
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

// submitRatingResponse pairs the created rating with the worker's recomputed
// aggregate so clients can update their UI without a second read.
type submitRatingResponse struct {
	Rating          *domain.Rating                `json:"rating"`
	WorkerAggregate *domain.WorkerRatingAggregate `json:"worker_aggregate"`
}

// workerRatingsResponse carries a worker's stored aggregate alongside one
// page of individual ratings.
type workerRatingsResponse struct {
	WorkerID      uuid.UUID       `json:"worker_id"`
	AverageRating float64         `json:"average_rating"`
	TotalRatings  int             `json:"total_ratings"`
	Ratings       []domain.Rating `json:"ratings"`
}

func mapRatingError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found."
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "Worker not found."
	case errors.Is(err, store.ErrDuplicateRating):
		return http.StatusConflict, "This booking was already rated."
	case errors.Is(err, app.ErrBookingNotCompleted):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Only the booking customer may rate it."
	case errors.Is(err, app.ErrInvalidRating),
		errors.Is(err, app.ErrInvalidReview):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, "Could not process rating request."
}

// SubmitRatingHandler records a rating for a completed booking and returns
// the worker's recomputed aggregate.
func (h *Handlers) SubmitRatingHandler(w http.ResponseWriter, r *http.Request) {
	customerID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var req domain.SubmitRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rating, aggregate, err := h.service.SubmitRating(r.Context(), customerID, bookingID, req)
	if err != nil {
		if h.writeRateLimited(w, err) {
			return
		}
		status, msg := mapRatingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=submit_rating outcome=failed customer_id=%s booking_id=%s err=%v", customerID, bookingID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusCreated, submitRatingResponse{
		Rating:          rating,
		WorkerAggregate: aggregate,
	})
}

// GetWorkerRatingsHandler lists a worker's ratings, newest first, together
// with the stored aggregate.
func (h *Handlers) GetWorkerRatingsHandler(w http.ResponseWriter, r *http.Request) {
	_, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	workerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid worker ID")
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

	worker, ratings, err := h.service.GetWorkerRatings(r.Context(), workerID, domain.RatingListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		status, msg := mapRatingError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=worker_ratings outcome=failed worker_id=%s err=%v", workerID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, workerRatingsResponse{
		WorkerID:      worker.ID,
		AverageRating: worker.AverageRating,
		TotalRatings:  worker.TotalRatings,
		Ratings:       ratings,
	})
}
