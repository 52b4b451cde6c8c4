/**
 * @description
 * This file defines the rating domain model. A rating is tied to exactly one
 * completed booking (unique on bookingId) and feeds the worker's recomputed
 * aggregate {averageRating, totalRatings}.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rating represents one customer review of a completed booking. Maps to the
// `ratings` table; the booking_id column carries a unique constraint.
type Rating struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	Rating     int       `json:"rating"` // 1..5
	Review     string    `json:"review"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmitRatingRequest is the DTO for rating submission.
type SubmitRatingRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// WorkerRatingAggregate is the recomputed aggregate persisted on the worker.
type WorkerRatingAggregate struct {
	WorkerID      uuid.UUID `json:"worker_id"`
	AverageRating float64   `json:"average_rating"` // one decimal place
	TotalRatings  int       `json:"total_ratings"`
}

// RatingListOptions controls pagination for a worker's rating listing.
type RatingListOptions struct {
	Limit  int
	Offset int
}
