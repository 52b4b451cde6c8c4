/**
 * @description
 * This file contains the rating logic: submission against completed bookings
 * and the public listing of a worker's reviews.
 *
 * A booking is ratable exactly once, by its customer, after completion. The
 * store recomputes the worker's aggregate from the full rating set inside the
 * submission transaction, so the cached average on the worker profile always
 * equals the aggregate over the rating rows.
 */

package app

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

const (
	minReviewLength = 10
	maxReviewLength = 1000
)

// SubmitRating records a customer's rating of a completed booking and returns
// the rating together with the worker's refreshed aggregate.
func (s *Service) SubmitRating(ctx context.Context, customerID, bookingID uuid.UUID, req domain.SubmitRatingRequest) (*domain.Rating, *domain.WorkerRatingAggregate, error) {
	if err := s.checkRateLimit(ctx, "rating_submit", customerID, s.ratingRateLimitPerMinute); err != nil {
		return nil, nil, err
	}

	// 1. Validate the submission.
	if req.Rating < 1 || req.Rating > 5 {
		return nil, nil, ErrInvalidRating
	}
	review := strings.TrimSpace(req.Review)
	if length := utf8.RuneCountInString(review); length < minReviewLength || length > maxReviewLength {
		return nil, nil, ErrInvalidReview
	}

	// 2. The booking must be the caller's and completed.
	booking, err := s.repo.FindBookingByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.CustomerID != customerID {
		return nil, nil, ErrForbidden
	}
	if booking.Status != domain.BookingStatusCompleted {
		return nil, nil, ErrBookingNotCompleted
	}
	if booking.HasRated {
		return nil, nil, store.ErrDuplicateRating
	}

	// 3. Insert and recompute atomically. The unique constraint on the
	// booking closes the race two concurrent submissions would otherwise win
	// together.
	rating := &domain.Rating{
		BookingID:  booking.ID,
		CustomerID: customerID,
		WorkerID:   booking.WorkerID,
		Rating:     req.Rating,
		Review:     review,
	}
	aggregate, err := s.repo.CreateRatingAndRecomputeAggregate(ctx, rating)
	if err != nil {
		return nil, nil, err
	}

	event := domain.RatingSubmittedPayload{
		BookingID:     booking.ID,
		CustomerID:    customerID,
		WorkerID:      booking.WorkerID,
		Rating:        rating.Rating,
		AverageRating: aggregate.AverageRating,
		TotalRatings:  aggregate.TotalRatings,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, "rating.submitted", event); err != nil {
		log.Printf("WARN: Failed to publish rating submitted event for booking %s: %v", booking.ID, err)
	}

	return rating, aggregate, nil
}

// GetWorkerRatings returns a worker's profile and a page of their reviews,
// newest first.
func (s *Service) GetWorkerRatings(ctx context.Context, workerID uuid.UUID, opts domain.RatingListOptions) (*domain.User, []domain.Rating, error) {
	worker, err := s.repo.FindUserByID(ctx, workerID)
	if err != nil {
		return nil, nil, err
	}
	if !worker.Role.IsWorker() {
		return nil, nil, store.ErrUserNotFound
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

	ratings, err := s.repo.ListRatingsByWorker(ctx, workerID, opts)
	if err != nil {
		return nil, nil, err
	}

	return worker, ratings, nil
}
