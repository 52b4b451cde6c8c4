/**
 * @description
 * PostgreSQL implementation of the rating persistence methods.
 *
 * Submitting a rating is a single database transaction that inserts the
 * rating row, recomputes the worker's aggregate from the full rating set,
 * and stamps the source booking as rated. Recomputing from scratch instead
 * of nudging a running average keeps the aggregate exact under concurrent
 * submissions for the same worker.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgconn: For PostgreSQL error code inspection.
 *
 * @notes
 * - Expects a `ratings` table with a UNIQUE constraint on booking_id; the
 *   unique violation is what makes one-rating-per-booking hold under races.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/workbridge/marketplace-service/internal/domain"
)

// CreateRatingAndRecomputeAggregate inserts the rating, refreshes the
// worker's cached average and count, and marks the booking rated, all in one
// database transaction. Returns the refreshed aggregate.
func (r *PostgresRepository) CreateRatingAndRecomputeAggregate(ctx context.Context, rating *domain.Rating) (*domain.WorkerRatingAggregate, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert the rating. The UNIQUE constraint on booking_id rejects a
	// second rating for the same booking.
	insertQuery := `
		INSERT INTO ratings (booking_id, customer_id, worker_id, rating, review)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insertQuery,
		rating.BookingID, rating.CustomerID, rating.WorkerID, rating.Rating, rating.Review,
	).Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateRating
		}
		return nil, fmt.Errorf("failed to insert rating: %w", err)
	}

	// 2. Recompute the worker's aggregate from all of their ratings.
	aggregate := domain.WorkerRatingAggregate{WorkerID: rating.WorkerID}
	recomputeQuery := `
		SELECT COUNT(*), COALESCE(ROUND(AVG(rating)::numeric, 1), 0)
		FROM ratings
		WHERE worker_id = $1
	`
	err = tx.QueryRow(ctx, recomputeQuery, rating.WorkerID).Scan(&aggregate.TotalRatings, &aggregate.AverageRating)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute worker rating aggregate: %w", err)
	}

	// 3. Refresh the cached aggregate on the worker profile.
	updateUserQuery := `UPDATE users SET average_rating = $1, total_ratings = $2 WHERE id = $3`
	if _, err := tx.Exec(ctx, updateUserQuery, aggregate.AverageRating, aggregate.TotalRatings, rating.WorkerID); err != nil {
		return nil, fmt.Errorf("failed to update worker rating aggregate: %w", err)
	}

	// 4. Mark the booking rated, stamping the submission time at most once.
	updateBookingQuery := `
		UPDATE bookings
		SET has_rated = TRUE, rating_submitted_at = COALESCE(rating_submitted_at, NOW()), updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateBookingQuery, rating.BookingID); err != nil {
		return nil, fmt.Errorf("failed to mark booking rated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &aggregate, nil
}

// ListRatingsByWorker retrieves a page of a worker's ratings, newest first.
func (r *PostgresRepository) ListRatingsByWorker(ctx context.Context, workerID uuid.UUID, opts domain.RatingListOptions) ([]domain.Rating, error) {
	query := `
		SELECT id, booking_id, customer_id, worker_id, rating, review, created_at
		FROM ratings
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, workerID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list worker ratings: %w", err)
	}
	defer rows.Close()

	ratings := []domain.Rating{}
	for rows.Next() {
		var rt domain.Rating
		err := rows.Scan(&rt.ID, &rt.BookingID, &rt.CustomerID, &rt.WorkerID, &rt.Rating, &rt.Review, &rt.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		ratings = append(ratings, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating rows: %w", err)
	}

	return ratings, nil
}
