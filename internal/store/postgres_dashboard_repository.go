/**
 * @description
 * PostgreSQL implementation of the dashboard rollup queries. These are plain
 * read-only aggregations over committed rows; they take no locks and may
 * trail in-flight writers by design of the read path.
 *
 * Revenue figures sum the final price of bookings whose completion fell
 * inside the window, which is why these queries filter on completed_at
 * rather than created_at.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
)

// CountBookingsByStatus groups bookings created in the window by their
// current status. A non-nil contractorID restricts the count to that
// contractor's workers.
func (r *PostgresRepository) CountBookingsByStatus(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) ([]domain.StatusCount, error) {
	query := `
		SELECT status, COUNT(*)
		FROM bookings
		WHERE created_at >= $1 AND created_at <= $2
	`
	args := []interface{}{from, to}

	if contractorID != nil {
		query += " AND contractor_id = $3"
		args = append(args, *contractorID)
	}
	query += " GROUP BY status ORDER BY status"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}
	defer rows.Close()

	counts := []domain.StatusCount{}
	for rows.Next() {
		var c domain.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status count rows: %w", err)
	}

	return counts, nil
}

// CountBookingsByWorkType groups bookings created in the window by work
// type, most requested first.
func (r *PostgresRepository) CountBookingsByWorkType(ctx context.Context, from, to time.Time) ([]domain.WorkTypeCount, error) {
	query := `
		SELECT work_type, COUNT(*)
		FROM bookings
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY work_type
		ORDER BY COUNT(*) DESC, work_type
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings by work type: %w", err)
	}
	defer rows.Close()

	counts := []domain.WorkTypeCount{}
	for rows.Next() {
		var c domain.WorkTypeCount
		if err := rows.Scan(&c.WorkType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan work type count row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work type count rows: %w", err)
	}

	return counts, nil
}

// SumCompletedBookings returns how many bookings completed in the window and
// their summed final price. A non-nil contractorID restricts the figures to
// that contractor's workers.
func (r *PostgresRepository) SumCompletedBookings(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) (int64, int64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(COALESCE(final_price, 0)), 0)
		FROM bookings
		WHERE status = $1 AND completed_at >= $2 AND completed_at <= $3
	`
	args := []interface{}{domain.BookingStatusCompleted, from, to}

	if contractorID != nil {
		query += " AND contractor_id = $4"
		args = append(args, *contractorID)
	}

	var count, revenue int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count, &revenue); err != nil {
		return 0, 0, fmt.Errorf("failed to sum completed bookings: %w", err)
	}

	return count, revenue, nil
}

// SummarizePlatformTransactions aggregates ledger rows across all accounts
// by type for the window.
func (r *PostgresRepository) SummarizePlatformTransactions(ctx context.Context, from, to time.Time) ([]domain.TransactionTypeSummary, error) {
	query := `
		SELECT type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY type
		ORDER BY type
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize platform transactions: %w", err)
	}
	defer rows.Close()

	summaries := []domain.TransactionTypeSummary{}
	for rows.Next() {
		var s domain.TransactionTypeSummary
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan platform summary row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platform summary rows: %w", err)
	}

	return summaries, nil
}

// CountNewCustomers counts customer signups in the window.
func (r *PostgresRepository) CountNewCustomers(ctx context.Context, from, to time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE role = $1 AND created_at >= $2 AND created_at <= $3
	`

	var count int64
	if err := r.db.QueryRow(ctx, query, domain.RoleCustomer, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count new customers: %w", err)
	}

	return count, nil
}

// CountCompletedBookingsByWorker counts a single worker's completions in the
// window. Feeds the worker summary card.
func (r *PostgresRepository) CountCompletedBookingsByWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE worker_id = $1 AND status = $2 AND completed_at >= $3 AND completed_at <= $4
	`

	var count int64
	if err := r.db.QueryRow(ctx, query, workerID, domain.BookingStatusCompleted, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed bookings by worker: %w", err)
	}

	return count, nil
}
