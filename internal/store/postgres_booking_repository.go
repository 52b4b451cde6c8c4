/**
 * @description
 * PostgreSQL implementation of the booking persistence methods.
 *
 * The two compound writes here are the heart of the booking lifecycle:
 * - CreateBookingWithPayment inserts the booking and debits the customer's
 *   wallet in one database transaction, so a booking backed by wallet funds
 *   either exists fully paid or not at all.
 * - Transition writes are compare-and-set: the UPDATE only applies while the
 *   row still holds the status the caller observed, and each lifecycle
 *   timestamp is stamped through COALESCE so replays never move it.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and toolkit.
 *
 * @notes
 * - Expects a `bookings` table. `transactions.related_booking_id` must be
 *   ON DELETE SET NULL so retention cleanup can remove old bookings without
 *   touching the ledger.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/workbridge/marketplace-service/internal/domain"
)

// bookingColumns is the canonical select list for scanning booking rows.
const bookingColumns = `id, customer_id, worker_id, contractor_id, work_type, location, notes,
	start_date, end_date, payment_method, budget, use_wallet,
	wallet_transaction_id, refund_transaction_id, final_price, status,
	accepted_at, confirmed_at, started_at, completed_at,
	cancelled_at, cancelled_by, rejected_at, rejected_reason,
	has_rated, rating_submitted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// queryRower lets the booking helpers run against either the pool or an open
// pgx transaction.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.WorkerID, &b.ContractorID, &b.WorkType, &b.Location, &b.Notes,
		&b.StartDate, &b.EndDate, &b.PaymentMethod, &b.Budget, &b.UseWallet,
		&b.WalletTransactionID, &b.RefundTransactionID, &b.FinalPrice, &b.Status,
		&b.AcceptedAt, &b.ConfirmedAt, &b.StartedAt, &b.CompletedAt,
		&b.CancelledAt, &b.CancelledBy, &b.RejectedAt, &b.RejectedReason,
		&b.HasRated, &b.RatingSubmittedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a new booking request and populates the generated
// fields on the passed struct.
func (r *PostgresRepository) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	if err := createBookingTx(ctx, r.db, booking); err != nil {
		return err
	}
	return nil
}

func createBookingTx(ctx context.Context, q queryRower, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (customer_id, worker_id, contractor_id, work_type, location, notes,
		                      start_date, end_date, payment_method, budget, use_wallet, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		booking.CustomerID, booking.WorkerID, booking.ContractorID, booking.WorkType,
		booking.Location, booking.Notes, booking.StartDate, booking.EndDate,
		booking.PaymentMethod, booking.Budget, booking.UseWallet, booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// CreateBookingWithPayment inserts the booking and debits the customer's
// wallet as one unit.
//
// The booking row is inserted first so the payment's related_booking_id
// reference resolves; if the debit then fails (typically
// ErrInsufficientBalance) the whole transaction rolls back and the booking
// never existed.
func (r *PostgresRepository) CreateBookingWithPayment(ctx context.Context, booking *domain.Booking, payment domain.PostTransactionParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert the booking shell.
	if err := createBookingTx(ctx, tx, booking); err != nil {
		return nil, err
	}

	// 2. Debit the wallet, linking the ledger row to the new booking.
	payment.RelatedBookingID = &booking.ID
	paymentTx, err := postTransactionTx(ctx, tx, payment)
	if err != nil {
		return nil, err
	}

	// 3. Link the booking back to its payment row.
	linkQuery := `UPDATE bookings SET wallet_transaction_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, linkQuery, paymentTx.ID, booking.ID); err != nil {
		return nil, fmt.Errorf("failed to link booking payment: %w", err)
	}
	booking.WalletTransactionID = &paymentTx.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return paymentTx, nil
}

// FindBookingByID retrieves a single booking.
func (r *PostgresRepository) FindBookingByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	booking, err := scanBooking(r.db.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to find booking by id: %w", err)
	}

	return booking, nil
}

// ListBookingsByCustomer retrieves a customer's bookings, newest first.
func (r *PostgresRepository) ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error) {
	return r.listBookings(ctx, "customer_id", customerID, opts)
}

// ListBookingsByWorker retrieves a worker's bookings, newest first.
func (r *PostgresRepository) ListBookingsByWorker(ctx context.Context, workerID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error) {
	return r.listBookings(ctx, "worker_id", workerID, opts)
}

// ListBookingsByContractor retrieves bookings routed to a contractor's
// workers, newest first.
func (r *PostgresRepository) ListBookingsByContractor(ctx context.Context, contractorID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error) {
	return r.listBookings(ctx, "contractor_id", contractorID, opts)
}

func (r *PostgresRepository) listBookings(ctx context.Context, column string, id uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s = $1`, bookingColumns, column)
	args := []interface{}{id}
	argPos := 2

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, opts.Status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}

	return bookings, nil
}

// TransitionBookingStatus performs the compare-and-set status update.
//
// The WHERE clause pins the status the caller observed, so of two racing
// writers exactly one succeeds; the loser gets ErrBookingStatusConflict and
// must re-read to decide whether the booking already reached its target.
// Lifecycle timestamps are written with COALESCE and therefore stamped at
// most once, no matter how often a transition is replayed.
func (r *PostgresRepository) TransitionBookingStatus(ctx context.Context, bookingID uuid.UUID, from, to domain.BookingStatus, params TransitionParams) (*domain.Booking, error) {
	booking, err := transitionBookingStatusTx(ctx, r.db, bookingID, from, to, params)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func transitionBookingStatusTx(ctx context.Context, q queryRower, bookingID uuid.UUID, from, to domain.BookingStatus, params TransitionParams) (*domain.Booking, error) {
	query := `UPDATE bookings SET status = $1, updated_at = NOW()`
	args := []interface{}{to}
	argPos := 2

	switch to {
	case domain.BookingStatusAccepted:
		query += ", accepted_at = COALESCE(accepted_at, NOW())"
	case domain.BookingStatusRejected:
		query += ", rejected_at = COALESCE(rejected_at, NOW())"
		query += fmt.Sprintf(", rejected_reason = COALESCE($%d, rejected_reason)", argPos)
		args = append(args, params.RejectedReason)
		argPos++
	case domain.BookingStatusConfirmed:
		query += ", confirmed_at = COALESCE(confirmed_at, NOW())"
	case domain.BookingStatusInProgress:
		query += ", started_at = COALESCE(started_at, NOW())"
	case domain.BookingStatusCompleted:
		query += ", completed_at = COALESCE(completed_at, NOW())"
		query += fmt.Sprintf(", final_price = COALESCE($%d, final_price, budget)", argPos)
		args = append(args, params.FinalPrice)
		argPos++
	case domain.BookingStatusCancelled:
		query += ", cancelled_at = COALESCE(cancelled_at, NOW())"
		query += fmt.Sprintf(", cancelled_by = COALESCE($%d, cancelled_by)", argPos)
		args = append(args, params.CancelledBy)
		argPos++
	}

	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d RETURNING %s", argPos, argPos+1, bookingColumns)
	args = append(args, bookingID, from)

	booking, err := scanBooking(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingStatusConflict
		}
		return nil, fmt.Errorf("failed to transition booking status: %w", err)
	}

	return booking, nil
}

// TransitionBookingWithRefund applies the status transition and credits the
// customer's wallet back in the same database transaction. Used when a
// wallet-paid booking is rejected or cancelled.
//
// Double refunds are impossible: the compare-and-set only passes once for a
// given source status, and the refund posts only when it passes.
func (r *PostgresRepository) TransitionBookingWithRefund(ctx context.Context, bookingID uuid.UUID, from, to domain.BookingStatus, params TransitionParams, refund domain.PostTransactionParams) (*domain.Booking, *domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Win the status race or bail out.
	booking, err := transitionBookingStatusTx(ctx, tx, bookingID, from, to, params)
	if err != nil {
		return nil, nil, err
	}

	// 2. Credit the customer's wallet back.
	refund.RelatedBookingID = &booking.ID
	refundTx, err := postTransactionTx(ctx, tx, refund)
	if err != nil {
		return nil, nil, err
	}

	// 3. Record the refund on the booking.
	linkQuery := `UPDATE bookings SET refund_transaction_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, linkQuery, refundTx.ID, booking.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to link booking refund: %w", err)
	}
	booking.RefundTransactionID = &refundTx.ID

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return booking, refundTx, nil
}

// ListStalePendingBookings retrieves pending bookings created before the
// cutoff, oldest first. The cleanup job cancels these through the normal
// transition path so refunds and events still apply.
func (r *PostgresRepository) ListStalePendingBookings(ctx context.Context, before time.Time, limit int) ([]domain.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`, bookingColumns)

	rows, err := r.db.Query(ctx, query, domain.BookingStatusPending, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending bookings: %w", err)
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}

	return bookings, nil
}

// DeleteTerminalBookings hard-deletes rejected and cancelled bookings last
// touched before the cutoff. Rated bookings are kept so review history stays
// intact.
func (r *PostgresRepository) DeleteTerminalBookings(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM bookings
		WHERE status IN ($1, $2) AND updated_at < $3 AND has_rated = FALSE
	`

	cmdTag, err := r.db.Exec(ctx, query, domain.BookingStatusRejected, domain.BookingStatusCancelled, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal bookings: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}
