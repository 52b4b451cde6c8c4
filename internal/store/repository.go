/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the marketplace-service performs. The interface decouples the
 * business logic from PostgreSQL and is what service tests stub out.
 *
 * The atomic multi-write operations (PostTransaction,
 * CreateBookingWithPayment, TransitionBookingWithRefund,
 * CreateRatingAndRecomputeAggregate) each commit as ONE database transaction;
 * callers never see a partial effect.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	// Resolve internal UUID from the external auth subject (JWT `sub`).
	FindUserIDByAuthSubject(ctx context.Context, authSubject string) (string, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// AssignContractor persists the audited contractor assignment on a worker.
	AssignContractor(ctx context.Context, workerID, contractorID, assignedBy uuid.UUID) (*domain.User, error)

	// Account and ledger methods
	FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	// PostTransaction applies the balance delta and appends the ledger row as
	// one unit. Debits that would overdraw fail with ErrInsufficientBalance.
	PostTransaction(ctx context.Context, params domain.PostTransactionParams) (*domain.Transaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
	FindTransactionByGatewayReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error)
	SummarizeTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionSummary, error)
	// Withdrawal settlement: both flips are conditioned on the row still being
	// pending and fail with ErrTransactionNotPending once settled.
	MarkWithdrawalCompleted(ctx context.Context, transactionID uuid.UUID) error
	FailWithdrawalWithRefund(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason string) (*domain.Transaction, error)

	// Booking methods
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	CreateBookingWithPayment(ctx context.Context, booking *domain.Booking, payment domain.PostTransactionParams) (*domain.Transaction, error)
	FindBookingByID(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error)
	ListBookingsByWorker(ctx context.Context, workerID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error)
	ListBookingsByContractor(ctx context.Context, contractorID uuid.UUID, opts domain.BookingListOptions) ([]domain.Booking, error)
	// TransitionBookingStatus is the compare-and-set write: the update only
	// applies while the row still holds `from`, stamping the transition
	// timestamp at most once. A lost race fails with ErrBookingStatusConflict.
	TransitionBookingStatus(ctx context.Context, bookingID uuid.UUID, from, to domain.BookingStatus, params TransitionParams) (*domain.Booking, error)
	TransitionBookingWithRefund(ctx context.Context, bookingID uuid.UUID, from, to domain.BookingStatus, params TransitionParams, refund domain.PostTransactionParams) (*domain.Booking, *domain.Transaction, error)
	ListStalePendingBookings(ctx context.Context, before time.Time, limit int) ([]domain.Booking, error)
	DeleteTerminalBookings(ctx context.Context, before time.Time) (int64, error)

	// Rating methods
	CreateRatingAndRecomputeAggregate(ctx context.Context, rating *domain.Rating) (*domain.WorkerRatingAggregate, error)
	ListRatingsByWorker(ctx context.Context, workerID uuid.UUID, opts domain.RatingListOptions) ([]domain.Rating, error)

	// Dashboard rollups (read-only; reflect committed rows, may trail writers)
	CountBookingsByStatus(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) ([]domain.StatusCount, error)
	CountBookingsByWorkType(ctx context.Context, from, to time.Time) ([]domain.WorkTypeCount, error)
	SumCompletedBookings(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) (count int64, revenue int64, err error)
	SummarizePlatformTransactions(ctx context.Context, from, to time.Time) ([]domain.TransactionTypeSummary, error)
	CountNewCustomers(ctx context.Context, from, to time.Time) (int64, error)
	CountCompletedBookingsByWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) (int64, error)
}

// TransitionParams carries the optional columns a status transition writes
// alongside the status itself.
type TransitionParams struct {
	RejectedReason *string
	CancelledBy    *string
	FinalPrice     *int64
}
