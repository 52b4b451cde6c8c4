/**
 * @description
 * PostgreSQL implementation of the Repository interface for users, accounts,
 * and the wallet ledger. Uses the pgx/v5 driver via a connection pool.
 *
 * Every balance mutation goes through PostTransaction (or one of the atomic
 * booking/withdrawal units in the sibling files) so that the account balance
 * and its ledger row always commit together. Ledger rows are append-only:
 * settlement flips a row's status but never touches amounts or balance
 * snapshots.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and toolkit.
 * - github.com/jackc/pgx/v5/pgxpool: For connection pooling.
 *
 * @notes
 * - Expects `users`, `accounts`, and `transactions` tables to exist.
 * - `transactions.gateway_reference` carries a partial unique index so a
 *   replayed gateway event cannot post a second recharge.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/workbridge/marketplace-service/internal/domain"
)

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountNotFound is returned when a wallet account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTransactionNotFound is returned when a ledger row does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionNotPending is returned when a settlement flip targets a
	// row that has already left the pending state.
	ErrTransactionNotPending = errors.New("transaction is not pending")
	// ErrInsufficientBalance is returned when a debit would overdraw the wallet.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrDuplicateGatewayReference is returned when a posting reuses a gateway
	// reference that has already been recorded.
	ErrDuplicateGatewayReference = errors.New("gateway reference already recorded")
	// ErrBookingNotFound is returned when a booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingStatusConflict is returned when a conditional status update
	// finds the booking no longer in the expected state.
	ErrBookingStatusConflict = errors.New("booking status conflict")
	// ErrDuplicateRating is returned when a booking has already been rated.
	ErrDuplicateRating = errors.New("booking already rated")
)

// PostgresRepository provides methods for interacting with the PostgreSQL database.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserIDByAuthSubject retrieves the internal user ID for an external auth
// subject (the `sub` claim of a verified access token).
func (r *PostgresRepository) FindUserIDByAuthSubject(ctx context.Context, authSubject string) (string, error) {
	query := `SELECT id FROM users WHERE auth_subject = $1`

	var userID string
	err := r.db.QueryRow(ctx, query, authSubject).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to find user by auth subject: %w", err)
	}

	return userID, nil
}

// FindUserByID retrieves a user profile by its internal ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, auth_subject, full_name, phone, role, work_type,
		       contractor_id, contractor_assigned_by, contractor_assigned_at,
		       average_rating, total_ratings, created_at
		FROM users
		WHERE id = $1
	`

	var u domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.AuthSubject, &u.FullName, &u.Phone, &u.Role, &u.WorkType,
		&u.ContractorID, &u.ContractorAssignedBy, &u.ContractorAssignedAt,
		&u.AverageRating, &u.TotalRatings, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}

	return &u, nil
}

// AssignContractor stamps a worker's contractor together with the admin who
// made the call. Role checks happen in the service layer before this write.
func (r *PostgresRepository) AssignContractor(ctx context.Context, workerID, contractorID, assignedBy uuid.UUID) (*domain.User, error) {
	query := `
		UPDATE users
		SET contractor_id = $2, contractor_assigned_by = $3, contractor_assigned_at = NOW()
		WHERE id = $1
		RETURNING id, auth_subject, full_name, phone, role, work_type,
		          contractor_id, contractor_assigned_by, contractor_assigned_at,
		          average_rating, total_ratings, created_at
	`

	var u domain.User
	err := r.db.QueryRow(ctx, query, workerID, contractorID, assignedBy).Scan(
		&u.ID, &u.AuthSubject, &u.FullName, &u.Phone, &u.Role, &u.WorkType,
		&u.ContractorID, &u.ContractorAssignedBy, &u.ContractorAssignedAt,
		&u.AverageRating, &u.TotalRatings, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to assign contractor: %w", err)
	}

	return &u, nil
}

// FindAccountByUserID retrieves a wallet account by its owner's user ID.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE user_id = $1`

	var a domain.Account
	err := r.db.QueryRow(ctx, query, userID).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by user id: %w", err)
	}

	return &a, nil
}

// FindAccountByID retrieves a wallet account by its ID.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, user_id, balance, created_at, updated_at FROM accounts WHERE id = $1`

	var a domain.Account
	err := r.db.QueryRow(ctx, query, accountID).Scan(&a.ID, &a.UserID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by id: %w", err)
	}

	return &a, nil
}

// PostTransaction appends a ledger row and applies its balance delta in a
// single database transaction.
//
// The account row is locked first so concurrent postings serialize; the
// balance snapshots written on the row therefore always equal the account
// balance at the commit instant. Debit rows that would take the balance
// negative abort with ErrInsufficientBalance.
func (r *PostgresRepository) PostTransaction(ctx context.Context, params domain.PostTransactionParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	transaction, err := postTransactionTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return transaction, nil
}

// postTransactionTx runs the lock, balance update, and ledger insert inside
// the caller's transaction. Shared with the atomic booking and settlement
// units so they post rows without nesting database transactions.
func postTransactionTx(ctx context.Context, tx pgx.Tx, params domain.PostTransactionParams) (*domain.Transaction, error) {
	// 1. Lock the account row to serialize concurrent balance changes.
	var balance int64
	lockQuery := `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, lockQuery, params.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account for posting: %w", err)
	}

	// 2. Apply the delta. Credits add, debits subtract, and a debit may never
	// overdraw the wallet.
	delta := params.Amount
	if !params.Type.IsCredit() {
		if balance < params.Amount {
			return nil, ErrInsufficientBalance
		}
		delta = -params.Amount
	}
	newBalance := balance + delta

	updateQuery := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQuery, newBalance, params.AccountID); err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	// 3. Append the ledger row with the before/after snapshots.
	insertQuery := `
		INSERT INTO transactions (account_id, type, status, amount, balance_before, balance_after,
		                          related_account_id, related_booking_id, payment_method,
		                          gateway_reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	transaction := domain.Transaction{
		AccountID:        params.AccountID,
		Type:             params.Type,
		Status:           params.Status,
		Amount:           params.Amount,
		BalanceBefore:    balance,
		BalanceAfter:     newBalance,
		RelatedAccountID: params.RelatedAccountID,
		RelatedBookingID: params.RelatedBookingID,
		PaymentMethod:    params.PaymentMethod,
		GatewayReference: params.GatewayReference,
		Description:      params.Description,
	}
	err = tx.QueryRow(ctx, insertQuery,
		params.AccountID, params.Type, params.Status, params.Amount, balance, newBalance,
		params.RelatedAccountID, params.RelatedBookingID, params.PaymentMethod,
		params.GatewayReference, params.Description,
	).Scan(&transaction.ID, &transaction.CreatedAt, &transaction.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateGatewayReference
		}
		return nil, fmt.Errorf("failed to insert ledger row: %w", err)
	}

	return &transaction, nil
}

// FindTransactionByID retrieves a single ledger row.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, account_id, type, status, amount, balance_before, balance_after,
		       related_account_id, related_booking_id, payment_method,
		       gateway_reference, failure_reason, description, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`

	var t domain.Transaction
	err := r.db.QueryRow(ctx, query, transactionID).Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Status, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.RelatedAccountID, &t.RelatedBookingID, &t.PaymentMethod,
		&t.GatewayReference, &t.FailureReason, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by id: %w", err)
	}

	return &t, nil
}

// FindTransactionByGatewayReference retrieves a ledger row by the payment
// gateway's reference. Used to make gateway event processing idempotent.
func (r *PostgresRepository) FindTransactionByGatewayReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `
		SELECT id, account_id, type, status, amount, balance_before, balance_after,
		       related_account_id, related_booking_id, payment_method,
		       gateway_reference, failure_reason, description, created_at, updated_at
		FROM transactions
		WHERE gateway_reference = $1
	`

	var t domain.Transaction
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&t.ID, &t.AccountID, &t.Type, &t.Status, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.RelatedAccountID, &t.RelatedBookingID, &t.PaymentMethod,
		&t.GatewayReference, &t.FailureReason, &t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by gateway reference: %w", err)
	}

	return &t, nil
}

// ListTransactions retrieves a page of ledger rows for an account, newest
// first, applying the optional type/status/time filters.
func (r *PostgresRepository) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `
		SELECT id, account_id, type, status, amount, balance_before, balance_after,
		       related_account_id, related_booking_id, payment_method,
		       gateway_reference, failure_reason, description, created_at, updated_at
		FROM transactions
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argPos := 2

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, filter.Type)
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argPos)
		args = append(args, *filter.To)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.Type, &t.Status, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.RelatedAccountID, &t.RelatedBookingID, &t.PaymentMethod,
			&t.GatewayReference, &t.FailureReason, &t.Description, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

// SummarizeTransactions aggregates an account's ledger rows by type within
// the optional time window.
func (r *PostgresRepository) SummarizeTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionSummary, error) {
	query := `
		SELECT type, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argPos := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *filter.From)
		argPos++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argPos)
		args = append(args, *filter.To)
		argPos++
	}

	query += " GROUP BY type ORDER BY type"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}
	defer rows.Close()

	summary := domain.TransactionSummary{AccountID: accountID, ByType: []domain.TransactionTypeSummary{}}
	for rows.Next() {
		var s domain.TransactionTypeSummary
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.ByType = append(summary.ByType, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	return &summary, nil
}

// MarkWithdrawalCompleted flips a pending withdrawal to completed. The funds
// left the wallet when the withdrawal was posted, so settlement is a pure
// status flip.
func (r *PostgresRepository) MarkWithdrawalCompleted(ctx context.Context, transactionID uuid.UUID) error {
	query := `
		UPDATE transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND type = $3 AND status = $4
	`

	cmdTag, err := r.db.Exec(ctx, query,
		domain.TransactionStatusCompleted, transactionID,
		domain.TransactionTypeWithdraw, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal completed: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		// Distinguish a missing row from one that already settled.
		if _, findErr := r.FindTransactionByID(ctx, transactionID); findErr != nil {
			return findErr
		}
		return ErrTransactionNotPending
	}

	return nil
}

// FailWithdrawalWithRefund settles a pending withdrawal as failed or
// cancelled and posts the compensating refund in the same database
// transaction, so the wallet is never left debited for a withdrawal that
// did not go through.
func (r *PostgresRepository) FailWithdrawalWithRefund(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason string) (*domain.Transaction, error) {
	if status != domain.TransactionStatusFailed && status != domain.TransactionStatusCancelled {
		return nil, fmt.Errorf("invalid settlement status %q for withdrawal %s", status, transactionID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock the withdrawal row and verify it is still pending.
	var withdrawal domain.Transaction
	lockQuery := `
		SELECT id, account_id, type, status, amount
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockQuery, transactionID).Scan(
		&withdrawal.ID, &withdrawal.AccountID, &withdrawal.Type, &withdrawal.Status, &withdrawal.Amount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal row: %w", err)
	}
	if withdrawal.Type != domain.TransactionTypeWithdraw {
		return nil, fmt.Errorf("transaction %s is %s, not a withdrawal", transactionID, withdrawal.Type)
	}
	if withdrawal.Status != domain.TransactionStatusPending {
		return nil, ErrTransactionNotPending
	}

	// 2. Flip the withdrawal to its terminal status.
	updateQuery := `
		UPDATE transactions
		SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.Exec(ctx, updateQuery, status, reason, transactionID); err != nil {
		return nil, fmt.Errorf("failed to settle withdrawal: %w", err)
	}

	// 3. Post the compensating refund through the shared atomic unit.
	refund, err := postTransactionTx(ctx, tx, domain.PostTransactionParams{
		AccountID:     withdrawal.AccountID,
		Type:          domain.TransactionTypeRefund,
		Status:        domain.TransactionStatusCompleted,
		Amount:        withdrawal.Amount,
		PaymentMethod: domain.PaymentMethodWallet,
		Description:   fmt.Sprintf("Refund for %s withdrawal %s", status, transactionID),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return refund, nil
}
