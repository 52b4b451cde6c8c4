/**
 * @description
 * This file contains the core business logic for the marketplace-service. The
 * `Service` struct orchestrates wallet and user operations, coordinating
 * between the database repository and the message broker.
 *
 * Key features:
 * - Resolves external auth subjects to internal user IDs for the API layer.
 * - Implements the wallet use cases: recharge, withdrawal, history, summary.
 * - Applies payment gateway settlements idempotently (gateway references are
 *   recorded once; replays return the original row).
 * - Publishes domain events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
	"github.com/workbridge/marketplace-service/pkg/rabbitmq"
)

// EventsExchange is the durable topic exchange all service events go through.
const EventsExchange = "workbridge.events"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

var (
	// ErrInvalidAmount rejects non-positive money amounts.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrAmountBelowMinimum rejects recharges under the configured floor.
	ErrAmountBelowMinimum = errors.New("amount is below the minimum recharge")
	// ErrInvalidPaymentMethod rejects unsupported payment methods.
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	// ErrInvalidFilter rejects unknown type or status filter values.
	ErrInvalidFilter = errors.New("unknown filter value")
	// ErrForbidden rejects an action the actor may not perform on the resource.
	ErrForbidden = errors.New("not allowed to act on this resource")
	// ErrInvalidRole rejects an action the actor's or target's role does not permit.
	ErrInvalidRole = errors.New("user role does not permit this action")
	// ErrSelfBooking rejects bookings where customer and worker are the same user.
	ErrSelfBooking = errors.New("customers cannot book themselves")
	// ErrContractorUnresolved rejects bookings for contract workers with no
	// contractor assigned. Assignment is an explicit admin action.
	ErrContractorUnresolved = errors.New("worker requires a contractor but none is assigned")
	// ErrMissingBudget rejects wallet-funded bookings without a positive budget.
	ErrMissingBudget = errors.New("wallet payment requires a positive budget")
	// ErrStartDateInPast rejects bookings scheduled before now.
	ErrStartDateInPast = errors.New("start date must not be in the past")
	// ErrInvalidDateRange rejects schedule windows that end before they start.
	ErrInvalidDateRange = errors.New("end date must be after start date")
	// ErrInvalidTransition rejects booking status changes outside the state machine.
	ErrInvalidTransition = errors.New("booking status transition is not allowed")
	// ErrBookingNotCompleted rejects ratings for bookings that have not completed.
	ErrBookingNotCompleted = errors.New("booking must be completed before rating")
	// ErrInvalidRating rejects rating values outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInvalidReview rejects reviews outside the 10..1000 character range.
	ErrInvalidReview = errors.New("review must be between 10 and 1000 characters")
)

// RateLimitedError reports that a caller exceeded a per-user request budget.
// RetryAfterSeconds tells the caller when the window resets.
type RateLimitedError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}

// Service provides the core business logic for the marketplace.
type Service struct {
	repo              store.Repository
	eventProducer     rabbitmq.Publisher
	commissionPercent float64
	minRechargeAmount int64

	rateLimiter               *RedisRateLimiter
	bookingRateLimitPerMinute int
	ratingRateLimitPerMinute  int
}

// NewService creates a new marketplace service instance.
func NewService(
	repo store.Repository,
	producer rabbitmq.Publisher,
	commissionPercent float64,
	minRechargeAmount int64,
	bookingRateLimitPerMinute int,
	ratingRateLimitPerMinute int,
) *Service {
	return &Service{
		repo:                      repo,
		eventProducer:             producer,
		commissionPercent:         commissionPercent,
		minRechargeAmount:         minRechargeAmount,
		bookingRateLimitPerMinute: bookingRateLimitPerMinute,
		ratingRateLimitPerMinute:  ratingRateLimitPerMinute,
	}
}

// SetRateLimiter attaches the distributed rate limiter. Without one, write
// endpoints are not rate limited.
func (s *Service) SetRateLimiter(limiter *RedisRateLimiter) {
	s.rateLimiter = limiter
}

// checkRateLimit consumes one request from the caller's budget for the given
// scope. Limiter failures are logged and treated as allowed so that a Redis
// outage does not block the write path.
func (s *Service) checkRateLimit(ctx context.Context, scope string, userID uuid.UUID, limit int) error {
	if s.rateLimiter == nil || limit <= 0 {
		return nil
	}

	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, scope, userID.String(), limit, time.Minute)
	if err != nil {
		log.Printf("WARN: Rate limit check failed for scope %s: %v. Allowing request.", scope, err)
		return nil
	}
	if count > limit {
		return &RateLimitedError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

// ResolveInternalUserID converts an auth provider subject (the `sub` claim of
// a validated JWT) into the internal UUID used by our database. This allows
// handlers to accept external subjects while repositories operate on UUIDs.
func (s *Service) ResolveInternalUserID(ctx context.Context, authSubject string) (string, error) {
	return s.repo.FindUserIDByAuthSubject(ctx, authSubject)
}

// GetUser fetches a user profile by internal ID.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.repo.FindUserByID(ctx, userID)
}

// GetWalletBalance returns the caller's wallet account.
func (s *Service) GetWalletBalance(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByUserID(ctx, userID)
}

// ListWalletTransactions returns a page of the caller's ledger history,
// newest first.
func (s *Service) ListWalletTransactions(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := normalizeTransactionFilter(&filter); err != nil {
		return nil, err
	}

	return s.repo.ListTransactions(ctx, account.ID, filter)
}

// GetWalletSummary aggregates the caller's ledger history by type.
func (s *Service) GetWalletSummary(ctx context.Context, userID uuid.UUID, filter domain.TransactionFilter) (*domain.TransactionSummary, error) {
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := normalizeTransactionFilter(&filter); err != nil {
		return nil, err
	}

	return s.repo.SummarizeTransactions(ctx, account.ID, filter)
}

// GetWalletTransaction returns a single ledger row owned by the caller.
// Rows belonging to other accounts are reported as not found.
func (s *Service) GetWalletTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.Transaction, error) {
	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transaction, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if transaction.AccountID != account.ID {
		return nil, store.ErrTransactionNotFound
	}

	return transaction, nil
}

// RechargeWallet credits the caller's wallet for a gateway-captured top-up.
//
// The posting is idempotent on the gateway reference: if the reference was
// already recorded (earlier call or concurrent gateway event), the original
// row is returned instead of crediting twice.
func (s *Service) RechargeWallet(ctx context.Context, userID uuid.UUID, req domain.RechargeRequest) (*domain.Transaction, error) {
	// 1. Validate the amount against the configured floor.
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.Amount < s.minRechargeAmount {
		return nil, ErrAmountBelowMinimum
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = domain.PaymentMethodCard
	}
	if method != domain.PaymentMethodCard && method != domain.PaymentMethodBankTransfer {
		return nil, ErrInvalidPaymentMethod
	}

	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. Short-circuit on an already-recorded gateway reference.
	reference := normalizeGatewayReference(req.GatewayReference)
	if reference != nil {
		existing, err := s.repo.FindTransactionByGatewayReference(ctx, *reference)
		if err == nil {
			if existing.AccountID != account.ID {
				return nil, ErrForbidden
			}
			log.Printf("level=info component=wallet msg=%q gateway_reference=%s transaction_id=%s", "recharge replay ignored", *reference, existing.ID)
			return existing, nil
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, err
		}
	}

	// 3. Post the credit. A concurrent posting of the same reference loses the
	// unique-index race; treat that as the replay case above.
	transaction, err := s.repo.PostTransaction(ctx, domain.PostTransactionParams{
		AccountID:        account.ID,
		Type:             domain.TransactionTypeRecharge,
		Status:           domain.TransactionStatusCompleted,
		Amount:           req.Amount,
		PaymentMethod:    method,
		GatewayReference: reference,
		Description:      "Wallet recharge",
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateGatewayReference) && reference != nil {
			return s.repo.FindTransactionByGatewayReference(ctx, *reference)
		}
		return nil, err
	}

	return transaction, nil
}

// RequestWithdrawal debits the caller's wallet and records a pending payout.
// The funds leave the wallet immediately; the payout gateway later settles
// the row to completed, or to failed with a compensating refund.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = domain.PaymentMethodBankTransfer
	}
	if method != domain.PaymentMethodBankTransfer {
		return nil, ErrInvalidPaymentMethod
	}

	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transaction, err := s.repo.PostTransaction(ctx, domain.PostTransactionParams{
		AccountID:     account.ID,
		Type:          domain.TransactionTypeWithdraw,
		Status:        domain.TransactionStatusPending,
		Amount:        req.Amount,
		PaymentMethod: method,
		Description:   "Wallet withdrawal",
	})
	if err != nil {
		return nil, err
	}

	// Notify the payout pipeline. The debit already committed, so a publish
	// failure is logged and the row waits for reconciliation.
	event := domain.WithdrawalRequestedPayload{
		TransactionID: transaction.ID,
		AccountID:     account.ID,
		UserID:        userID,
		Amount:        transaction.Amount,
		PaymentMethod: method,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, "wallet.withdrawal.requested", event); err != nil {
		log.Printf("WARN: Failed to publish withdrawal requested event for transaction %s: %v", transaction.ID, err)
	}

	return transaction, nil
}

// CreditEarnings posts a completed earning to a worker's wallet. Called by
// the internal settlement pipeline after a completed job pays out.
func (s *Service) CreditEarnings(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedBookingID *uuid.UUID) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(description) == "" {
		description = "Job earnings"
	}

	return s.repo.PostTransaction(ctx, domain.PostTransactionParams{
		AccountID:        account.ID,
		Type:             domain.TransactionTypeEarning,
		Status:           domain.TransactionStatusCompleted,
		Amount:           amount,
		RelatedBookingID: relatedBookingID,
		PaymentMethod:    domain.PaymentMethodWallet,
		Description:      description,
	})
}

// ApplyGatewayRecharge credits a wallet for a recharge captured by the
// payment gateway. Replayed events are recognized by their gateway reference
// and ignored.
func (s *Service) ApplyGatewayRecharge(ctx context.Context, userID uuid.UUID, amount int64, paymentMethod, gatewayReference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	reference := strings.TrimSpace(gatewayReference)
	if reference == "" {
		return fmt.Errorf("gateway recharge event missing reference")
	}

	if existing, err := s.repo.FindTransactionByGatewayReference(ctx, reference); err == nil {
		log.Printf("level=info component=wallet msg=%q gateway_reference=%s transaction_id=%s", "gateway recharge replay ignored", reference, existing.ID)
		return nil
	} else if !errors.Is(err, store.ErrTransactionNotFound) {
		return err
	}

	account, err := s.repo.FindAccountByUserID(ctx, userID)
	if err != nil {
		return err
	}

	method := strings.TrimSpace(paymentMethod)
	if method == "" {
		method = domain.PaymentMethodCard
	}

	_, err = s.repo.PostTransaction(ctx, domain.PostTransactionParams{
		AccountID:        account.ID,
		Type:             domain.TransactionTypeRecharge,
		Status:           domain.TransactionStatusCompleted,
		Amount:           amount,
		PaymentMethod:    method,
		GatewayReference: &reference,
		Description:      "Wallet recharge",
	})
	if errors.Is(err, store.ErrDuplicateGatewayReference) {
		// Lost the unique-index race against a concurrent replay.
		return nil
	}
	return err
}

// CompleteWithdrawal marks a pending withdrawal as settled by the payout
// gateway.
func (s *Service) CompleteWithdrawal(ctx context.Context, transactionID uuid.UUID) error {
	return s.repo.MarkWithdrawalCompleted(ctx, transactionID)
}

// FailWithdrawal settles a pending withdrawal as failed or cancelled and
// refunds the debited amount in the same unit.
func (s *Service) FailWithdrawal(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason string) error {
	refund, err := s.repo.FailWithdrawalWithRefund(ctx, transactionID, status, reason)
	if err != nil {
		return err
	}
	log.Printf("level=info component=wallet msg=%q withdrawal_id=%s refund_id=%s", "withdrawal refunded", transactionID, refund.ID)
	return nil
}

// AssignContractor records an admin's assignment of a contractor to a
// contract worker and publishes the assignment for interested consumers.
func (s *Service) AssignContractor(ctx context.Context, adminID, workerID, contractorID uuid.UUID) (*domain.User, error) {
	// 1. Only admins may assign.
	admin, err := s.repo.FindUserByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	// 2. The target must be a contract worker, the assignee a contractor.
	worker, err := s.repo.FindUserByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if worker.Role != domain.RoleContractWorker {
		return nil, ErrInvalidRole
	}

	contractor, err := s.repo.FindUserByID(ctx, contractorID)
	if err != nil {
		return nil, err
	}
	if contractor.Role != domain.RoleContractor {
		return nil, ErrInvalidRole
	}

	// 3. Persist the audited assignment.
	updated, err := s.repo.AssignContractor(ctx, workerID, contractorID, adminID)
	if err != nil {
		return nil, err
	}

	event := domain.ContractorAssignedPayload{
		WorkerID:     workerID,
		ContractorID: contractorID,
		AssignedBy:   adminID,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, "contractor.assigned", event); err != nil {
		log.Printf("WARN: Failed to publish contractor assigned event for worker %s: %v", workerID, err)
	}

	return updated, nil
}

func normalizeTransactionFilter(filter *domain.TransactionFilter) error {
	if filter.Type != "" && !filter.Type.Valid() {
		return ErrInvalidFilter
	}
	switch filter.Status {
	case "", domain.TransactionStatusPending, domain.TransactionStatusCompleted,
		domain.TransactionStatusFailed, domain.TransactionStatusCancelled:
	default:
		return ErrInvalidFilter
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return nil
}

func normalizeGatewayReference(reference *string) *string {
	if reference == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reference)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
