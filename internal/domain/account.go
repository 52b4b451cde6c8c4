/**
 * @description
 * This file defines the ledger domain models for the marketplace-service: the
 * wallet account and the append-only transaction log, plus the DTOs for wallet
 * API requests and ledger read operations.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Transaction rows are immutable once committed; every row snapshots the
 *   balance before and after its own application. Settlement status flips never
 *   change amounts or balances; compensation is always a new appended row.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger posting and fixes its sign convention.
type TransactionType string

const (
	TransactionTypeRecharge TransactionType = "recharge" // credit
	TransactionTypeWithdraw TransactionType = "withdraw" // debit
	TransactionTypePayment  TransactionType = "payment"  // debit
	TransactionTypeRefund   TransactionType = "refund"   // credit
	TransactionTypeEarning  TransactionType = "earning"  // credit
)

// IsCredit reports whether the type increases the account balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeRecharge || t == TransactionTypeRefund || t == TransactionTypeEarning
}

// Valid reports whether the type is one of the ledger's posting types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeRecharge, TransactionTypeWithdraw, TransactionTypePayment,
		TransactionTypeRefund, TransactionTypeEarning:
		return true
	}
	return false
}

// TransactionStatus tracks external settlement of a posted row. The balance
// effect is applied when the row is created regardless of status.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Payment methods accepted on wallet and booking operations.
const (
	PaymentMethodWallet       = "wallet"
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

// Account represents a user's internal wallet. Maps to the `accounts` table.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // in minor units
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is the central ledger record for any money movement. Maps to the
// `transactions` table. BalanceBefore/BalanceAfter snapshot the account balance
// around this row's application; RelatedAccountID and RelatedBookingID tie the
// row to its counterparty or funding booking where one exists.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	AccountID        uuid.UUID         `json:"account_id"`
	Type             TransactionType   `json:"type"`
	Status           TransactionStatus `json:"status"`
	Amount           int64             `json:"amount"` // in minor units, always > 0
	BalanceBefore    int64             `json:"balance_before"`
	BalanceAfter     int64             `json:"balance_after"`
	RelatedAccountID *uuid.UUID        `json:"related_account_id,omitempty"`
	RelatedBookingID *uuid.UUID        `json:"related_booking_id,omitempty"`
	PaymentMethod    string            `json:"payment_method"`
	GatewayReference *string           `json:"gateway_reference,omitempty"`
	FailureReason    *string           `json:"failure_reason,omitempty"`
	Description      string            `json:"description"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// PostTransactionParams carries everything the ledger needs to post one row.
type PostTransactionParams struct {
	AccountID        uuid.UUID
	Type             TransactionType
	Status           TransactionStatus
	Amount           int64
	RelatedAccountID *uuid.UUID
	RelatedBookingID *uuid.UUID
	PaymentMethod    string
	GatewayReference *string
	Description      string
}

// RechargeRequest is the DTO for wallet top-up API requests.
type RechargeRequest struct {
	Amount           int64   `json:"amount"` // in minor units
	PaymentMethod    string  `json:"payment_method"`
	GatewayReference *string `json:"gateway_reference,omitempty"`
}

// WithdrawalRequest is the DTO for wallet withdrawal API requests.
type WithdrawalRequest struct {
	Amount        int64  `json:"amount"` // in minor units
	PaymentMethod string `json:"payment_method"`
}

// TransactionFilter narrows ledger history reads. Zero values mean "no filter";
// Limit is capped by the repository.
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// TransactionTypeSummary is one aggregate bucket of the ledger summary.
type TransactionTypeSummary struct {
	Type        TransactionType `json:"type"`
	Count       int64           `json:"count"`
	TotalAmount int64           `json:"total_amount"` // in minor units
}

// TransactionSummary aggregates a filtered slice of an account's history.
type TransactionSummary struct {
	AccountID uuid.UUID                `json:"account_id"`
	ByType    []TransactionTypeSummary `json:"by_type"`
}
