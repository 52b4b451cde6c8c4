/**
 * @description
 * This file contains HTTP handlers for wallet endpoints: balance, ledger
 * history, summary, recharge, and withdrawal. Handlers parse the request,
 * call the application service, and map service errors to HTTP statuses.
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
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/app"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

func mapWalletError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "Insufficient wallet balance."
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "Wallet account not found."
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, store.ErrTransactionNotFound):
		return http.StatusNotFound, "Transaction not found."
	case errors.Is(err, store.ErrDuplicateGatewayReference):
		return http.StatusConflict, "This gateway reference was already recorded."
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Not allowed to access this resource."
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrAmountBelowMinimum),
		errors.Is(err, app.ErrInvalidPaymentMethod),
		errors.Is(err, app.ErrInvalidFilter):
		return http.StatusBadRequest, err.Error()
	}

	return http.StatusInternalServerError, "Could not process wallet request."
}

// parseTransactionFilter reads the ledger history filters from the query
// string. Value validation happens in the service layer.
func parseTransactionFilter(r *http.Request) (domain.TransactionFilter, int, string) {
	var filter domain.TransactionFilter

	filter.Type = domain.TransactionType(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("type"))))
	filter.Status = domain.TransactionStatus(strings.TrimSpace(strings.ToLower(r.URL.Query().Get("status"))))

	from, err := parseOptionalTime(r.URL.Query().Get("from"))
	if err != nil {
		return filter, http.StatusBadRequest, "Invalid from date; expected RFC 3339"
	}
	filter.From = from

	to, err := parseOptionalTime(r.URL.Query().Get("to"))
	if err != nil {
		return filter, http.StatusBadRequest, "Invalid to date; expected RFC 3339"
	}
	filter.To = to

	filter.Limit, err = parseOptionalPositiveInt(r.URL.Query().Get("limit"), 0)
	if err != nil {
		return filter, http.StatusBadRequest, "Invalid limit"
	}
	filter.Offset, err = parseOptionalPositiveInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		return filter, http.StatusBadRequest, "Invalid offset"
	}

	return filter, 0, ""
}

// GetWalletBalanceHandler returns the caller's wallet account.
func (h *Handlers) GetWalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	account, err := h.service.GetWalletBalance(r.Context(), userID)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_balance outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, account)
}

// ListWalletTransactionsHandler returns a page of the caller's ledger
// history, newest first.
func (h *Handlers) ListWalletTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	filter, statusCode, message := parseTransactionFilter(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	transactions, err := h.service.ListWalletTransactions(r.Context(), userID, filter)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_transactions outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, transactions)
}

// GetWalletTransactionHandler returns a single ledger entry owned by the caller.
func (h *Handlers) GetWalletTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	transaction, err := h.service.GetWalletTransaction(r.Context(), userID, transactionID)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_transaction outcome=failed user_id=%s transaction_id=%s err=%v", userID, transactionID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, transaction)
}

// GetWalletSummaryHandler returns aggregate totals of the caller's ledger
// grouped by transaction type.
func (h *Handlers) GetWalletSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	filter, statusCode, message := parseTransactionFilter(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	summary, err := h.service.GetWalletSummary(r.Context(), userID, filter)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_summary outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// RechargeWalletHandler credits the caller's wallet. Requests carrying a
// gateway reference are idempotent; replays return the original transaction.
func (h *Handlers) RechargeWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	var req domain.RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.service.RechargeWallet(r.Context(), userID, req)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_recharge outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusCreated, transaction)
}

// RequestWithdrawalHandler debits the caller's wallet and records a pending
// withdrawal awaiting gateway settlement.
func (h *Handlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	var req domain.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transaction, err := h.service.RequestWithdrawal(r.Context(), userID, req)
	if err != nil {
		status, msg := mapWalletError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=wallet_withdraw outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusAccepted, transaction)
}
