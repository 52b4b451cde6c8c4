package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

// PaymentEventConsumer applies settlement events from the payments edge to
// the wallet ledger.
type PaymentEventConsumer struct {
	service *Service
}

func NewPaymentEventConsumer(service *Service) *PaymentEventConsumer {
	return &PaymentEventConsumer{service: service}
}

// HandleMessage processes one delivery. Returning true acks the message;
// malformed or stale payloads are acked so they cannot wedge the queue, and
// only transient processing errors requeue.
func (c *PaymentEventConsumer) HandleMessage(body []byte) bool {
	var event domain.PaymentSettlementEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("payment-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.processEvent(ctx, event); err != nil {
		log.Printf("payment-consumer: processing error for event %s (%s): %v", event.EventID, event.EventType, err)
		return false
	}

	return true
}

func (c *PaymentEventConsumer) processEvent(ctx context.Context, event domain.PaymentSettlementEvent) error {
	switch normalizeEventType(event.EventType) {
	case "recharge.captured":
		return c.handleRechargeCaptured(ctx, event)
	case "withdrawal.settled":
		return c.handleWithdrawalSettled(ctx, event)
	case "withdrawal.failed":
		return c.handleWithdrawalFailed(ctx, event)
	default:
		log.Printf("payment-consumer: ignoring unknown event type %q", event.EventType)
		return nil
	}
}

func (c *PaymentEventConsumer) handleRechargeCaptured(ctx context.Context, event domain.PaymentSettlementEvent) error {
	userID, err := uuid.Parse(strings.TrimSpace(event.UserID))
	if err != nil {
		log.Printf("payment-consumer: invalid user id %q in recharge event %s; acknowledging", event.UserID, event.EventID)
		return nil
	}
	if strings.TrimSpace(event.GatewayReference) == "" {
		log.Printf("payment-consumer: recharge event %s missing gateway reference; acknowledging", event.EventID)
		return nil
	}

	err = c.service.ApplyGatewayRecharge(ctx, userID, event.Amount, event.PaymentMethod, event.GatewayReference)
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			log.Printf("payment-consumer: dropping recharge event %s with non-positive amount %d", event.EventID, event.Amount)
			return nil
		}
		if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrAccountNotFound) {
			log.Printf("payment-consumer: no wallet for user %s in recharge event %s; acknowledging", event.UserID, event.EventID)
			return nil
		}
		return fmt.Errorf("apply recharge: %w", err)
	}

	return nil
}

func (c *PaymentEventConsumer) handleWithdrawalSettled(ctx context.Context, event domain.PaymentSettlementEvent) error {
	transactionID, err := uuid.Parse(strings.TrimSpace(event.TransactionID))
	if err != nil {
		log.Printf("payment-consumer: invalid transaction id %q in settlement event %s; acknowledging", event.TransactionID, event.EventID)
		return nil
	}

	err = c.service.CompleteWithdrawal(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotPending) {
			// Replay of an already-settled withdrawal. A completed row is
			// never downgraded.
			log.Printf("payment-consumer: withdrawal %s already settled; acknowledging", transactionID)
			return nil
		}
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("payment-consumer: no withdrawal found for %s; acknowledging", transactionID)
			return nil
		}
		return fmt.Errorf("complete withdrawal: %w", err)
	}

	return nil
}

func (c *PaymentEventConsumer) handleWithdrawalFailed(ctx context.Context, event domain.PaymentSettlementEvent) error {
	transactionID, err := uuid.Parse(strings.TrimSpace(event.TransactionID))
	if err != nil {
		log.Printf("payment-consumer: invalid transaction id %q in failure event %s; acknowledging", event.TransactionID, event.EventID)
		return nil
	}

	reason := strings.TrimSpace(event.Reason)
	if reason == "" {
		reason = "Payout failed"
	}

	err = c.service.FailWithdrawal(ctx, transactionID, settlementStatus(event.Status), reason)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotPending) {
			log.Printf("payment-consumer: withdrawal %s already settled; acknowledging failure replay", transactionID)
			return nil
		}
		if errors.Is(err, store.ErrTransactionNotFound) {
			log.Printf("payment-consumer: no withdrawal found for %s; acknowledging", transactionID)
			return nil
		}
		return fmt.Errorf("fail withdrawal: %w", err)
	}

	return nil
}

func normalizeEventType(eventType string) string {
	eventType = strings.TrimSpace(strings.ToLower(eventType))
	eventType = strings.TrimPrefix(eventType, "payment.")
	eventType = strings.TrimPrefix(eventType, "payout.")
	switch eventType {
	case "recharge.captured", "recharge.completed", "recharge.success":
		return "recharge.captured"
	case "withdrawal.settled", "withdrawal.completed", "withdrawal.success":
		return "withdrawal.settled"
	case "withdrawal.failed", "withdrawal.failure", "withdrawal.cancelled":
		return "withdrawal.failed"
	default:
		return eventType
	}
}

func settlementStatus(status string) domain.TransactionStatus {
	switch strings.TrimSpace(strings.ToLower(status)) {
	case "cancelled", "canceled":
		return domain.TransactionStatusCancelled
	default:
		return domain.TransactionStatusFailed
	}
}
