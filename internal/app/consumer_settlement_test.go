package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

type settlementRepoStub struct {
	store.Repository

	account  *domain.Account
	existing *domain.Transaction

	postCalled bool
	posted     domain.PostTransactionParams
	markedID   uuid.UUID
	markErr    error
	failedID   uuid.UUID
	failStatus domain.TransactionStatus
	failReason string
	failErr    error
}

func (s *settlementRepoStub) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *settlementRepoStub) FindTransactionByGatewayReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	if s.existing != nil {
		return s.existing, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *settlementRepoStub) PostTransaction(ctx context.Context, params domain.PostTransactionParams) (*domain.Transaction, error) {
	s.postCalled = true
	s.posted = params
	return &domain.Transaction{ID: uuid.New(), AccountID: params.AccountID, Type: params.Type, Amount: params.Amount}, nil
}

func (s *settlementRepoStub) MarkWithdrawalCompleted(ctx context.Context, transactionID uuid.UUID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedID = transactionID
	return nil
}

func (s *settlementRepoStub) FailWithdrawalWithRefund(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason string) (*domain.Transaction, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.failedID = transactionID
	s.failStatus = status
	s.failReason = reason
	return &domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeRefund}, nil
}

func newSettlementConsumer(repo *settlementRepoStub) *PaymentEventConsumer {
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}
	return NewPaymentEventConsumer(service)
}

func marshalEvent(t *testing.T, event domain.PaymentSettlementEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestHandleMessage_MalformedPayloadIsAcked(t *testing.T) {
	consumer := newSettlementConsumer(&settlementRepoStub{})

	if !consumer.HandleMessage([]byte("{not json")) {
		t.Fatal("expected a malformed payload to be acked, not requeued")
	}
}

func TestHandleMessage_RechargeCapturedCreditsWallet(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), UserID: uuid.New()}
	repo := &settlementRepoStub{account: account}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:          "evt_01",
		EventType:        "payment.recharge.captured",
		UserID:           account.UserID.String(),
		Amount:           5000,
		PaymentMethod:    "card",
		GatewayReference: "psp_9f2c",
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected the recharge event to be acked")
	}
	if !repo.postCalled {
		t.Fatal("expected the wallet to be credited")
	}
	if repo.posted.Type != domain.TransactionTypeRecharge {
		t.Fatalf("expected a recharge transaction, got %q", repo.posted.Type)
	}
	if repo.posted.GatewayReference == nil || *repo.posted.GatewayReference != "psp_9f2c" {
		t.Fatalf("expected the gateway reference to be recorded, got %v", repo.posted.GatewayReference)
	}
}

func TestHandleMessage_RechargeReplayIsAcked(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), UserID: uuid.New()}
	repo := &settlementRepoStub{account: account, existing: &domain.Transaction{ID: uuid.New(), AccountID: account.ID}}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:          "evt_01",
		EventType:        "payment.recharge.captured",
		UserID:           account.UserID.String(),
		Amount:           5000,
		GatewayReference: "psp_9f2c",
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected a replayed recharge to be acked")
	}
	if repo.postCalled {
		t.Fatal("expected no second credit for a replayed recharge")
	}
}

func TestHandleMessage_RechargeWithoutWalletIsAcked(t *testing.T) {
	repo := &settlementRepoStub{}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:          "evt_02",
		EventType:        "payment.recharge.captured",
		UserID:           uuid.New().String(),
		Amount:           5000,
		GatewayReference: "psp_9f2c",
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected a recharge for an unknown wallet to be acked")
	}
}

func TestHandleMessage_RechargeWithBadUserIDIsAcked(t *testing.T) {
	repo := &settlementRepoStub{}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:          "evt_03",
		EventType:        "payment.recharge.captured",
		UserID:           "not-a-uuid",
		Amount:           5000,
		GatewayReference: "psp_9f2c",
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected a recharge with a bad user id to be acked")
	}
	if repo.postCalled {
		t.Fatal("expected no credit for an unparseable user id")
	}
}

func TestHandleMessage_WithdrawalSettledMarksCompleted(t *testing.T) {
	repo := &settlementRepoStub{}
	consumer := newSettlementConsumer(repo)

	transactionID := uuid.New()
	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:       "evt_04",
		EventType:     "payout.withdrawal.settled",
		TransactionID: transactionID.String(),
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected the settlement to be acked")
	}
	if repo.markedID != transactionID {
		t.Fatalf("expected withdrawal %s to be marked completed, got %s", transactionID, repo.markedID)
	}
}

func TestHandleMessage_WithdrawalSettledReplayIsAcked(t *testing.T) {
	repo := &settlementRepoStub{markErr: store.ErrTransactionNotPending}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:       "evt_05",
		EventType:     "payout.withdrawal.settled",
		TransactionID: uuid.New().String(),
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected an already-settled withdrawal replay to be acked")
	}
}

func TestHandleMessage_TransientErrorRequeues(t *testing.T) {
	repo := &settlementRepoStub{markErr: errors.New("connection reset")}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:       "evt_06",
		EventType:     "payout.withdrawal.settled",
		TransactionID: uuid.New().String(),
	})

	if consumer.HandleMessage(body) {
		t.Fatal("expected a transient error to requeue the message")
	}
}

func TestHandleMessage_WithdrawalFailedRefundsWithStatus(t *testing.T) {
	repo := &settlementRepoStub{}
	consumer := newSettlementConsumer(repo)

	transactionID := uuid.New()
	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:       "evt_07",
		EventType:     "payout.withdrawal.failed",
		Status:        "cancelled",
		TransactionID: transactionID.String(),
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected the failure event to be acked")
	}
	if repo.failedID != transactionID {
		t.Fatalf("expected withdrawal %s to be settled as failed, got %s", transactionID, repo.failedID)
	}
	if repo.failStatus != domain.TransactionStatusCancelled {
		t.Fatalf("expected cancelled settlement status, got %q", repo.failStatus)
	}
	if repo.failReason != "Payout failed" {
		t.Fatalf("expected the default failure reason, got %q", repo.failReason)
	}
}

func TestHandleMessage_UnknownEventTypeIsAcked(t *testing.T) {
	repo := &settlementRepoStub{}
	consumer := newSettlementConsumer(repo)

	body := marshalEvent(t, domain.PaymentSettlementEvent{
		EventID:   "evt_08",
		EventType: "subscription.renewed",
	})

	if !consumer.HandleMessage(body) {
		t.Fatal("expected an unknown event type to be acked")
	}
	if repo.postCalled {
		t.Fatal("expected no wallet writes for an unknown event type")
	}
}

func TestNormalizeEventType_AcceptsGatewayAliases(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"payment.recharge.captured", "recharge.captured"},
		{"recharge.success", "recharge.captured"},
		{"PAYOUT.WITHDRAWAL.COMPLETED", "withdrawal.settled"},
		{"payout.withdrawal.cancelled", "withdrawal.failed"},
		{"withdrawal.failure", "withdrawal.failed"},
		{"something.else", "something.else"},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			if got := normalizeEventType(tc.raw); got != tc.want {
				t.Fatalf("expected %q to normalize to %q, got %q", tc.raw, tc.want, got)
			}
		})
	}
}
