package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

type walletRepoStub struct {
	store.Repository

	account  *domain.Account
	existing *domain.Transaction
	byID     *domain.Transaction

	refLookups int
	raceWinner *domain.Transaction
	postCalled bool
	posted     domain.PostTransactionParams
	postErr    error
	listFilter domain.TransactionFilter
	listCalled bool
	markedID   uuid.UUID
	failedID   uuid.UUID
	failStatus domain.TransactionStatus
	failReason string
}

func (s *walletRepoStub) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *walletRepoStub) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error) {
	if s.byID == nil || s.byID.ID != transactionID {
		return nil, store.ErrTransactionNotFound
	}
	return s.byID, nil
}

func (s *walletRepoStub) FindTransactionByGatewayReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	s.refLookups++
	if s.existing != nil {
		return s.existing, nil
	}
	if s.raceWinner != nil && s.refLookups > 1 {
		return s.raceWinner, nil
	}
	return nil, store.ErrTransactionNotFound
}

func (s *walletRepoStub) PostTransaction(ctx context.Context, params domain.PostTransactionParams) (*domain.Transaction, error) {
	if s.postErr != nil {
		return nil, s.postErr
	}
	s.postCalled = true
	s.posted = params
	return &domain.Transaction{
		ID:            uuid.New(),
		AccountID:     params.AccountID,
		Type:          params.Type,
		Status:        params.Status,
		Amount:        params.Amount,
		PaymentMethod: params.PaymentMethod,
	}, nil
}

func (s *walletRepoStub) ListTransactions(ctx context.Context, accountID uuid.UUID, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.listCalled = true
	s.listFilter = filter
	return []domain.Transaction{}, nil
}

func (s *walletRepoStub) MarkWithdrawalCompleted(ctx context.Context, transactionID uuid.UUID) error {
	s.markedID = transactionID
	return nil
}

func (s *walletRepoStub) FailWithdrawalWithRefund(ctx context.Context, transactionID uuid.UUID, status domain.TransactionStatus, reason string) (*domain.Transaction, error) {
	s.failedID = transactionID
	s.failStatus = status
	s.failReason = reason
	return &domain.Transaction{ID: uuid.New(), Type: domain.TransactionTypeRefund, Status: domain.TransactionStatusCompleted}, nil
}

func walletAccount() *domain.Account {
	return &domain.Account{ID: uuid.New(), UserID: uuid.New(), Balance: 50000}
}

func TestRechargeWallet_RejectsNonPositiveAmount(t *testing.T) {
	service := &Service{repo: &walletRepoStub{}, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	if _, err := service.RechargeWallet(context.Background(), uuid.New(), domain.RechargeRequest{Amount: 0}); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRechargeWallet_EnforcesMinimumAmount(t *testing.T) {
	service := &Service{repo: &walletRepoStub{}, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	if _, err := service.RechargeWallet(context.Background(), uuid.New(), domain.RechargeRequest{Amount: 500}); err != ErrAmountBelowMinimum {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
}

func TestRechargeWallet_RejectsCashMethod(t *testing.T) {
	service := &Service{repo: &walletRepoStub{}, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	req := domain.RechargeRequest{Amount: 5000, PaymentMethod: domain.PaymentMethodCash}
	if _, err := service.RechargeWallet(context.Background(), uuid.New(), req); err != ErrInvalidPaymentMethod {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestRechargeWallet_PostsCompletedCredit(t *testing.T) {
	repo := &walletRepoStub{account: walletAccount()}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	reference := "  psp_9f2c  "
	transaction, err := service.RechargeWallet(context.Background(), uuid.New(), domain.RechargeRequest{Amount: 5000, GatewayReference: &reference})
	if err != nil {
		t.Fatalf("expected recharge to succeed, got %v", err)
	}
	if transaction.Amount != 5000 {
		t.Fatalf("expected amount 5000, got %d", transaction.Amount)
	}
	if repo.posted.Type != domain.TransactionTypeRecharge {
		t.Fatalf("expected a recharge transaction, got %q", repo.posted.Type)
	}
	if repo.posted.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected recharge to settle immediately, got %q", repo.posted.Status)
	}
	if repo.posted.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("expected payment method to default to card, got %q", repo.posted.PaymentMethod)
	}
	if repo.posted.GatewayReference == nil || *repo.posted.GatewayReference != "psp_9f2c" {
		t.Fatalf("expected trimmed gateway reference, got %v", repo.posted.GatewayReference)
	}
}

func TestRechargeWallet_ReplaysExistingGatewayReference(t *testing.T) {
	account := walletAccount()
	existing := &domain.Transaction{ID: uuid.New(), AccountID: account.ID, Type: domain.TransactionTypeRecharge, Amount: 5000}
	repo := &walletRepoStub{account: account, existing: existing}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	reference := "psp_9f2c"
	transaction, err := service.RechargeWallet(context.Background(), account.UserID, domain.RechargeRequest{Amount: 5000, GatewayReference: &reference})
	if err != nil {
		t.Fatalf("expected replay to return the original row, got %v", err)
	}
	if transaction.ID != existing.ID {
		t.Fatalf("expected original transaction %s, got %s", existing.ID, transaction.ID)
	}
	if repo.postCalled {
		t.Fatal("expected no second credit for a replayed reference")
	}
}

func TestRechargeWallet_RejectsForeignGatewayReference(t *testing.T) {
	account := walletAccount()
	foreign := &domain.Transaction{ID: uuid.New(), AccountID: uuid.New(), Type: domain.TransactionTypeRecharge}
	repo := &walletRepoStub{account: account, existing: foreign}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	reference := "psp_9f2c"
	if _, err := service.RechargeWallet(context.Background(), account.UserID, domain.RechargeRequest{Amount: 5000, GatewayReference: &reference}); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden for another account's reference, got %v", err)
	}
}

func TestRechargeWallet_LostUniqueIndexRaceReturnsWinner(t *testing.T) {
	account := walletAccount()
	winner := &domain.Transaction{ID: uuid.New(), AccountID: account.ID, Type: domain.TransactionTypeRecharge, Amount: 5000}
	repo := &walletRepoStub{account: account, raceWinner: winner, postErr: store.ErrDuplicateGatewayReference}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, minRechargeAmount: 1000}

	reference := "psp_9f2c"
	transaction, err := service.RechargeWallet(context.Background(), account.UserID, domain.RechargeRequest{Amount: 5000, GatewayReference: &reference})
	if err != nil {
		t.Fatalf("expected the race loser to return the winning row, got %v", err)
	}
	if transaction.ID != winner.ID {
		t.Fatalf("expected winning transaction %s, got %s", winner.ID, transaction.ID)
	}
}

func TestRequestWithdrawal_RequiresBankTransfer(t *testing.T) {
	service := &Service{repo: &walletRepoStub{account: walletAccount()}, eventProducer: &eventRecorder{}}

	req := domain.WithdrawalRequest{Amount: 5000, PaymentMethod: domain.PaymentMethodCard}
	if _, err := service.RequestWithdrawal(context.Background(), uuid.New(), req); err != ErrInvalidPaymentMethod {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestRequestWithdrawal_DebitsPendingAndPublishes(t *testing.T) {
	account := walletAccount()
	repo := &walletRepoStub{account: account}
	producer := &eventRecorder{}
	service := &Service{repo: repo, eventProducer: producer}

	transaction, err := service.RequestWithdrawal(context.Background(), account.UserID, domain.WithdrawalRequest{Amount: 5000})
	if err != nil {
		t.Fatalf("expected withdrawal to be accepted, got %v", err)
	}
	if repo.posted.Type != domain.TransactionTypeWithdraw {
		t.Fatalf("expected a withdraw transaction, got %q", repo.posted.Type)
	}
	if repo.posted.Status != domain.TransactionStatusPending {
		t.Fatalf("expected the payout to stay pending, got %q", repo.posted.Status)
	}
	if repo.posted.PaymentMethod != domain.PaymentMethodBankTransfer {
		t.Fatalf("expected bank_transfer, got %q", repo.posted.PaymentMethod)
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "wallet.withdrawal.requested" {
		t.Fatalf("expected wallet.withdrawal.requested event, got %v", producer.routingKeys)
	}
	payload, ok := producer.payloads[0].(domain.WithdrawalRequestedPayload)
	if !ok {
		t.Fatalf("expected a WithdrawalRequestedPayload, got %T", producer.payloads[0])
	}
	if payload.TransactionID != transaction.ID {
		t.Fatalf("expected payload to carry transaction %s, got %s", transaction.ID, payload.TransactionID)
	}
}

func TestRequestWithdrawal_PublishFailureStillDebits(t *testing.T) {
	account := walletAccount()
	repo := &walletRepoStub{account: account}
	producer := &eventRecorder{err: context.DeadlineExceeded}
	service := &Service{repo: repo, eventProducer: producer}

	if _, err := service.RequestWithdrawal(context.Background(), account.UserID, domain.WithdrawalRequest{Amount: 5000}); err != nil {
		t.Fatalf("expected the committed debit to survive a publish failure, got %v", err)
	}
	if !repo.postCalled {
		t.Fatal("expected the withdrawal row to be posted")
	}
}

func TestCreditEarnings_RejectsNonPositiveAmount(t *testing.T) {
	service := &Service{repo: &walletRepoStub{}, eventProducer: &eventRecorder{}}

	if _, err := service.CreditEarnings(context.Background(), uuid.New(), -100, "", nil); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreditEarnings_DefaultsDescriptionAndLinksBooking(t *testing.T) {
	account := walletAccount()
	repo := &walletRepoStub{account: account}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	bookingID := uuid.New()
	if _, err := service.CreditEarnings(context.Background(), account.UserID, 12000, "   ", &bookingID); err != nil {
		t.Fatalf("expected earnings to be credited, got %v", err)
	}
	if repo.posted.Type != domain.TransactionTypeEarning {
		t.Fatalf("expected an earning transaction, got %q", repo.posted.Type)
	}
	if repo.posted.Description != "Job earnings" {
		t.Fatalf("expected default description, got %q", repo.posted.Description)
	}
	if repo.posted.RelatedBookingID == nil || *repo.posted.RelatedBookingID != bookingID {
		t.Fatalf("expected earning linked to booking %s, got %v", bookingID, repo.posted.RelatedBookingID)
	}
}

func TestGetWalletTransaction_HidesForeignRows(t *testing.T) {
	account := walletAccount()
	foreign := &domain.Transaction{ID: uuid.New(), AccountID: uuid.New()}
	repo := &walletRepoStub{account: account, byID: foreign}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.GetWalletTransaction(context.Background(), account.UserID, foreign.ID); err != store.ErrTransactionNotFound {
		t.Fatalf("expected foreign rows to be reported as not found, got %v", err)
	}
}

func TestListWalletTransactions_RejectsUnknownTypeFilter(t *testing.T) {
	repo := &walletRepoStub{account: walletAccount()}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	filter := domain.TransactionFilter{Type: domain.TransactionType("bogus")}
	if _, err := service.ListWalletTransactions(context.Background(), uuid.New(), filter); err != ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	if repo.listCalled {
		t.Fatal("expected no ledger read for an invalid filter")
	}
}

func TestListWalletTransactions_ClampsPageSize(t *testing.T) {
	repo := &walletRepoStub{account: walletAccount()}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.ListWalletTransactions(context.Background(), uuid.New(), domain.TransactionFilter{Limit: 5000, Offset: -3}); err != nil {
		t.Fatalf("expected listing to succeed, got %v", err)
	}
	if repo.listFilter.Limit != maxPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", maxPageSize, repo.listFilter.Limit)
	}
	if repo.listFilter.Offset != 0 {
		t.Fatalf("expected negative offset reset to 0, got %d", repo.listFilter.Offset)
	}
}

func TestApplyGatewayRecharge_IgnoresReplayedReference(t *testing.T) {
	account := walletAccount()
	existing := &domain.Transaction{ID: uuid.New(), AccountID: account.ID}
	repo := &walletRepoStub{account: account, existing: existing}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if err := service.ApplyGatewayRecharge(context.Background(), account.UserID, 5000, "card", "psp_9f2c"); err != nil {
		t.Fatalf("expected replay to be ignored, got %v", err)
	}
	if repo.postCalled {
		t.Fatal("expected no second credit for a replayed gateway event")
	}
}

func TestApplyGatewayRecharge_RequiresReference(t *testing.T) {
	service := &Service{repo: &walletRepoStub{account: walletAccount()}, eventProducer: &eventRecorder{}}

	if err := service.ApplyGatewayRecharge(context.Background(), uuid.New(), 5000, "card", "   "); err == nil {
		t.Fatal("expected an error for a gateway event without reference")
	}
}

func TestFailWithdrawal_DelegatesSettlement(t *testing.T) {
	repo := &walletRepoStub{}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	transactionID := uuid.New()
	if err := service.FailWithdrawal(context.Background(), transactionID, domain.TransactionStatusFailed, "account closed"); err != nil {
		t.Fatalf("expected settlement to succeed, got %v", err)
	}
	if repo.failedID != transactionID {
		t.Fatalf("expected settlement of %s, got %s", transactionID, repo.failedID)
	}
	if repo.failStatus != domain.TransactionStatusFailed {
		t.Fatalf("expected failed status, got %q", repo.failStatus)
	}
	if repo.failReason != "account closed" {
		t.Fatalf("expected the gateway reason to be recorded, got %q", repo.failReason)
	}
}
