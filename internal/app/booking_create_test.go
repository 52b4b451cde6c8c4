package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

// eventRecorder captures published events so tests can assert on routing keys
// and payloads without a broker.
type eventRecorder struct {
	routingKeys []string
	payloads    []interface{}
	err         error
}

func (r *eventRecorder) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	r.routingKeys = append(r.routingKeys, routingKey)
	r.payloads = append(r.payloads, body)
	return r.err
}

func (r *eventRecorder) Close() {}

type bookingCreateRepoStub struct {
	store.Repository

	worker  *domain.User
	account *domain.Account

	createCalled            bool
	createWithPaymentCalled bool
	created                 *domain.Booking
	payment                 domain.PostTransactionParams
	createWithPaymentErr    error
}

func (s *bookingCreateRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.worker == nil || s.worker.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.worker, nil
}

func (s *bookingCreateRepoStub) FindAccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *bookingCreateRepoStub) CreateBooking(ctx context.Context, booking *domain.Booking) error {
	s.createCalled = true
	booking.ID = uuid.New()
	s.created = booking
	return nil
}

func (s *bookingCreateRepoStub) CreateBookingWithPayment(ctx context.Context, booking *domain.Booking, payment domain.PostTransactionParams) (*domain.Transaction, error) {
	if s.createWithPaymentErr != nil {
		return nil, s.createWithPaymentErr
	}
	s.createWithPaymentCalled = true
	booking.ID = uuid.New()
	txID := uuid.New()
	booking.WalletTransactionID = &txID
	s.created = booking
	s.payment = payment
	return &domain.Transaction{ID: txID, AccountID: payment.AccountID, Type: payment.Type, Amount: payment.Amount}, nil
}

func validCreateRequest(workerID uuid.UUID) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		WorkerID:  workerID,
		WorkType:  "plumbing",
		Location:  "12 Canal Street",
		StartDate: time.Now().Add(24 * time.Hour),
	}
}

func TestCreateBooking_RequiresMandatoryFields(t *testing.T) {
	repo := &bookingCreateRepoStub{}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	req := validCreateRequest(uuid.New())
	req.WorkType = "   "

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != ErrMissingFields {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if repo.createCalled || repo.createWithPaymentCalled {
		t.Fatal("expected no booking to be persisted")
	}
}

func TestCreateBooking_RejectsStartDateInPast(t *testing.T) {
	repo := &bookingCreateRepoStub{}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	req := validCreateRequest(uuid.New())
	req.StartDate = time.Now().Add(-1 * time.Hour)

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != ErrStartDateInPast {
		t.Fatalf("expected ErrStartDateInPast, got %v", err)
	}
}

func TestCreateBooking_RejectsEndDateBeforeStart(t *testing.T) {
	repo := &bookingCreateRepoStub{}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	req := validCreateRequest(uuid.New())
	end := req.StartDate.Add(-1 * time.Hour)
	req.EndDate = &end

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != ErrInvalidDateRange {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestCreateBooking_RejectsSelfBooking(t *testing.T) {
	repo := &bookingCreateRepoStub{}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	customerID := uuid.New()

	if _, err := service.CreateBooking(context.Background(), customerID, validCreateRequest(customerID)); err != ErrSelfBooking {
		t.Fatalf("expected ErrSelfBooking, got %v", err)
	}
}

func TestCreateBooking_RejectsNonWorkerTarget(t *testing.T) {
	target := &domain.User{ID: uuid.New(), Role: domain.RoleCustomer}
	repo := &bookingCreateRepoStub{worker: target}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.CreateBooking(context.Background(), uuid.New(), validCreateRequest(target.ID)); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestCreateBooking_RequiresContractorForContractWorkers(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleContractWorker}
	repo := &bookingCreateRepoStub{worker: worker}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.CreateBooking(context.Background(), uuid.New(), validCreateRequest(worker.ID)); err != ErrContractorUnresolved {
		t.Fatalf("expected ErrContractorUnresolved, got %v", err)
	}
}

func TestCreateBooking_RoutesContractWorkerThroughContractor(t *testing.T) {
	contractorID := uuid.New()
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleContractWorker, ContractorID: &contractorID}
	repo := &bookingCreateRepoStub{worker: worker}
	producer := &eventRecorder{}
	service := &Service{repo: repo, eventProducer: producer}

	booking, err := service.CreateBooking(context.Background(), uuid.New(), validCreateRequest(worker.ID))
	if err != nil {
		t.Fatalf("expected booking to be created, got %v", err)
	}
	if booking.ContractorID == nil || *booking.ContractorID != contractorID {
		t.Fatalf("expected booking routed through contractor %s, got %v", contractorID, booking.ContractorID)
	}
}

func TestCreateBooking_RejectsUnknownPaymentMethod(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	repo := &bookingCreateRepoStub{worker: worker}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	req := validCreateRequest(worker.ID)
	req.PaymentMethod = "barter"

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != ErrInvalidPaymentMethod {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestCreateBooking_DefaultsToCashPayment(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	repo := &bookingCreateRepoStub{worker: worker}
	producer := &eventRecorder{}
	service := &Service{repo: repo, eventProducer: producer}

	booking, err := service.CreateBooking(context.Background(), uuid.New(), validCreateRequest(worker.ID))
	if err != nil {
		t.Fatalf("expected booking to be created, got %v", err)
	}
	if !repo.createCalled {
		t.Fatal("expected CreateBooking to be used for non-wallet funding")
	}
	if booking.PaymentMethod != domain.PaymentMethodCash {
		t.Fatalf("expected payment method to default to cash, got %q", booking.PaymentMethod)
	}
	if booking.Status != domain.BookingStatusPending {
		t.Fatalf("expected new booking to be pending, got %q", booking.Status)
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "booking.created" {
		t.Fatalf("expected booking.created event, got %v", producer.routingKeys)
	}
}

func TestCreateBooking_WalletFundingRequiresBudget(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	repo := &bookingCreateRepoStub{worker: worker}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	req := validCreateRequest(worker.ID)
	req.UseWallet = true

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != ErrMissingBudget {
		t.Fatalf("expected ErrMissingBudget, got %v", err)
	}
}

func TestCreateBooking_WalletFundingPostsPaymentAtomically(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	account := &domain.Account{ID: uuid.New(), Balance: 100000}
	repo := &bookingCreateRepoStub{worker: worker, account: account}
	producer := &eventRecorder{}
	service := &Service{repo: repo, eventProducer: producer}

	budget := int64(25000)
	req := validCreateRequest(worker.ID)
	req.UseWallet = true
	req.Budget = &budget
	req.PaymentMethod = "cash" // wallet funding overrides the declared method

	booking, err := service.CreateBooking(context.Background(), uuid.New(), req)
	if err != nil {
		t.Fatalf("expected booking to be created, got %v", err)
	}
	if !repo.createWithPaymentCalled {
		t.Fatal("expected CreateBookingWithPayment to be used for wallet funding")
	}
	if repo.createCalled {
		t.Fatal("expected the plain CreateBooking path to be skipped")
	}
	if booking.PaymentMethod != domain.PaymentMethodWallet {
		t.Fatalf("expected payment method wallet, got %q", booking.PaymentMethod)
	}
	if repo.payment.AccountID != account.ID {
		t.Fatalf("expected payment against account %s, got %s", account.ID, repo.payment.AccountID)
	}
	if repo.payment.Type != domain.TransactionTypePayment {
		t.Fatalf("expected a payment transaction, got %q", repo.payment.Type)
	}
	if repo.payment.Status != domain.TransactionStatusCompleted {
		t.Fatalf("expected payment to settle immediately, got %q", repo.payment.Status)
	}
	if repo.payment.Amount != budget {
		t.Fatalf("expected payment amount %d, got %d", budget, repo.payment.Amount)
	}
	if booking.WalletTransactionID == nil {
		t.Fatal("expected the funding transaction to be linked to the booking")
	}
	if len(producer.routingKeys) != 1 || producer.routingKeys[0] != "booking.created" {
		t.Fatalf("expected booking.created event, got %v", producer.routingKeys)
	}
}

func TestCreateBooking_InsufficientBalanceCreatesNothing(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	account := &domain.Account{ID: uuid.New(), Balance: 100}
	repo := &bookingCreateRepoStub{worker: worker, account: account, createWithPaymentErr: store.ErrInsufficientBalance}
	producer := &eventRecorder{}
	service := &Service{repo: repo, eventProducer: producer}

	budget := int64(25000)
	req := validCreateRequest(worker.ID)
	req.UseWallet = true
	req.Budget = &budget

	if _, err := service.CreateBooking(context.Background(), uuid.New(), req); err != store.ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(producer.routingKeys) != 0 {
		t.Fatalf("expected no event for a failed booking, got %v", producer.routingKeys)
	}
}
