package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

type dashboardRepoStub struct {
	store.Repository

	user *domain.User

	statusCounts     []domain.StatusCount
	typeCounts       []domain.WorkTypeCount
	completedCount   int64
	completedRevenue int64
	transactions     []domain.TransactionTypeSummary
	newCustomers     int64
	workerCompleted  int64

	statusContractorID *uuid.UUID
	sumContractorID    *uuid.UUID
}

func (s *dashboardRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.user == nil || s.user.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.user, nil
}

func (s *dashboardRepoStub) CountBookingsByStatus(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) ([]domain.StatusCount, error) {
	s.statusContractorID = contractorID
	return s.statusCounts, nil
}

func (s *dashboardRepoStub) CountBookingsByWorkType(ctx context.Context, from, to time.Time) ([]domain.WorkTypeCount, error) {
	return s.typeCounts, nil
}

func (s *dashboardRepoStub) SumCompletedBookings(ctx context.Context, from, to time.Time, contractorID *uuid.UUID) (int64, int64, error) {
	s.sumContractorID = contractorID
	return s.completedCount, s.completedRevenue, nil
}

func (s *dashboardRepoStub) SummarizePlatformTransactions(ctx context.Context, from, to time.Time) ([]domain.TransactionTypeSummary, error) {
	return s.transactions, nil
}

func (s *dashboardRepoStub) CountNewCustomers(ctx context.Context, from, to time.Time) (int64, error) {
	return s.newCustomers, nil
}

func (s *dashboardRepoStub) CountCompletedBookingsByWorker(ctx context.Context, workerID uuid.UUID, from, to time.Time) (int64, error) {
	return s.workerCompleted, nil
}

func TestParseDashboardWindow_KnownValuesAndDefault(t *testing.T) {
	cases := []struct {
		window    string
		wantLabel string
		wantSpan  time.Duration
	}{
		{"24h", "24h", 24 * time.Hour},
		{"7d", "7d", 7 * 24 * time.Hour},
		{"30d", "30d", 30 * 24 * time.Hour},
		{"90d", "90d", 90 * 24 * time.Hour},
		{"", "7d", 7 * 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run("window_"+tc.window, func(t *testing.T) {
			from, to, label, err := parseDashboardWindow(tc.window)
			if err != nil {
				t.Fatalf("expected window %q to parse, got %v", tc.window, err)
			}
			if label != tc.wantLabel {
				t.Fatalf("expected label %q, got %q", tc.wantLabel, label)
			}
			if span := to.Sub(from); span != tc.wantSpan {
				t.Fatalf("expected a %s window, got %s", tc.wantSpan, span)
			}
		})
	}
}

func TestParseDashboardWindow_RejectsUnknownValue(t *testing.T) {
	if _, _, _, err := parseDashboardWindow("1y"); err != ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestGetAdminOverview_RejectsUnknownWindow(t *testing.T) {
	admin := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	repo := &dashboardRepoStub{user: admin}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, commissionPercent: 10}

	if _, err := service.GetAdminOverview(context.Background(), admin.ID, "1y"); err != ErrInvalidFilter {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestCommissionOf_RoundsToNearestMinorUnit(t *testing.T) {
	cases := []struct {
		name    string
		revenue int64
		percent float64
		want    int64
	}{
		{"ten percent", 100000, 10, 10000},
		{"rounds half up", 125, 10, 13},
		{"rounds down", 124, 10, 12},
		{"zero revenue", 0, 10, 0},
		{"negative revenue", -500, 10, 0},
		{"zero percent", 100000, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := commissionOf(tc.revenue, tc.percent); got != tc.want {
				t.Fatalf("expected commission %d, got %d", tc.want, got)
			}
		})
	}
}

func TestGetAdminOverview_RequiresAdminRole(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleContractor}
	repo := &dashboardRepoStub{user: user}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, commissionPercent: 10}

	if _, err := service.GetAdminOverview(context.Background(), user.ID, "7d"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetAdminOverview_AssemblesPlatformRollup(t *testing.T) {
	admin := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}
	repo := &dashboardRepoStub{
		user:             admin,
		statusCounts:     []domain.StatusCount{{Status: domain.BookingStatusCompleted, Count: 4}},
		typeCounts:       []domain.WorkTypeCount{{WorkType: "plumbing", Count: 3}},
		completedCount:   4,
		completedRevenue: 125,
		newCustomers:     9,
	}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, commissionPercent: 10}

	overview, err := service.GetAdminOverview(context.Background(), admin.ID, "30d")
	if err != nil {
		t.Fatalf("expected the overview to build, got %v", err)
	}
	if overview.Window != "30d" {
		t.Fatalf("expected window 30d, got %q", overview.Window)
	}
	if repo.statusContractorID != nil || repo.sumContractorID != nil {
		t.Fatal("expected platform-wide counts without a contractor filter")
	}
	if overview.CompletedRevenue != 125 {
		t.Fatalf("expected revenue 125, got %d", overview.CompletedRevenue)
	}
	if overview.Commission != 13 {
		t.Fatalf("expected commission 13 (10%% of 125, rounded), got %d", overview.Commission)
	}
	if overview.NewCustomers != 9 {
		t.Fatalf("expected 9 new customers, got %d", overview.NewCustomers)
	}
}

func TestGetContractorOverview_ScopesToContractor(t *testing.T) {
	contractor := &domain.User{ID: uuid.New(), Role: domain.RoleContractor}
	repo := &dashboardRepoStub{user: contractor, completedCount: 2, completedRevenue: 40000}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}, commissionPercent: 10}

	overview, err := service.GetContractorOverview(context.Background(), contractor.ID, "7d")
	if err != nil {
		t.Fatalf("expected the overview to build, got %v", err)
	}
	if overview.ContractorID != contractor.ID {
		t.Fatalf("expected overview for %s, got %s", contractor.ID, overview.ContractorID)
	}
	if repo.statusContractorID == nil || *repo.statusContractorID != contractor.ID {
		t.Fatalf("expected status counts filtered by contractor, got %v", repo.statusContractorID)
	}
	if repo.sumContractorID == nil || *repo.sumContractorID != contractor.ID {
		t.Fatalf("expected revenue filtered by contractor, got %v", repo.sumContractorID)
	}
}

func TestGetContractorOverview_RejectsOtherRoles(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleIndependentWorker}
	repo := &dashboardRepoStub{user: user}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.GetContractorOverview(context.Background(), user.ID, "7d"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGetWorkerSummary_BuildsCardFromProfile(t *testing.T) {
	worker := &domain.User{ID: uuid.New(), Role: domain.RoleContractWorker, FullName: "Ada Fix", AverageRating: 4.8, TotalRatings: 31}
	repo := &dashboardRepoStub{user: worker, workerCompleted: 5}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	summary, err := service.GetWorkerSummary(context.Background(), worker.ID, "90d")
	if err != nil {
		t.Fatalf("expected the summary to build, got %v", err)
	}
	if summary.WorkerID != worker.ID || summary.FullName != "Ada Fix" {
		t.Fatalf("expected the worker profile on the card, got %+v", summary)
	}
	if summary.AverageRating != 4.8 || summary.TotalRatings != 31 {
		t.Fatalf("expected the cached aggregate on the card, got %+v", summary)
	}
	if summary.CompletedInWindow != 5 {
		t.Fatalf("expected 5 completed bookings in window, got %d", summary.CompletedInWindow)
	}
}

func TestGetWorkerSummary_RejectsNonWorkers(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleCustomer}
	repo := &dashboardRepoStub{user: user}
	service := &Service{repo: repo, eventProducer: &eventRecorder{}}

	if _, err := service.GetWorkerSummary(context.Background(), user.ID, "7d"); err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
