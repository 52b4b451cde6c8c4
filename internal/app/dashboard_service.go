/**
 * @description
 * This file contains the dashboard aggregation logic. Overviews are computed
 * on demand from committed rows; there is no materialized state to drift.
 *
 * Revenue counts bookings by when they completed, not when they were created,
 * and the platform commission is a straight percentage of that revenue,
 * rounded to the nearest minor unit.
 */

package app

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/domain"
)

const defaultDashboardWindow = "7d"

// parseDashboardWindow maps the window query value to an absolute time range.
// An absent window means the default; an unknown value is a filter error.
func parseDashboardWindow(window string) (time.Time, time.Time, string, error) {
	to := time.Now().UTC()
	switch window {
	case "", defaultDashboardWindow:
		return to.AddDate(0, 0, -7), to, defaultDashboardWindow, nil
	case "24h":
		return to.Add(-24 * time.Hour), to, "24h", nil
	case "30d":
		return to.AddDate(0, 0, -30), to, "30d", nil
	case "90d":
		return to.AddDate(0, 0, -90), to, "90d", nil
	default:
		return time.Time{}, time.Time{}, "", ErrInvalidFilter
	}
}

// GetAdminOverview assembles the platform-wide rollup for one window.
// Admin only.
func (s *Service) GetAdminOverview(ctx context.Context, adminID uuid.UUID, window string) (*domain.AdminOverview, error) {
	admin, err := s.repo.FindUserByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	from, to, label, err := parseDashboardWindow(window)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.repo.CountBookingsByStatus(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountBookingsByWorkType(ctx, from, to)
	if err != nil {
		return nil, err
	}
	completedCount, revenue, err := s.repo.SumCompletedBookings(ctx, from, to, nil)
	if err != nil {
		return nil, err
	}
	transactions, err := s.repo.SummarizePlatformTransactions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	newCustomers, err := s.repo.CountNewCustomers(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.AdminOverview{
		Window:            label,
		From:              from,
		To:                to,
		BookingsByStatus:  byStatus,
		BookingsByType:    byType,
		CompletedCount:    completedCount,
		CompletedRevenue:  revenue,
		Commission:        commissionOf(revenue, s.commissionPercent),
		CommissionPercent: s.commissionPercent,
		Transactions:      transactions,
		NewCustomers:      newCustomers,
	}, nil
}

// GetContractorOverview assembles the rollup over the calling contractor's
// bookings for one window.
func (s *Service) GetContractorOverview(ctx context.Context, contractorID uuid.UUID, window string) (*domain.ContractorOverview, error) {
	contractor, err := s.repo.FindUserByID(ctx, contractorID)
	if err != nil {
		return nil, err
	}
	if contractor.Role != domain.RoleContractor {
		return nil, ErrForbidden
	}

	from, to, label, err := parseDashboardWindow(window)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.repo.CountBookingsByStatus(ctx, from, to, &contractorID)
	if err != nil {
		return nil, err
	}
	completedCount, revenue, err := s.repo.SumCompletedBookings(ctx, from, to, &contractorID)
	if err != nil {
		return nil, err
	}

	return &domain.ContractorOverview{
		ContractorID:     contractorID,
		Window:           label,
		From:             from,
		To:               to,
		BookingsByStatus: byStatus,
		CompletedCount:   completedCount,
		CompletedRevenue: revenue,
	}, nil
}

// GetWorkerSummary assembles the calling worker's own summary card.
func (s *Service) GetWorkerSummary(ctx context.Context, workerID uuid.UUID, window string) (*domain.WorkerSummary, error) {
	worker, err := s.repo.FindUserByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if !worker.Role.IsWorker() {
		return nil, ErrForbidden
	}

	from, to, _, err := parseDashboardWindow(window)
	if err != nil {
		return nil, err
	}

	completed, err := s.repo.CountCompletedBookingsByWorker(ctx, workerID, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.WorkerSummary{
		WorkerID:          worker.ID,
		FullName:          worker.FullName,
		AverageRating:     worker.AverageRating,
		TotalRatings:      worker.TotalRatings,
		CompletedInWindow: completed,
	}, nil
}

func commissionOf(revenue int64, percent float64) int64 {
	if revenue <= 0 || percent <= 0 {
		return 0
	}
	return int64(math.Round(float64(revenue) * percent / 100.0))
}
