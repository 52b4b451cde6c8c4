package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusCount is one status bucket of a booking rollup.
type StatusCount struct {
	Status BookingStatus `json:"status"`
	Count  int64         `json:"count"`
}

// WorkTypeCount is one work-type bucket of a booking rollup.
type WorkTypeCount struct {
	WorkType string `json:"work_type"`
	Count    int64  `json:"count"`
}

// AdminOverview is the platform-wide dashboard rollup for one time window.
type AdminOverview struct {
	Window            string                   `json:"window"`
	From              time.Time                `json:"from"`
	To                time.Time                `json:"to"`
	BookingsByStatus  []StatusCount            `json:"bookings_by_status"`
	BookingsByType    []WorkTypeCount          `json:"bookings_by_work_type"`
	CompletedCount    int64                    `json:"completed_count"`
	CompletedRevenue  int64                    `json:"completed_revenue"` // in minor units
	Commission        int64                    `json:"commission"`        // in minor units
	CommissionPercent float64                  `json:"commission_percent"`
	Transactions      []TransactionTypeSummary `json:"transactions_by_type"`
	NewCustomers      int64                    `json:"new_customers"`
}

// ContractorOverview is the rollup over one contractor's bookings.
type ContractorOverview struct {
	ContractorID     uuid.UUID     `json:"contractor_id"`
	Window           string        `json:"window"`
	From             time.Time     `json:"from"`
	To               time.Time     `json:"to"`
	BookingsByStatus []StatusCount `json:"bookings_by_status"`
	CompletedCount   int64         `json:"completed_count"`
	CompletedRevenue int64         `json:"completed_revenue"` // in minor units
}
