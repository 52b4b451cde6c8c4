/**
 * @description
 * This file defines the user-facing domain models for the marketplace-service.
 * Users cover every actor in the marketplace: customers, independent workers,
 * contractor-managed workers, contractors, and admins. Identity provisioning is
 * owned by the external auth layer; this service resolves auth subjects to
 * internal user rows and enforces role rules on top of them.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies what a user can do in the marketplace.
type Role string

const (
	RoleCustomer          Role = "customer"
	RoleIndependentWorker Role = "independent_worker"
	RoleContractWorker    Role = "contract_worker"
	RoleContractor        Role = "contractor"
	RoleAdmin             Role = "admin"
)

// IsWorker reports whether the role performs bookings.
func (r Role) IsWorker() bool {
	return r == RoleIndependentWorker || r == RoleContractWorker
}

// User represents one marketplace actor. Maps to the `users` table.
// ContractorID is set only for contract workers; the assignment audit fields
// record who attached the contractor and when.
type User struct {
	ID                   uuid.UUID  `json:"id"`
	AuthSubject          string     `json:"-"`
	FullName             string     `json:"full_name"`
	Phone                *string    `json:"phone,omitempty"`
	Role                 Role       `json:"role"`
	WorkType             *string    `json:"work_type,omitempty"`
	ContractorID         *uuid.UUID `json:"contractor_id,omitempty"`
	ContractorAssignedBy *uuid.UUID `json:"contractor_assigned_by,omitempty"`
	ContractorAssignedAt *time.Time `json:"contractor_assigned_at,omitempty"`
	AverageRating        float64    `json:"average_rating"`
	TotalRatings         int        `json:"total_ratings"`
	CreatedAt            time.Time  `json:"created_at"`
}

// WorkerSummary is the aggregate view of a worker exposed by the dashboard layer.
type WorkerSummary struct {
	WorkerID          uuid.UUID `json:"worker_id"`
	FullName          string    `json:"full_name"`
	AverageRating     float64   `json:"average_rating"`
	TotalRatings      int       `json:"total_ratings"`
	CompletedInWindow int64     `json:"completed_in_window"`
}
