/**
 * @description
 * This file contains HTTP handlers for the dashboard endpoints. Each role
 * gets its own aggregate view: admins see platform-wide rollups, contractors
 * see their fleet, workers see their own completion summary.
 *
 * @dependencies
 * - errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/store: For service logic and custom errors.
 */

package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/workbridge/marketplace-service/internal/app"
	"github.com/workbridge/marketplace-service/internal/store"
)

func mapDashboardError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Not allowed to view this dashboard."
	case errors.Is(err, app.ErrInvalidFilter):
		return http.StatusBadRequest, "Unknown window; expected 24h, 7d, 30d, or 90d"
	}

	return http.StatusInternalServerError, "Could not build dashboard."
}

// AdminOverviewHandler returns the platform-wide dashboard for admins. The
// optional window query parameter accepts 24h, 7d, 30d, or 90d.
func (h *Handlers) AdminOverviewHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	overview, err := h.service.GetAdminOverview(r.Context(), userID, r.URL.Query().Get("window"))
	if err != nil {
		status, msg := mapDashboardError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=admin_overview outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, overview)
}

// ContractorOverviewHandler returns the fleet dashboard for contractors.
func (h *Handlers) ContractorOverviewHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	overview, err := h.service.GetContractorOverview(r.Context(), userID, r.URL.Query().Get("window"))
	if err != nil {
		status, msg := mapDashboardError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=contractor_overview outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, overview)
}

// WorkerSummaryHandler returns the personal summary for workers.
func (h *Handlers) WorkerSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, statusCode, message := h.resolveAuthenticatedUserID(r)
	if statusCode != 0 {
		h.writeError(w, statusCode, message)
		return
	}

	summary, err := h.service.GetWorkerSummary(r.Context(), userID, r.URL.Query().Get("window"))
	if err != nil {
		status, msg := mapDashboardError(err)
		if status == http.StatusInternalServerError {
			log.Printf("level=error component=api endpoint=worker_summary outcome=failed user_id=%s err=%v", userID, err)
		}
		h.writeError(w, status, msg)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}
