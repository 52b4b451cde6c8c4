/**
 * @description
 * This file contains the shared plumbing for the marketplace-service HTTP
 * handlers: the Handlers struct, the authentication resolution chain, and
 * JSON response helpers. Endpoint handlers live in sibling files grouped by
 * domain (wallet, booking, rating, dashboard, admin).
 *
 * @dependencies
 * - encoding/json, log, net/http, strconv, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For parsing internal user IDs.
 * - internal/app: The application service layer.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/workbridge/marketplace-service/internal/app"
)

// Handlers holds the dependencies for the HTTP handler functions.
type Handlers struct {
	service *app.Service
	cleanup *app.CleanupJobs
}

// NewHandlers creates a new set of API handlers.
func NewHandlers(service *app.Service, cleanup *app.CleanupJobs) *Handlers {
	return &Handlers{
		service: service,
		cleanup: cleanup,
	}
}

// resolveAuthenticatedUserID maps the request's auth subject to the internal
// user UUID. A non-zero status code means the chain failed and the caller
// should write the accompanying message as the error response.
func (h *Handlers) resolveAuthenticatedUserID(r *http.Request) (uuid.UUID, int, string) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		return uuid.Nil, http.StatusUnauthorized, "Could not get user ID from context"
	}

	internalIDStr, err := h.service.ResolveInternalUserID(r.Context(), subject)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=user_resolution_failed auth_subject=%s err=%v", subject, err)
		return uuid.Nil, http.StatusBadRequest, "User not found"
	}

	userID, err := uuid.Parse(internalIDStr)
	if err != nil {
		return uuid.Nil, http.StatusBadRequest, "Invalid user ID format"
	}

	return userID, 0, ""
}

// writeRateLimited writes a 429 response with the Retry-After header. Returns
// false when err is not a rate limit rejection.
func (h *Handlers) writeRateLimited(w http.ResponseWriter, err error) bool {
	var rateErr *app.RateLimitedError
	if !errors.As(err, &rateErr) {
		return false
	}
	w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
	h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
	return true
}

func parseOptionalPositiveInt(raw string, defaultValue int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.New("must be >= 0")
	}
	return value, nil
}

// parseOptionalTime parses an RFC 3339 query parameter, returning nil when
// the parameter is absent.
func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
