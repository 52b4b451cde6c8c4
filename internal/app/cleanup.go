/**
 * @description
 * Scheduled maintenance for the booking table: expiring stale pending
 * bookings and purging old terminal rows.
 *
 * Expiry goes through the regular cancellation path so wallet refunds and
 * lifecycle events still apply; only the final retention purge is a hard
 * delete, and it never touches completed or rated bookings.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/workbridge/marketplace-service/internal/domain"
	"github.com/workbridge/marketplace-service/internal/store"
)

// cleanupBatchSize bounds how many stale bookings one run cancels; a backlog
// drains across consecutive runs.
const cleanupBatchSize = 500

// RunBookingCleanup expires stale pending bookings and purges terminal rows
// past retention. Returns how many bookings were cancelled and deleted.
func (s *Service) RunBookingCleanup(ctx context.Context, pendingExpiryDays, retentionDays int) (int, int64, error) {
	now := time.Now().UTC()

	// 1. Cancel pending bookings nobody acted on.
	expiryCutoff := now.AddDate(0, 0, -pendingExpiryDays)
	stale, err := s.repo.ListStalePendingBookings(ctx, expiryCutoff, cleanupBatchSize)
	if err != nil {
		return 0, 0, err
	}

	expired := 0
	for i := range stale {
		if err := s.systemCancelBooking(ctx, &stale[i]); err != nil {
			log.Printf("WARN: Failed to expire stale booking %s: %v", stale[i].ID, err)
			continue
		}
		expired++
	}

	// 2. Hard-delete rejected/cancelled rows past retention.
	retentionCutoff := now.AddDate(0, 0, -retentionDays)
	purged, err := s.repo.DeleteTerminalBookings(ctx, retentionCutoff)
	if err != nil {
		return expired, 0, err
	}

	return expired, purged, nil
}

// systemCancelBooking cancels one stale pending booking on behalf of the
// cleanup job. Losing the race to a worker who just accepted is fine; the
// booking simply no longer qualifies.
func (s *Service) systemCancelBooking(ctx context.Context, booking *domain.Booking) error {
	cancelledBy := domain.CancelledBySystem
	params := store.TransitionParams{CancelledBy: &cancelledBy}

	updated, err := s.performTransition(ctx, booking, domain.BookingStatusCancelled, params, false)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return err
	}

	s.publishBookingEvent(ctx, "booking.cancelled", updated, "expired")

	return nil
}

// CleanupJobs wraps the cleanup run for the cron scheduler.
type CleanupJobs struct {
	service           *Service
	pendingExpiryDays int
	retentionDays     int
}

// NewCleanupJobs creates the scheduled cleanup runner.
func NewCleanupJobs(service *Service, pendingExpiryDays, retentionDays int) *CleanupJobs {
	return &CleanupJobs{
		service:           service,
		pendingExpiryDays: pendingExpiryDays,
		retentionDays:     retentionDays,
	}
}

// RunNow executes one cleanup pass with the configured windows. The internal
// trigger endpoint uses this to run cleanup outside the cron schedule.
func (j *CleanupJobs) RunNow(ctx context.Context) (int, int64, error) {
	return j.service.RunBookingCleanup(ctx, j.pendingExpiryDays, j.retentionDays)
}

// RunBookingCleanup is the cron entry point.
func (j *CleanupJobs) RunBookingCleanup() {
	log.Printf("level=info component=cleanup msg=%q", "starting booking cleanup job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, purged, err := j.service.RunBookingCleanup(ctx, j.pendingExpiryDays, j.retentionDays)
	if err != nil {
		log.Printf("level=error component=cleanup msg=%q expired=%d err=%v", "booking cleanup job failed", expired, err)
		return
	}

	log.Printf("level=info component=cleanup msg=%q expired=%d purged=%d", "booking cleanup job finished", expired, purged)
}
