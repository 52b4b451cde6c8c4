package domain

import "testing"

func TestCanTransition_AllowsForwardPath(t *testing.T) {
	allowed := [][2]BookingStatus{
		{BookingStatusPending, BookingStatusAccepted},
		{BookingStatusPending, BookingStatusRejected},
		{BookingStatusAccepted, BookingStatusConfirmed},
		{BookingStatusAccepted, BookingStatusInProgress},
		{BookingStatusAccepted, BookingStatusCancelled},
		{BookingStatusConfirmed, BookingStatusInProgress},
		{BookingStatusConfirmed, BookingStatusCancelled},
		{BookingStatusInProgress, BookingStatusCompleted},
		{BookingStatusInProgress, BookingStatusCancelled},
	}

	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
}

func TestCanTransition_RejectsSkipsAndReversals(t *testing.T) {
	denied := [][2]BookingStatus{
		{BookingStatusPending, BookingStatusConfirmed},
		{BookingStatusPending, BookingStatusInProgress},
		{BookingStatusPending, BookingStatusCompleted},
		{BookingStatusPending, BookingStatusCancelled},
		{BookingStatusAccepted, BookingStatusPending},
		{BookingStatusAccepted, BookingStatusRejected},
		{BookingStatusAccepted, BookingStatusCompleted},
		{BookingStatusConfirmed, BookingStatusAccepted},
		{BookingStatusInProgress, BookingStatusConfirmed},
		{BookingStatusCompleted, BookingStatusCancelled},
		{BookingStatusCompleted, BookingStatusInProgress},
		{BookingStatusRejected, BookingStatusAccepted},
		{BookingStatusCancelled, BookingStatusPending},
		{BookingStatusCancelled, BookingStatusCancelled},
	}

	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []BookingStatus{BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}

	open := []BookingStatus{BookingStatusPending, BookingStatusAccepted, BookingStatusConfirmed, BookingStatusInProgress}
	for _, status := range open {
		if status.IsTerminal() {
			t.Fatalf("expected %s to be open", status)
		}
	}
}

func TestCustomerMayCancelFrom(t *testing.T) {
	cancellable := []BookingStatus{BookingStatusPending, BookingStatusAccepted, BookingStatusConfirmed}
	for _, status := range cancellable {
		if !CustomerMayCancelFrom(status) {
			t.Fatalf("expected customer cancellation from %s to be allowed", status)
		}
	}

	notCancellable := []BookingStatus{BookingStatusInProgress, BookingStatusCompleted, BookingStatusRejected, BookingStatusCancelled}
	for _, status := range notCancellable {
		if CustomerMayCancelFrom(status) {
			t.Fatalf("expected customer cancellation from %s to be rejected", status)
		}
	}
}
