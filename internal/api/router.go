/**
 * @description
 * This file sets up the HTTP router for the marketplace-service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, timeouts, CORS, and
 * authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and returns the router for the marketplace service.
func NewRouter(h *Handlers, jwksURL, issuer, audience, internalKey string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Server-to-server endpoints guarded by the shared API key.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/accounts/{user_id}/earnings", h.CreditEarningsHandler)
		r.Post("/bookings/cleanup", h.RunBookingCleanupHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL, issuer, audience))

		// Wallet endpoints
		r.Get("/wallet/balance", h.GetWalletBalanceHandler)
		r.Get("/wallet/transactions", h.ListWalletTransactionsHandler)
		r.Get("/wallet/transactions/summary", h.GetWalletSummaryHandler)
		r.Get("/wallet/transactions/{id}", h.GetWalletTransactionHandler)
		r.Post("/wallet/recharge", h.RechargeWalletHandler)
		r.Post("/wallet/withdraw", h.RequestWithdrawalHandler)

		// Booking lifecycle endpoints
		r.Post("/bookings", h.CreateBookingHandler)
		r.Get("/bookings", h.ListBookingsHandler)
		r.Get("/bookings/{id}", h.GetBookingHandler)
		r.Post("/bookings/{id}/accept", h.AcceptBookingHandler)
		r.Post("/bookings/{id}/reject", h.RejectBookingHandler)
		r.Post("/bookings/{id}/confirm", h.ConfirmBookingHandler)
		r.Post("/bookings/{id}/start", h.StartBookingHandler)
		r.Post("/bookings/{id}/complete", h.CompleteBookingHandler)
		r.Post("/bookings/{id}/cancel", h.CancelBookingHandler)

		// Rating endpoints
		r.Post("/bookings/{id}/rating", h.SubmitRatingHandler)
		r.Get("/workers/{id}/ratings", h.GetWorkerRatingsHandler)

		// Dashboard endpoints
		r.Get("/dashboard/admin/overview", h.AdminOverviewHandler)
		r.Get("/dashboard/contractor/overview", h.ContractorOverviewHandler)
		r.Get("/dashboard/worker/summary", h.WorkerSummaryHandler)

		// Admin endpoints; the service layer enforces the admin role.
		r.Put("/admin/workers/{id}/contractor", h.AssignContractorHandler)
		r.Post("/admin/bookings/{id}/cancel", h.AdminCancelBookingHandler)
	})

	return r
}
