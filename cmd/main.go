/**
 * @description
 * This is the main entry point for the marketplace-service. It is responsible
 * for initializing all components of the service, including configuration,
 * database connection, the message broker producer and consumer, the Redis
 * rate limiter, the cron scheduler, the repository, the core application
 * service, and the HTTP server. It wires everything together and starts the
 * service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for distributed rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/workbridge/marketplace-service/internal/api"
	"github.com/workbridge/marketplace-service/internal/app"
	"github.com/workbridge/marketplace-service/internal/config"
	"github.com/workbridge/marketplace-service/internal/store"
	wbrabbit "github.com/workbridge/marketplace-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting marketplace-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish domain events. A broker
	// outage degrades to the no-op fallback rather than blocking boot.
	var eventProducer wbrabbit.Publisher
	rabbitProducer, err := wbrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &wbrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		eventProducer = rabbitProducer
	}

	var redisClient *redis.Client
	rateLimitingEnabled := cfg.BookingRateLimitPerMinute > 0 || cfg.RatingRateLimitPerMinute > 0
	if rateLimitingEnabled {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	marketplaceService := app.NewService(
		repository,
		eventProducer,
		cfg.CommissionPercent,
		cfg.MinRechargeAmount,
		cfg.BookingRateLimitPerMinute,
		cfg.RatingRateLimitPerMinute,
	)
	if redisClient != nil {
		marketplaceService.SetRateLimiter(
			app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
		)
	}

	// Schedule the booking maintenance jobs.
	cleanupJobs := app.NewCleanupJobs(marketplaceService, cfg.BookingPendingExpiryDays, cfg.BookingRetentionDays)
	scheduler := app.NewScheduler(cleanupJobs, cfg.BookingCleanupSchedule)
	scheduler.Start()

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(marketplaceService, cleanupJobs)
	router := api.NewRouter(
		handlers,
		cfg.AuthJWKSURL,
		cfg.AuthIssuer,
		cfg.AuthAudience,
		cfg.InternalAPIKey,
		splitOrigins(cfg.CORSAllowedOrigins),
	)

	// Wire up the payment gateway settlement consumer.
	paymentConsumer := app.NewPaymentEventConsumer(marketplaceService)

	rabbitConsumer, err := wbrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()

	paymentBindings := map[string]func([]byte) bool{
		"payment.recharge.captured": paymentConsumer.HandleMessage,
		"payout.withdrawal.settled": paymentConsumer.HandleMessage,
		"payout.withdrawal.failed":  paymentConsumer.HandleMessage,
	}

	if err := rabbitConsumer.ConsumeWithBindings(app.EventsExchange, cfg.PaymentEventQueue, paymentBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"payment consumer start failed\" err=%v", err)
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	// Stop the scheduler and wait for any running job to finish.
	<-scheduler.Stop().Done()
	log.Println("level=info component=bootstrap msg=\"scheduler stopped\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}

// splitOrigins parses the comma-separated CORS origin list from configuration.
func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
