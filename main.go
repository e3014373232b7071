package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-payments/internal/auth"
	bookingdb "ms-payments/internal/booking/db"
	"ms-payments/internal/config"
	"ms-payments/internal/database/migrations"
	"ms-payments/internal/logger"
	"ms-payments/internal/notifier"
	"ms-payments/internal/payment"
	"ms-payments/internal/payment/api"
	paymentdb "ms-payments/internal/payment/db"
	paymentkafka "ms-payments/internal/payment/kafka"
	"ms-payments/internal/payment/paypal"
	"ms-payments/internal/payment/processor"
	"ms-payments/internal/payment/session"
)

// sessionProvider hands each authenticated user their own checkout session.
type sessionProvider struct {
	store *session.Store
}

func (p sessionProvider) SessionFor(ownerID string) payment.CheckoutSession {
	return p.store.Session(ownerID)
}

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func buildProcessor(cfg *config.Config, paypalClient *paypal.Client, log *logger.Logger) payment.ProcessorClient {
	name := strings.ToLower(os.Getenv("PAYMENT_PROCESSOR"))
	switch name {
	case "stripe":
		stripeProcessor, err := processor.NewStripeProcessor(cfg.Stripe, log)
		if err != nil {
			log.Fatal("CONFIG", fmt.Sprintf("Failed to configure Stripe processor: %v", err))
		}
		log.Info("APP", "Using Stripe as payment processor")
		return stripeProcessor
	default:
		log.Info("APP", "Using PayPal as payment processor")
		return paypalClient
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Payment Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, logger)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	defer redisClient.Close()

	var events payment.EventPublisher
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer := paymentkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.PaymentCreated,
			cfg.Kafka.Topics.PaymentCaptured,
			cfg.Kafka.Topics.PaymentRolledBack,
		}
		if err := paymentkafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		events = producer
	} else {
		logger.Warn("KAFKA", "Kafka disabled, payment events will not be published")
	}

	bookingStore, err := bookingdb.NewPostgreSQLStore(cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to initialize booking store: %v", err))
	}
	defer bookingStore.Close()

	paymentStore := &paymentdb.DB{Bun: bunDB}

	paypalClient := paypal.NewClient(cfg.PayPal, logger)
	processorClient := buildProcessor(cfg, paypalClient, logger)

	flashes := notifier.NewRedisNotifier(redisClient, logger)
	sessions := session.NewStore(redisClient)

	paymentService := payment.NewService(
		paymentStore,
		bookingStore,
		processorClient,
		events,
		flashes,
		logger,
	)

	handler := &api.Handler{
		Service:  paymentService,
		Bookings: bookingStore,
		Sessions: sessionProvider{store: sessions},
		Flashes:  flashes,
		SDKLink:  paypalClient.SandboxLink,
		Logger:   logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := bookingStore.HealthCheck(); err != nil {
			http.Error(w, "unhealthy: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/payments", func(r chi.Router) {
				r.Post("/", handler.CreatePayment)
				r.Post("/authorize", handler.RequestAuthorization)
				r.Get("/sdk-link", handler.GetSDKLink)
				r.Get("/{paymentId}", handler.GetPayment)
				r.Post("/{paymentId}/capture", handler.CapturePayment)
			})
			logger.Info("ROUTER", "Payment routes registered under /api/v1/payments")

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", handler.CreateBooking)
				r.Get("/{bookingId}", handler.GetBooking)
			})
			logger.Info("ROUTER", "Booking routes registered under /api/v1/bookings")

			r.Get("/notifications", handler.GetNotifications)
			logger.Info("ROUTER", "Notification route registered under /api/v1/notifications")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Payment Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Payment Service shutdown complete")
	}
}
