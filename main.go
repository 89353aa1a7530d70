package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-attendance/internal/analytics"
	analytics_api "ms-attendance/internal/analytics/api"
	"ms-attendance/internal/attendance/attendance_api"
	attendance_db "ms-attendance/internal/attendance/db"
	"ms-attendance/internal/attendance/pass"
	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/bringlist/bringlist_api"
	bringlist_db "ms-attendance/internal/bringlist/db"
	bringlist "ms-attendance/internal/bringlist/service"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database/migrations"
	events_db "ms-attendance/internal/events/db"
	"ms-attendance/internal/events/event_api"
	events "ms-attendance/internal/events/service"
	"ms-attendance/internal/kafka"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/notify"
	rediswrap "ms-attendance/internal/redis"
	"ms-attendance/internal/sse"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := cfg.Database.ConnectRetries

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.PingContext(ctx)
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, redisClient.Options().DB))
	return bunDB, redisClient
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, logger *logger.Logger) auth.Verifier {
	if cfg.Insecure {
		logger.Warn("AUTH", "AUTH_INSECURE is set: bearer tokens are NOT verified")
		return auth.InsecureVerifier{}
	}
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	if err != nil {
		logger.Fatal("AUTH", fmt.Sprintf("Failed to initialise OIDC verifier: %v", err))
	}
	logger.Info("AUTH", fmt.Sprintf("Verifying bearer tokens against %s", cfg.OIDCIssuer))
	return verifier
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("[CONFIG] .env file not found, using environment variables")
	}
	cfg := config.Load()

	level := logger.ParseLevel(cfg.Log.Level)
	logger := logger.NewLogger(cfg.Log.Dir, cfg.Log.Prefix)
	defer logger.Close()
	logger.SetLevel(level)

	logger.Info("APP", "Starting Attendance Service initialization")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), logger)
		if err := runner.RunMigrations(ctx); err != nil {
			logger.Fatal("MIGRATE", fmt.Sprintf("Failed to apply migrations: %v", err))
		}
		logger.Info("MIGRATE", "✅ Schema is up to date")
	}

	broker := sse.NewBroker()

	// Left as a nil interface when Kafka is off so the dispatcher feeds the broker directly.
	var publisher notify.Publisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All()); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		// Every instance relays every notification to its own stream clients, so each
		// needs a consumer group of its own.
		groupID := fmt.Sprintf("%s-%s", cfg.Kafka.GroupID, uuid.NewString()[:8])
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), groupID, logger)
		defer consumer.Close()
		go consumer.Start(ctx, func(n models.Notification) { broker.Publish(n) })
	} else {
		logger.Warn("KAFKA", "Kafka disabled, notifications only reach local stream clients")
	}

	dispatcher := notify.NewDispatcher(publisher, cfg.Kafka.Topics, broker, logger)
	summaryCache := rediswrap.NewSummaryCache(redisClient, cfg.Redis.SummaryTTL, logger)

	attendanceStore := &attendance_db.DB{Bun: bunDB}
	attendanceService := attendance.NewAttendanceService(
		attendanceStore,
		dispatcher,
		summaryCache,
		rediswrap.NewLocker(redisClient),
		cfg.Attendance,
		cfg.Redis.PromoteLockTTL,
		logger,
	)
	eventService := events.NewEventService(&events_db.DB{Bun: bunDB}, dispatcher, summaryCache, cfg.Attendance, logger)
	bringListService := bringlist.NewBringListService(&bringlist_db.DB{Bun: bunDB}, logger)
	analyticsService := analytics.NewService(analytics.NewDB(bunDB), logger)

	passService, err := pass.NewService(attendanceStore, cfg.Attendance.PassSecret, logger)
	if err != nil {
		logger.Fatal("CONFIG", fmt.Sprintf("PASS_SECRET_KEY rejected: %v", err))
	}

	eventHandler := event_api.NewHandler(eventService, logger)
	attendanceHandler := attendance_api.NewHandler(attendanceService, passService, logger)
	bringListHandler := bringlist_api.NewHandler(bringListService, logger)
	analyticsHandler := analytics_api.NewHandler(analyticsService, logger)
	streamHandler := sse.NewHandler(broker, attendanceService, logger)

	// Seats may have been freed while no instance was running.
	go func() {
		promoted, err := attendanceService.PromoteAll(ctx)
		if err != nil {
			logger.Error("WAITLIST", fmt.Sprintf("Startup promotion sweep failed: %v", err))
			return
		}
		logger.Info("WAITLIST", fmt.Sprintf("Startup promotion sweep promoted %d attendees", promoted))
	}()

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(newVerifier(ctx, cfg.Auth, logger), logger))
		logger.Info("AUTH", "Bearer middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			eventHandler.RegisterRoutes(r)
			attendanceHandler.RegisterRoutes(r)
			bringListHandler.RegisterRoutes(r)
			analyticsHandler.RegisterRoutes(r)
			r.Get("/events/{eventId}/stream", streamHandler.StreamEvent)
		})
		logger.Info("ROUTER", "Event, attendance, bring-list, roster and stream routes registered under /api")
	})

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Attendance Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Attendance Service shutdown complete")
	}
}
