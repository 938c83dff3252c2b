package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-builder/internal/config"
	"course-builder/internal/generation"
	"course-builder/internal/handler"
	"course-builder/internal/messaging"
	"course-builder/internal/repository"
	"course-builder/internal/service"
	"course-builder/internal/wizard"
	"course-builder/pkg/logger"
	"course-builder/pkg/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Starting Course Builder Service...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// PostgreSQL
	dbPool, err := setupDatabase(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	zapLogger.Info("Connected to PostgreSQL")

	if err := runMigrations(cfg); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	zapLogger.Info("Database migrations applied")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cancel()
	}
	zapLogger.Info("Connected to Redis", zap.String("addr", cfg.RedisAddr))

	// RabbitMQ
	rabbitConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()
	zapLogger.Info("Connected to RabbitMQ")

	// Repositories
	draftRepo := repository.NewPgDraftRepository(dbPool, zapLogger)
	draftRepo = repository.NewCachedDraftRepository(draftRepo, redisClient, cfg.DraftCacheTTL, zapLogger)
	courseRepo := repository.NewPgCourseRepository(dbPool, zapLogger)

	// Messaging
	eventPublisher, err := messaging.NewRabbitMQCourseEventPublisher(rabbitConn, cfg.CourseEventsQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create course event publisher", zap.Error(err))
	}

	// Generation client
	aiClient, err := generation.NewAIClient(generation.AIConfig{
		ClientType: cfg.AIClientType,
		BaseURL:    cfg.AIBaseURL,
		APIKey:     cfg.AIAPIKey,
		Model:      cfg.AIModel,
		Timeout:    cfg.AITimeout,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create AI client", zap.Error(err))
	}
	generator := generation.NewClient(aiClient, generation.Options{
		MockMode:    cfg.GenMockMode,
		DevFallback: cfg.GenDevFallback,
		Retry: generation.RetryPolicy{
			MaxAttempts: cfg.GenMaxAttempts,
			BaseDelay:   cfg.GenBaseRetryDelay,
			Multiplier:  cfg.GenBackoffMultiplier,
		},
		Model:       cfg.AIModel,
		TokenBudget: cfg.AIPromptTokenBudget,
	}, zapLogger)

	// Services and wizard sessions
	courseService := service.NewCourseService(courseRepo, draftRepo, eventPublisher, zapLogger)
	sessionManager := wizard.NewManager(wizard.SessionDeps{
		Generator:        generator,
		Drafts:           draftRepo,
		Courses:          courseService,
		Logger:           zapLogger,
		AutosaveInterval: cfg.AutosaveDebounce,
	}, wizard.ManagerOptions{
		SessionTTL:    cfg.SessionTTL,
		SweepInterval: cfg.SessionSweepInterval,
	}, zapLogger)

	builderHandler := handler.NewBuilderHandler(sessionManager, generator, draftRepo, courseService, cfg.PhaseDurationHints, zapLogger)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.EchoZapLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Owner-ID"},
	}))
	builderHandler.RegisterRoutes(e)

	go func() {
		zapLogger.Info("Course Builder listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutdown signal received, starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Close sessions first so their drafts get flushed before the pool goes.
	sessionManager.Shutdown(ctx)

	if err := e.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shut down HTTP server gracefully", zap.Error(err))
	}

	zapLogger.Info("Course Builder Service stopped")
}

// setupDatabase initializes the pgx connection pool.
func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbPool, nil
}

// runMigrations applies pending schema migrations on startup.
func runMigrations(cfg *config.Config) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// connectRabbitMQ dials RabbitMQ with a few retries; the broker may still
// be starting when this service comes up.
func connectRabbitMQ(url string, zapLogger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		zapLogger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		time.Sleep(retryDelay)
	}
	return nil, err
}
