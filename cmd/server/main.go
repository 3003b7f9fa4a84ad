package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/application"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/config"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/events"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/auth"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/health"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/kafka"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/logger"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/middleware"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/repository"
)

const serviceName = "service-pet-manager"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := database.RunMigrations(dbConfig.DatabaseURL(), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTTL,
		cfg.JWTConfig.RefreshTTL,
	)

	// Kafka is optional; without brokers events are dropped and token
	// revocations stay local to this instance.
	var publisher events.Publisher = events.Discard{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaConfig.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = producer.Close() }()
		publisher = events.NewKafkaPublisher(producer, log)
	} else {
		log.Warn("no kafka brokers configured, events disabled")
	}

	// Initialize repositories and services
	userRepo := repository.NewGormUserRepository(db)
	petRepo := repository.NewGormPetRepository(db)

	authService := application.NewAuthService(userRepo, jwtManager, publisher, application.AuthConfig{
		SignInRate:  cfg.SignInRate,
		SignInBurst: cfg.SignInBurst,
	}, log)
	petService := application.NewPetService(petRepo, publisher, log)

	if len(cfg.KafkaConfig.Brokers) > 0 {
		// A unique group per instance so every replica sees every revocation.
		hostname, _ := os.Hostname()
		groupID := cfg.KafkaConfig.GroupPrefix + "pet-manager-" + hostname
		authConsumer := events.NewAuthEventConsumer(cfg.KafkaConfig.Brokers, groupID, authService, log)
		defer func() { _ = authConsumer.Close() }()

		go func() {
			log.Info("starting auth event consumer", zap.String("group", groupID))
			if err := authConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("auth event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	health.NewHandler(db, serviceName).RegisterRoutes(router)
	handler.NewAuthHandler(authService).RegisterRoutes(router)
	handler.NewPetHandler(petService).RegisterRoutes(router, authService)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
