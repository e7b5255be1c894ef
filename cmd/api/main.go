package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/petmatch/clinic-api/internal/config"
	"github.com/petmatch/clinic-api/internal/email"
	"github.com/petmatch/clinic-api/internal/handler"
	accountHandler "github.com/petmatch/clinic-api/internal/handler/account"
	inviteHandler "github.com/petmatch/clinic-api/internal/handler/invite"
	patientHandler "github.com/petmatch/clinic-api/internal/handler/patient"
	"github.com/petmatch/clinic-api/internal/handler/prometheus"
	"github.com/petmatch/clinic-api/internal/middleware"
	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository/postgres"
	"github.com/petmatch/clinic-api/internal/router"
	accountService "github.com/petmatch/clinic-api/internal/service/account"
	inviteService "github.com/petmatch/clinic-api/internal/service/invite"
	"github.com/petmatch/clinic-api/internal/service/notifier"
	patientService "github.com/petmatch/clinic-api/internal/service/patient"
	"github.com/petmatch/clinic-api/internal/service/reconcile"
	"github.com/petmatch/clinic-api/pkg/auth"
	"github.com/petmatch/clinic-api/pkg/logger"
	"github.com/petmatch/clinic-api/pkg/messaging"
	redisbroker "github.com/petmatch/clinic-api/pkg/messaging/redis"
	"github.com/petmatch/clinic-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		zl := log.Logger
		broker, err = redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer broker.Close()
	}

	// Repositories
	clinicRepo := postgres.NewClinicRepository(db)
	clientRepo := postgres.NewClientRecordRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	inviteRepo := postgres.NewInviteRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	petRepo := postgres.NewPetRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Services
	notifierSvc := notifier.NewService(notificationRepo, broker, appLogger)
	reconcileSvc := reconcile.NewService(petRepo, reconcile.Config{
		FallbackPetType:  model.PetType(cfg.Invite.FallbackPetType),
		DefaultAgeMonths: cfg.Invite.DefaultAgeMonths,
	}, appLogger)
	inviteSvc := inviteService.NewService(
		inviteRepo, patientRepo, clinicRepo, accountRepo, outboxRepo,
		notifierSvc, reconcileSvc,
		inviteService.Config{LinkBase: cfg.Invite.LinkBase, DownloadURL: cfg.Invite.DownloadURL},
		appLogger,
	)
	hasher := security.NewBcryptHasher(0)
	accountSvc := accountService.NewService(accountRepo, hasher, inviteSvc, appLogger)
	patientSvc := patientService.NewService(patientRepo, clientRepo, inviteSvc, appLogger)
	emailSvc := email.NewService(cfg.Email, appLogger)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	// HTTP layer
	metricsHandler := prometheus.New()
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		accountHandler.NewHandler(accountSvc, jwtSvc),
		inviteHandler.NewHandler(inviteSvc, accountSvc, notifierSvc, metricsHandler),
		patientHandler.NewHandler(patientSvc, emailSvc, appLogger),
		handler.NewHandler(),
		metricsHandler,
		router.Config{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(),
			Timeout:          middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout},
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
}
