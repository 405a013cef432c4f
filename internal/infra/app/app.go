package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/infra/config"
	"github.com/khepriforge/auth-service/internal/infra/database"
	kafkainfra "github.com/khepriforge/auth-service/internal/infra/kafka"
	"github.com/khepriforge/auth-service/internal/infra/logger"
	redisinfra "github.com/khepriforge/auth-service/internal/infra/redis"
	"github.com/khepriforge/auth-service/internal/infra/security"
	"github.com/khepriforge/auth-service/internal/infra/telemetry"
	postgresrepo "github.com/khepriforge/auth-service/internal/repository/postgres"
	redisrepo "github.com/khepriforge/auth-service/internal/repository/redis"
	"github.com/khepriforge/auth-service/internal/transport/http/middleware"
	"github.com/khepriforge/auth-service/internal/transport/http/routes"
	"github.com/khepriforge/auth-service/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	tracer   *telemetry.TracerProvider
	producer *kafkainfra.Producer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("failed to init tracer provider, continuing without tracing", zap.Error(err))
			tracer = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	sessions, err := security.NewSessionIssuer(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Issuer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init session issuer: %w", err)
	}

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	accountRepo := postgresrepo.NewAccountRepository(pool)
	auditRepo := postgresrepo.NewAuditRepository(pool)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	throttleStore := redisrepo.NewLoginThrottleStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "khepri:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	ipLimiter := middleware.NewRateLimiter(throttleStore, log)

	hasher := security.NewPasswordHasher(cfg.Bcrypt.Cost)
	validator := security.DefaultPasswordValidator()
	totpManager := security.NewTOTPManager(cfg.TOTP.Issuer)

	auditRecorder := usecase.NewAuditRecorder(auditRepo)
	lockoutLimiter := usecase.NewRateLimiter(accountRepo, eventPublisher, log)
	authService := usecase.NewAuthService(accountRepo, lockoutLimiter, auditRecorder, hasher, eventPublisher, log)
	passwordService := usecase.NewPasswordService(accountRepo, auditRecorder, hasher, validator, eventPublisher, log)
	twoFactorService := usecase.NewTwoFactorService(accountRepo, auditRecorder, totpManager, eventPublisher, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: ipLimiter,
		Sessions:    sessions,
		Telemetry:   provider,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:      authService,
			Passwords: passwordService,
			TwoFactor: twoFactorService,
			Audit:     auditRecorder,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		tracer:   tracer,
		producer: producer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if a.cfg.Telemetry.MetricsPort > 0 && a.cfg.Telemetry.MetricsPort != a.cfg.App.Port {
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.Telemetry.MetricsPort),
			Handler:           telemetry.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.logger.Info("starting metrics endpoint", zap.String("address", metricsSrv.Addr))
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return err
	}
}
