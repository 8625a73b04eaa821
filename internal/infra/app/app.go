package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/arklim/account-auth-service/internal/core/port"
	"github.com/arklim/account-auth-service/internal/infra/config"
	"github.com/arklim/account-auth-service/internal/infra/database"
	kafkainfra "github.com/arklim/account-auth-service/internal/infra/kafka"
	"github.com/arklim/account-auth-service/internal/infra/logger"
	"github.com/arklim/account-auth-service/internal/infra/mail"
	redisinfra "github.com/arklim/account-auth-service/internal/infra/redis"
	"github.com/arklim/account-auth-service/internal/infra/security"
	"github.com/arklim/account-auth-service/internal/infra/telemetry"
	"github.com/arklim/account-auth-service/internal/repository/memory"
	postgresrepo "github.com/arklim/account-auth-service/internal/repository/postgres"
	redisrepo "github.com/arklim/account-auth-service/internal/repository/redis"
	"github.com/arklim/account-auth-service/internal/transport/http/middleware"
	"github.com/arklim/account-auth-service/internal/transport/http/routes"
	"github.com/arklim/account-auth-service/internal/usecase"
)

const defaultPruneInterval = time.Hour

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	ledger   *usecase.RevocationLedger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

type storage struct {
	users       port.UserRepository
	revocations port.RevocationStore
	pool        *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.pool = store.pool

	var cache port.RevocationCache
	if cfg.Revocation.CacheEnabled {
		if a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log); err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		cache = redisrepo.NewRevocationRepository(a.redis.Client(), cfg.Redis.RevocationPrefix)
	}

	tokens, err := security.NewJWTIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("init jwt issuer: %w", err)
	}

	composer, err := mail.NewComposer(cfg.App.FrontendURL, cfg.Mail.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("init email templates: %w", err)
	}
	mailer, err := newMailer(cfg.Mail, log)
	if err != nil {
		return nil, err
	}
	codes := security.NewCodeGenerator(cfg.Security.CodeTTL)
	notifier, err := usecase.NewNotifier(composer, mailer, codes.TTL())
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	authMetrics, err := telemetry.NewAuthMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	opts := []usecase.Option{
		usecase.WithLogger(log),
		usecase.WithEventPublisher(a.eventPublisher(cfg, log)),
		usecase.WithMetrics(authMetrics),
	}

	if a.ledger, err = usecase.NewRevocationLedger(store.revocations, cache, tokens.TTL(), opts...); err != nil {
		return nil, fmt.Errorf("init revocation ledger: %w", err)
	}

	deps := usecase.Dependencies{
		Users:    store.users,
		Hasher:   security.NewBcryptHasher(cfg.Security.BcryptCost),
		Policy:   security.DefaultPasswordValidator(),
		Tokens:   tokens,
		Codes:    codes,
		Ledger:   a.ledger,
		Notifier: notifier,
	}

	var services routes.ServiceSet
	if services.Auth, err = usecase.NewAuthService(deps, opts...); err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}
	if services.Passwords, err = usecase.NewPasswordService(deps, opts...); err != nil {
		return nil, fmt.Errorf("init password service: %w", err)
	}
	if services.Profiles, err = usecase.NewProfileService(deps, opts...); err != nil {
		return nil, fmt.Errorf("init profile service: %w", err)
	}

	routeDeps := routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Services: services,
		Metrics:  httpMetrics,
		Gatherer: registry,
	}
	if a.pool != nil {
		routeDeps.Database = a.pool
	}
	if a.redis != nil {
		routeDeps.Cache = a.redis
	}
	a.engine = routes.Register(routeDeps)

	return a, nil
}

func openStorage(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return storage{
			users:       memory.NewUserRepository(),
			revocations: memory.NewRevocationRepository(),
		}, nil
	case config.StorageDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return storage{}, fmt.Errorf("init postgres: %w", err)
		}
		if cfg.Postgres.MigrateOnStart {
			if err := database.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return storage{}, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		repos := postgresrepo.NewRepositories(pool)
		return storage{users: repos.Users, revocations: repos.Revocations, pool: pool}, nil
	default:
		return storage{}, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

func newMailer(cfg config.MailSettings, log *zap.Logger) (port.Mailer, error) {
	if cfg.Host == "" {
		log.Warn("mail host not configured, emails will only be logged")
		return mail.NewLogMailer(log), nil
	}
	mailer, err := mail.NewSMTPMailer(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return mailer, nil
}

func (a *Application) eventPublisher(cfg *config.AppConfig, log *zap.Logger) port.EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.close(shutdownCtx)
	}()

	warmed, err := a.ledger.Warm(ctx)
	if err != nil {
		a.logger.Warn("failed to warm revocation cache", zap.Error(err))
	} else {
		a.logger.Info("revocation cache warmed", zap.Int("entries", warmed))
	}

	pruneInterval := a.cfg.Revocation.PruneInterval
	if pruneInterval <= 0 {
		pruneInterval = defaultPruneInterval
	}
	go a.ledger.RunPruner(ctx, pruneInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("storage", a.cfg.Storage.Driver),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("auth API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
