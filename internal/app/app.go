package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "useraccounts/docs"
	"useraccounts/internal/config"
	"useraccounts/internal/handlers"
	"useraccounts/internal/kafka"
	"useraccounts/internal/logger"
	"useraccounts/internal/metrics"
	"useraccounts/internal/middleware"
	"useraccounts/internal/migrations"
	"useraccounts/internal/models"
	"useraccounts/internal/outbox"
	"useraccounts/internal/repositories"
	"useraccounts/internal/routes"
	"useraccounts/internal/services"
	"useraccounts/internal/telemetry"
)

// App держит собранные зависимости сервиса.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sql.DB
	store   repositories.Store
	reg     *prometheus.Registry
	metrics *metrics.Metrics

	authService  services.AuthService
	userService  services.UserService
	resetService services.PasswordResetService

	worker  *outbox.Worker
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: l}

	// === Store ===
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn(ctx, l, "using in-memory store, data is lost on restart")
		a.store = repositories.NewMemoryStore()
	default:
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ping db: %w", err)
		}
		if !cfg.Database.SkipMigrations {
			if err := migrations.Up(ctx, db); err != nil {
				_ = a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		a.db = db
		a.store = repositories.NewPostgresStore(db)
	}

	// === Metrics ===
	a.reg = metrics.NewRegistry()
	a.metrics = metrics.New(a.reg)

	// === Services ===
	hasher := services.NewBcryptHasher(cfg.Auth.BcryptCost)
	policy := services.PasswordPolicy{
		MinLength:         cfg.PasswordPolicy.MinLength,
		MaxLength:         cfg.PasswordPolicy.MaxLength,
		RequireUpper:      cfg.PasswordPolicy.RequireUpper,
		RequireLower:      cfg.PasswordPolicy.RequireLower,
		RequireDigit:      cfg.PasswordPolicy.RequireDigit,
		RequireSymbol:     cfg.PasswordPolicy.RequireSymbol,
		AllowNumeric:      cfg.PasswordPolicy.AllowNumeric,
		AllowCommon:       cfg.PasswordPolicy.AllowCommon,
		AllowEmailSimilar: cfg.PasswordPolicy.AllowEmailSimilar,
	}
	links := services.NewLinkSigner(cfg.Auth.LinkSecret, cfg.Auth.Issuer, cfg.Links.BaseURL, services.LinkTTLs{
		Activation:        cfg.Auth.ActivationTTL,
		PasswordReset:     cfg.Auth.PasswordResetTTL,
		EmailVerification: cfg.Auth.EmailVerificationTTL,
	})
	notifier := services.NewNotifier(cfg.Notifications.Topic)

	a.authService = services.NewAuthService(a.store, hasher, a.metrics, l)
	a.userService = services.NewUserService(a.store, hasher, policy, links, notifier, a.metrics, l)
	a.resetService = services.NewPasswordResetService(a.store, hasher, policy, links, notifier, a.metrics, l)

	// === Outbox ===
	dispatcher, err := a.newDispatcher()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.worker = outbox.NewWorker(a.store, dispatcher, l, a.metrics, outbox.Options{
		BatchSize:   cfg.Notifications.BatchSize,
		Interval:    cfg.Notifications.Interval,
		MaxAttempts: cfg.Notifications.MaxAttempts,
		Lease:       cfg.Notifications.Lease,
	})

	return a, nil
}

func (a *App) newDispatcher() (outbox.Dispatcher, error) {
	switch a.cfg.Notifications.Driver {
	case "smtp":
		mail := services.NewEmailService(
			a.cfg.Email.SMTPHost,
			a.cfg.Email.SMTPPort,
			a.cfg.Email.SMTPUser,
			a.cfg.Email.SMTPPassword,
			a.cfg.Email.FromEmail,
		)
		return outbox.NewMailDispatcher(mail), nil
	case "kafka":
		producer, err := kafka.NewProducer(a.cfg.Notifications.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		return outbox.NewKafkaDispatcher(producer), nil
	default:
		return outbox.NewLogDispatcher(a.logger), nil
	}
}

// Router собирает gin: middleware, swagger, /metrics и API.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(a.logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.Metrics(a.metrics))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg})))

	expose := a.cfg.Links.ExposeInResponse
	return routes.SetupRoutes(
		router,
		a.authService,
		handlers.NewAuthHandler(a.authService, a.logger),
		handlers.NewUserHandler(a.userService, expose, a.logger),
		handlers.NewPasswordHandler(a.resetService, expose, a.logger),
	)
}

// Serve runs the HTTP server and the outbox worker until ctx is cancelled.
func (a *App) Serve(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		a.worker.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, a.logger, "http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	logger.Info(context.WithoutCancel(ctx), a.logger, "shutting down")
	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer stop()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, fmt.Errorf("http shutdown: %w", shutdownErr))
	}

	// HTTP уже остановлен, теперь воркер
	cancel()
	<-workerDone
	return err
}

// CreateSuperuser creates an active staff+superuser account.
func (a *App) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	return a.userService.CreateSuperuser(ctx, models.RegisterRequest{Email: email, Password: password})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// bootstrap: .env, конфиг, логгер, трейсер
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, func(context.Context) error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using system envs")
	}

	cfg := config.LoadConfig()

	l, err := logger.New(logger.Config{Level: cfg.Log.Level, Env: cfg.Env})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Env:          cfg.Env,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		l.Fatal("error init tracer", zap.Error(err))
	}
	return cfg, l, shutdownTracer
}

func Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, shutdownTracer := bootstrap(ctx)
	defer func() { _ = l.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := New(ctx, cfg, l)
	if err != nil {
		l.Fatal("error building app", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			l.Error("error closing resources", zap.Error(err))
		}
	}()

	if err := a.Serve(ctx); err != nil {
		l.Error("server stopped with error", zap.Error(err))
	}

	if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
		l.Error("error closing telemetry", zap.Error(err))
	}
}

// CreateSuperuser is the entry point of the createsuperuser command.
func CreateSuperuser(email, password string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, shutdownTracer := bootstrap(ctx)
	defer func() { _ = l.Sync() }()
	defer func() { _ = shutdownTracer(context.WithoutCancel(ctx)) }()

	a, err := New(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.CreateSuperuser(ctx, email, password)
	if err != nil {
		return err
	}
	logger.Info(ctx, l, "superuser created", zap.String("user", u.String()))
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
