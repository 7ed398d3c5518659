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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain/account"
	"github.com/carebook/carebook/internal/domain/booking"
	"github.com/carebook/carebook/internal/domain/patient"
	"github.com/carebook/carebook/internal/domain/scheduling"
	"github.com/carebook/carebook/internal/platform/apperr"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/metrics"
	"github.com/carebook/carebook/internal/platform/middleware"
	"github.com/carebook/carebook/internal/platform/notification"
	"github.com/carebook/carebook/internal/platform/validate"
)

const (
	shutdownTimeout = 15 * time.Second
	bodyLimit       = "256K"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "carebook-server",
		Short:        "Appointment booking API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		TimeZone: cfg.TimeZone,
	})
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
}

// services is the wired domain layer shared by the server and the CLI.
type services struct {
	accounts   *account.Service
	scheduling *scheduling.Service
	patients   *patient.Service
	booking    *booking.Service
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, notifier booking.Notifier) *services {
	tx := db.NewTxRunner(pool)

	sched := scheduling.NewService(scheduling.NewDoctorRepoPG(pool), scheduling.NewSlotRepoPG(pool), tx, scheduling.Options{
		Location:   cfg.Location(),
		WindowDays: cfg.SlotWindowDays,
		DefaultFee: cfg.DefaultConsultationFee,
		Logger:     logger.With().Str("component", "scheduling").Logger(),
	})
	accounts := account.NewService(account.NewRepoPG(pool), tx, logger.With().Str("component", "account").Logger())

	// Booking reads patients through the repository-backed service, and the
	// patient service purges appointments through booking, so the patient
	// service is built last around a lookup that does not need the purger.
	patientRepo := patient.NewRepoPG(pool)
	lookup := patient.NewService(patientRepo, tx, nil, logger)
	book := booking.NewService(booking.NewRepoPG(pool), sched, lookup, tx, booking.Options{
		Recipients: accounts,
		Notifier:   notifier,
		Logger:     logger.With().Str("component", "booking").Logger(),
	})
	patients := patient.NewService(patientRepo, tx, book, logger.With().Str("component", "patient").Logger())

	return &services{accounts: accounts, scheduling: sched, patients: patients, booking: book}
}

func buildNotifier(cfg *config.Config, logger zerolog.Logger) (*notification.Dispatcher, func(), error) {
	var senders []notification.Sender
	cleanup := func() {}

	smtpCfg := notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
	if smtpCfg.Enabled() {
		senders = append(senders, notification.NewEmailSender(smtpCfg, notification.NewTemplateEngine()))
	} else {
		logger.Warn().Msg("SMTP_HOST not set, confirmations will be logged instead of mailed")
		senders = append(senders, notification.NewLogSender(logger))
	}

	if cfg.AMQPURL != "" {
		pub, err := notification.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect amqp: %w", err)
		}
		cleanup = func() {
			if err := pub.Close(); err != nil {
				logger.Warn().Err(err).Msg("close amqp publisher")
			}
		}
		senders = append(senders, pub)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing booking events")
	}

	return notification.NewDispatcher(logger.With().Str("component", "notification").Logger(), cfg.NotifyTimeout, senders...), cleanup, nil
}

// devActor is the caller assumed for unauthenticated requests in development
// mode: the DEV_USER_ID account when it exists, otherwise an administrator.
func devActor(ctx context.Context, cfg *config.Config, accounts *account.Service, logger zerolog.Logger) auth.Actor {
	id := cfg.DevUser()
	acct, err := accounts.Get(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", id.String()).Msg("development user not found, requests without a token act as admin")
		return auth.Actor{UserID: id, Role: auth.RoleAdmin, Staff: true}
	}
	return acct.Actor()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	dispatcher, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := buildServices(pool, cfg, logger, dispatcher)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/health", "/metrics"))

	e.GET("/health", db.HealthHandler(pool, func() db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	// Auth middleware
	var authn echo.MiddlewareFunc
	switch cfg.ResolvedAuthMode() {
	case "development":
		actor := devActor(ctx, cfg, svc.accounts, logger)
		logger.Warn().Str("user_id", actor.UserID.String()).Str("role", string(actor.Role)).
			Msg("development auth mode: requests without a token are accepted")
		authn = auth.DevAuthMiddleware(jwtConfig(cfg), actor)
	default:
		authn = auth.JWTMiddleware(jwtConfig(cfg))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limit := middleware.RateLimit(rateLimitCfg)

	// API groups
	apiV1 := e.Group("/api/v1")
	public := apiV1.Group("", limit)
	protected := apiV1.Group("", authn, auth.RequireAuth(), limit)
	admin := protected.Group("/admin", auth.RequireRole(auth.RoleAdmin))

	scheduling.NewHandler(svc.scheduling).RegisterRoutes(public, protected)
	patient.NewHandler(svc.patients).RegisterRoutes(protected)
	booking.NewHandler(svc.booking).RegisterRoutes(protected, admin)
	account.NewHandler(svc.accounts).RegisterRoutes(protected, admin)

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		// Let in-flight confirmations finish before the AMQP channel closes.
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("notifications still pending at shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
