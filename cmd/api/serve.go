package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-api-otp/internal/application/notification"
	"github.com/go-api-otp/internal/config"
	"github.com/go-api-otp/internal/domain"
	"github.com/go-api-otp/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-otp/internal/infrastructure/jwt"
	"github.com/go-api-otp/internal/infrastructure/mongo"
	"github.com/go-api-otp/internal/infrastructure/postgres"
	s3infra "github.com/go-api-otp/internal/infrastructure/s3"
	"github.com/go-api-otp/internal/infrastructure/smtp"
	"github.com/go-api-otp/internal/infrastructure/sns"
	"github.com/go-api-otp/internal/infrastructure/sqlite"
	"github.com/go-api-otp/internal/logging"
	"github.com/go-api-otp/internal/observability"
	transporthttp "github.com/go-api-otp/internal/transport/http"
	"github.com/spf13/cobra"
)

const serviceName = "otp-api"

// autoMigrate applies pending postgres migrations before serving.
var autoMigrate bool

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply postgres migrations on startup (STORE_DRIVER=postgres only)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(serviceName, cfg.AppEnv, cfg.LogFormat, cfg.LogLevel, nil)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("close store", "error", err)
		}
	}()

	mailer, err := newMailer(cfg)
	if err != nil {
		return err
	}
	templates, err := loadTemplates(ctx, cfg)
	if err != nil {
		return err
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	router := transporthttp.NewRouter(&transporthttp.Deps{
		Store:          store,
		Mailer:         mailer,
		JWTProvider:    jwtProvider,
		Templates:      templates,
		Metrics:        metrics,
		OtpTTL:         cfg.OTPTTL,
		Sender:         cfg.MailFromName,
		StrictDelivery: cfg.MailStrictDelivery,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "store", cfg.StoreDriver, "mail", cfg.MailDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (domain.CredentialStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables, cfg.DynamoOtpTTL)
		return dynamo.NewStore(client, cfg.DynamoTables), nil
	case config.StorePostgres:
		if autoMigrate {
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				return nil, err
			}
		}
		s, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newMailer(cfg *config.Config) (notification.Mailer, error) {
	switch cfg.MailDriver {
	case config.MailSNS:
		m, err := sns.NewTopicMailer(cfg)
		if err != nil {
			return nil, fmt.Errorf("sns mailer: %w", err)
		}
		return m, nil
	default:
		return smtp.NewMailer(cfg), nil
	}
}

// loadTemplates fetches the email template from S3 when one is configured.
// A nil result selects the built-in template.
func loadTemplates(ctx context.Context, cfg *config.Config) (*notification.Templates, error) {
	if cfg.MailTemplateBucket == "" {
		return nil, nil
	}
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	src, err := s3infra.NewStore(client, cfg.MailTemplateBucket).ReadText(ctx, cfg.MailTemplateKey)
	if err != nil {
		return nil, fmt.Errorf("read mail template: %w", err)
	}
	t, err := notification.ParseTemplates(src)
	if err != nil {
		return nil, fmt.Errorf("parse mail template: %w", err)
	}
	slog.Info("using mail template from s3", "bucket", cfg.MailTemplateBucket, "key", cfg.MailTemplateKey)
	return t, nil
}
