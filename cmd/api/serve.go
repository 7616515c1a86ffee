package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohansroy/giterdone/internal/config"
	"github.com/rohansroy/giterdone/internal/infrastructure/awsconfig"
	"github.com/rohansroy/giterdone/internal/infrastructure/dynamo"
	jwtinfra "github.com/rohansroy/giterdone/internal/infrastructure/jwt"
	"github.com/rohansroy/giterdone/internal/infrastructure/memory"
	"github.com/rohansroy/giterdone/internal/infrastructure/sns"
	transporthttp "github.com/rohansroy/giterdone/internal/transport/http"
	"github.com/spf13/cobra"
)

var bootstrapOnServe bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		slog.SetDefault(newLogger(os.Stderr, cfg.AppEnv, cfg.LogLevel))
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&bootstrapOnServe, "bootstrap", false, "create missing DynamoDB tables before serving")
}

func serve(ctx context.Context, cfg *config.Config) error {
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	deps := &transporthttp.Deps{JWTProvider: jwtProvider}
	if err := wireStores(ctx, cfg, deps); err != nil {
		return err
	}

	router, err := transporthttp.NewRouter(cfg, deps)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
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

// wireStores fills the store and notifier dependencies for the configured backend.
func wireStores(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps) error {
	if cfg.StoreBackend == "memory" {
		slog.Warn("using in-memory stores, data is lost on restart")
		deps.UserRepo = memory.NewUserStore()
		deps.SessionRepo = memory.NewSessionStore()
		deps.ChallengeRepo = memory.NewChallengeStore()
		return nil
	}

	awsCfg, err := awsconfig.Load(ctx, cfg, "")
	if err != nil {
		return err
	}
	client := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	if bootstrapOnServe {
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	}
	deps.UserRepo = dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
	deps.SessionRepo = dynamo.NewSessionRepo(client, cfg.DynamoTables.Sessions)
	deps.ChallengeRepo = dynamo.NewChallengeRepo(client, cfg.DynamoTables.Challenges)

	if cfg.RecoveryTopicARN == "" {
		slog.Warn("RECOVERY_TOPIC_ARN not set, recovery links are not delivered")
		return nil
	}
	snsCfg, err := awsconfig.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return err
	}
	deps.Notifier = sns.NewRecoveryPublisher(sns.NewClient(snsCfg, cfg.AWSEndpointURL), cfg.RecoveryTopicARN)
	return nil
}
