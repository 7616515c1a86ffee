package main

import (
	"log/slog"
	"os"

	"github.com/rohansroy/giterdone/internal/config"
	"github.com/rohansroy/giterdone/internal/infrastructure/awsconfig"
	"github.com/rohansroy/giterdone/internal/infrastructure/dynamo"
	"github.com/spf13/cobra"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the DynamoDB tables, indexes and TTL settings",
	Long: `bootstrap creates the users, sessions and auth_challenges tables if
they do not exist yet. Existing tables are left untouched, so it is safe to
run on every deploy.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		slog.SetDefault(newLogger(os.Stderr, cfg.AppEnv, cfg.LogLevel))

		awsCfg, err := awsconfig.Load(cmd.Context(), cfg, "")
		if err != nil {
			return err
		}
		dynamo.Bootstrap(cmd.Context(), dynamo.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.DynamoTables)
		slog.Info("bootstrap finished", "users", cfg.DynamoTables.Users, "sessions", cfg.DynamoTables.Sessions, "challenges", cfg.DynamoTables.Challenges)
		return nil
	},
}
