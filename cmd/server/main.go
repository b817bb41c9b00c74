package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/technirvor/storefront/internal/adapter/storage"
	"github.com/technirvor/storefront/internal/config"
	"github.com/technirvor/storefront/internal/core/service"
	"github.com/technirvor/storefront/internal/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "Tech Nirvor storefront API server",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.OpenMySQL(cmd.Context(), cfg.MySQL.DSN, 2, 1, time.Minute)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.NewMySQLAdapter(db).Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("schema up to date")
		return nil
	},
}

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := storage.OpenMySQL(ctx, cfg.MySQL.DSN, 2, 1, time.Minute)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := storage.NewMySQLAdapter(db)
		auth := service.NewAuthService(repo, nil, service.AuthConfig{Secret: []byte(cfg.Auth.JWTSecret)}, logger)
		if adminPassword == "" {
			adminPassword = os.Getenv("TN_ADMIN_PASSWORD")
		}
		user, err := auth.CreateAdmin(ctx, service.RegisterInput{Name: adminName, Email: adminEmail, Password: adminPassword})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		logger.Info("admin created", zap.String("id", user.ID), zap.String("email", user.Email))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "storefront.yaml", "path to the YAML config file")

	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "password (or TN_ADMIN_PASSWORD)")
	_ = createAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
