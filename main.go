package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/producttracker/config"
	"sjsage522/producttracker/internal/gateway"
	"sjsage522/producttracker/internal/store"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/services/kvstore"
	"sjsage522/producttracker/services/publisher"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "producttracker",
		Short: "Product history tracker",
		Long: `producttracker records the products you look at while browsing.

It attaches to a running Chrome, extracts product details from the pages
you visit, and keeps a deduplicated, searchable history with retention,
import and export.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd(),
		watchCmd(),
		extractCmd(),
		listCmd(),
		searchCmd(),
		sitesCmd(),
		deleteCmd(),
		clearCmd(),
		cleanupCmd(),
		usageCmd(),
		settingsCmd(),
		exportCmd(),
		importCmd(),
	)
	return rootCmd
}

// setup loads the environment, logger and configuration for every command
func setup(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine
	_ = godotenv.Load()

	if verbose {
		os.Setenv("LOG_LEVEL", "debug")
	}
	logger.InitWithWriter(os.Stderr)

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if loaded.IsProduction() {
		logger.InitJSON(os.Stderr)
	}
	cfg = loaded
	return nil
}

// Services holds all the initialized services
type Services struct {
	KV        kvstore.Store
	Settings  *store.SettingsStore
	Products  *store.ProductStore
	Publisher publisher.Publisher
	Gateway   *gateway.Gateway
}

// Cleanup closes all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "failed to close publisher")
		}
	}
	if s.KV != nil {
		if err := s.KV.Close(); err != nil {
			logger.LogError("kvstore", err, "failed to close store")
		}
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	kv, err := kvstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	services.KV = kv
	logger.Default.Debug().Str("backend", cfg.StoreBackend).Msg("Opened store")

	services.Settings = store.NewSettingsStore(kv)
	services.Products = store.NewProductStore(kv, services.Settings, store.WithQuota(cfg.StorageQuotaBytes))

	if cfg.PublishEvents {
		services.Publisher = publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamMaxLength,
		)
		logger.Default.Info().
			Str("addr", cfg.RedisAddr).
			Int("db", cfg.RedisDB).
			Str("stream", cfg.RedisStream).
			Msg("Publishing events to Redis")
	}

	services.Gateway = gateway.New(services.Products, services.Publisher)
	return services, nil
}

// withServices runs fn with initialized services and closes them afterwards
func withServices(ctx context.Context, fn func(*Services) error) error {
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()
	return fn(services)
}
