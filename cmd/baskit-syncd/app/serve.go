package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncapp "github.com/kmjayadeep/baskit-sub000/internal/app"
	"github.com/kmjayadeep/baskit-sub000/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync daemon",
	Long: `Start the sync daemon: the REST API for reading and mutating lists,
and the background engine that keeps the local and remote replicas converged.

The daemon requires a configuration file (--config) that specifies:
- Local store driver (memory or sqlite) and remote store driver (memory or postgres)
- Signed-in principal, poll interval and status file location
- All other operational settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

// defaultGracefulTimeout leaves in-flight requests and the final status
// write enough time to complete before the process exits.
const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides api.address from config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	// Mark config as required
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"localStore", cfg.LocalStore.GetDriver(),
		"remoteStore", cfg.RemoteStore.GetDriver())

	opts := []syncapp.SyncAppOptions{syncapp.WithConfig(cfg)}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, syncapp.WithAddress(address))
	}

	daemon, err := syncapp.NewSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build sync daemon: %w", err)
	}

	// Start daemon in goroutine so we can wait on signals
	errCh := make(chan error, 1)
	go func() {
		errCh <- daemon.Start()
	}()

	// Wait for interrupt signal to gracefully shut down the daemon
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("sync daemon failed: %w", err)
		}
		return nil
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	return daemon.Stop(defaultGracefulTimeout)
}
