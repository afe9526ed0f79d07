package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmjayadeep/baskit-sub000/internal/auth"
	"github.com/kmjayadeep/baskit-sub000/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token [principal]",
	Short: "Mint a bearer token for the REST API",
	Long: `Mint a signed bearer token for the given principal, using the signing
secret from the configuration file. Useful for handing a token to curl
or to a device that talks to a daemon with api.auth enabled.

The token is printed to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "How long the token stays valid")

	if err := tokenCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	principal := args[0]
	if principal == "" {
		return fmt.Errorf("principal cannot be empty")
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return fmt.Errorf("failed to get ttl flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.API == nil || cfg.API.Auth == nil {
		return fmt.Errorf("api.auth is not configured, the daemon accepts unauthenticated requests")
	}

	secret, err := cfg.API.Auth.GetSecret()
	if err != nil {
		return fmt.Errorf("failed to resolve signing secret: %w", err)
	}

	token, err := auth.Mint(principal, ttl, []byte(secret))
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
