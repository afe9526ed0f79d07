// Package config provides configuration loading and management for the sync daemon.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
)

const (
	// DriverMemory keeps data in process memory and loses it on restart.
	// Intended for tests and demos.
	DriverMemory = "memory"

	// DriverSQLite persists the local replica in a SQLite database file
	DriverSQLite = "sqlite"

	// DriverPostgres stores the shared replica in a PostgreSQL database
	DriverPostgres = "postgres"
)

const (
	// EnvPrefix is the prefix for environment variables read by the daemon,
	// e.g. BASKIT_LOG_LEVEL or BASKIT_DATABASE_PASSWORD.
	EnvPrefix = "BASKIT"

	// DefaultAddress is the API listen address used when api.address is not set
	DefaultAddress = ":8080"

	// DefaultStatusFile is where the sync status document is persisted
	// when sync.statusFile is not set
	DefaultStatusFile = "./data/status.json"

	// DefaultPollInterval is the remote change detection cadence used when
	// remoteStore.pollInterval is not set
	DefaultPollInterval = 10 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Principal optionally fixes the identity the daemon syncs as.
	// When omitted the daemon starts anonymous and waits for a login
	// through the API.
	Principal *PrincipalConfig `yaml:"principal,omitempty"`

	// LocalStore configures the device-local replica
	LocalStore *LocalStoreConfig `yaml:"localStore,omitempty"`

	// RemoteStore configures the shared replica
	RemoteStore *RemoteStoreConfig `yaml:"remoteStore,omitempty"`

	// Sync configures the sync engine
	Sync *SyncConfig `yaml:"sync,omitempty"`

	// API configures the HTTP control surface
	API *APIConfig `yaml:"api,omitempty"`

	// Telemetry configures OpenTelemetry tracing and metrics export
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// PrincipalConfig fixes the syncing identity for headless deployments
type PrincipalConfig struct {
	// ID is the principal identifier lists are shared and filtered by
	ID string `yaml:"id"`
}

// LocalStoreConfig defines the device-local replica settings.
// The driver is inferred from which block is present: a sqlite block
// selects the SQLite driver, otherwise the store is kept in memory.
type LocalStoreConfig struct {
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
}

// SQLiteConfig defines SQLite driver settings
type SQLiteConfig struct {
	// Path is the path to the database file. Parent directories are
	// created on first open.
	Path string `yaml:"path"`

	// WatchExternal enables filesystem watching so writes made to the
	// database file by other processes surface as local changes
	WatchExternal bool `yaml:"watchExternal,omitempty"`
}

// RemoteStoreConfig defines the shared replica settings.
// The driver is inferred from which block is present: a postgres block
// selects the PostgreSQL driver, otherwise the store is kept in memory.
type RemoteStoreConfig struct {
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`

	// PollInterval is how often the remote store is polled for changes
	// (e.g., "10s", "1m"). Defaults to 10s.
	PollInterval string `yaml:"pollInterval,omitempty"`
}

// PostgresConfig defines PostgreSQL connection settings
type PostgresConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum size of the connection pool
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// MinConns is the minimum number of connections the pool keeps open
	MinConns int32 `yaml:"minConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// SyncConfig defines sync engine settings
type SyncConfig struct {
	// StatusFile is where the sync status document is persisted across restarts
	StatusFile string `yaml:"statusFile,omitempty"`
}

// APIConfig defines the HTTP control surface settings
type APIConfig struct {
	// Address is the listen address (e.g., ":8080")
	Address string `yaml:"address,omitempty"`

	// Auth enables bearer token authentication when present
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig defines bearer token authentication settings
type AuthConfig struct {
	// SecretFile is the path to a file containing the token signing secret
	SecretFile string `yaml:"secretFile,omitempty"`

	// PublicPaths lists additional path prefixes served without a token,
	// on top of the built-in health and version endpoints
	PublicPaths []string `yaml:"publicPaths,omitempty"`
}

// GetDriver returns the inferred local store driver based on which block is present
func (l *LocalStoreConfig) GetDriver() string {
	if l == nil || l.SQLite == nil {
		return DriverMemory
	}
	return DriverSQLite
}

// GetDriver returns the inferred remote store driver based on which block is present
func (r *RemoteStoreConfig) GetDriver() string {
	if r == nil || r.Postgres == nil {
		return DriverMemory
	}
	return DriverPostgres
}

// GetPollInterval returns the remote polling interval, using the default
// when not specified. Call validate first; an unparseable value falls back
// to the default here.
func (r *RemoteStoreConfig) GetPollInterval() time.Duration {
	if r == nil || r.PollInterval == "" {
		return DefaultPollInterval
	}
	interval, err := time.ParseDuration(r.PollInterval)
	if err != nil {
		return DefaultPollInterval
	}
	return interval
}

// GetStatusFile returns the status file path, using the default if not specified
func (s *SyncConfig) GetStatusFile() string {
	if s == nil || s.StatusFile == "" {
		return DefaultStatusFile
	}
	return s.StatusFile
}

// GetAddress returns the API listen address, using the default if not specified
func (a *APIConfig) GetAddress() string {
	if a == nil || a.Address == "" {
		return DefaultAddress
	}
	return a.Address
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from BASKIT_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (p *PostgresConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if p.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(p.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", p.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("BASKIT_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or BASKIT_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (p *PostgresConfig) GetConnectionString() (string, error) {
	password, err := p.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		escapedPassword,
		p.Host,
		p.Port,
		p.Database,
		sslMode,
	)

	return connString, nil
}

// GetSecret returns the token signing secret using the following priority:
// 1. Read from SecretFile if specified
// 2. Read from BASKIT_API_SECRET environment variable
//
// The secret from file will have leading/trailing whitespace trimmed.
func (a *AuthConfig) GetSecret() (string, error) {
	if a.SecretFile != "" {
		cleanPath := filepath.Clean(a.SecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from file %s: %w", a.SecretFile, err)
		}

		secret := strings.TrimSpace(string(data))
		return secret, nil
	}

	if envSecret := os.Getenv("BASKIT_API_SECRET"); envSecret != "" {
		return envSecret, nil
	}

	return "", fmt.Errorf(
		"no API secret configured: set secretFile or BASKIT_API_SECRET environment variable",
	)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Principal != nil && c.Principal.ID == "" {
		return fmt.Errorf("principal: id is required")
	}

	if err := validateLocalStore(c.LocalStore); err != nil {
		return err
	}

	if err := validateRemoteStore(c.RemoteStore); err != nil {
		return err
	}

	if err := validateAPI(c.API); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// validateLocalStore validates the local store configuration
func validateLocalStore(local *LocalStoreConfig) error {
	if local == nil || local.SQLite == nil {
		return nil
	}

	if local.SQLite.Path == "" {
		return fmt.Errorf("localStore: sqlite.path is required")
	}

	return nil
}

// validateRemoteStore validates the remote store configuration
func validateRemoteStore(remote *RemoteStoreConfig) error {
	if remote == nil {
		return nil
	}

	if remote.PollInterval != "" {
		if _, err := time.ParseDuration(remote.PollInterval); err != nil {
			return fmt.Errorf("remoteStore: pollInterval must be a valid duration (e.g., '10s', '1m'): %w", err)
		}
	}

	if remote.Postgres == nil {
		return nil
	}

	return validatePostgres(remote.Postgres)
}

// validatePostgres validates PostgreSQL connection settings
func validatePostgres(pg *PostgresConfig) error {
	if pg.Host == "" {
		return fmt.Errorf("remoteStore: postgres.host is required")
	}
	if pg.Port <= 0 || pg.Port > 65535 {
		return fmt.Errorf("remoteStore: postgres.port must be between 1 and 65535, got %d", pg.Port)
	}
	if pg.User == "" {
		return fmt.Errorf("remoteStore: postgres.user is required")
	}
	if pg.Database == "" {
		return fmt.Errorf("remoteStore: postgres.database is required")
	}

	if pg.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(pg.ConnMaxLifetime); err != nil {
			return fmt.Errorf("remoteStore: postgres.connMaxLifetime must be a valid duration (e.g., '1h', '30m'): %w", err)
		}
	}

	return nil
}

// validateAPI validates the HTTP control surface configuration
func validateAPI(api *APIConfig) error {
	if api == nil {
		return nil
	}

	if api.Address != "" && !strings.Contains(api.Address, ":") {
		return fmt.Errorf("api: address must be of the form host:port, got %s", api.Address)
	}

	return nil
}
