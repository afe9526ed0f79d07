// Package storage builds the configured store drivers. It owns the
// resources behind them (the SQLite handle, the PostgreSQL pool) so
// the application can release everything in one place on shutdown.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kmjayadeep/baskit-sub000/internal/config"
	"github.com/kmjayadeep/baskit-sub000/internal/db"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
	"github.com/kmjayadeep/baskit-sub000/internal/store/memory"
	"github.com/kmjayadeep/baskit-sub000/internal/store/postgres"
	"github.com/kmjayadeep/baskit-sub000/internal/store/sqlite"
)

// Factory creates the local and remote stores a daemon instance syncs
// between. The two drivers are selected independently from config:
// the local side runs on memory or sqlite, the remote side on memory
// or postgres.
type Factory struct {
	local  store.LocalStore
	remote store.RemoteStore

	sqliteStore *sqlite.Store
	conn        *db.Connection
}

// NewFactory builds both stores from the configuration. On error no
// resources are left open.
func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	f := &Factory{}

	if err := f.buildLocal(cfg); err != nil {
		return nil, err
	}
	if err := f.buildRemote(ctx, cfg); err != nil {
		f.Cleanup()
		return nil, err
	}
	return f, nil
}

// LocalStore returns the on-device store.
func (f *Factory) LocalStore() store.LocalStore {
	return f.local
}

// RemoteStore returns the shared store.
func (f *Factory) RemoteStore() store.RemoteStore {
	return f.remote
}

// Cleanup releases the resources behind the stores. It is safe to call
// more than once.
func (f *Factory) Cleanup() {
	if f.sqliteStore != nil {
		if err := f.sqliteStore.Close(); err != nil {
			slog.Error("Failed to close local database", "error", err)
		}
		f.sqliteStore = nil
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *Factory) buildLocal(cfg *config.Config) error {
	switch driver := cfg.LocalStore.GetDriver(); driver {
	case config.DriverMemory:
		slog.Info("Using in-memory local store")
		f.local = memory.NewLocalStore()
		return nil

	case config.DriverSQLite:
		sqliteCfg := cfg.LocalStore.SQLite
		var opts []sqlite.Option
		if sqliteCfg.WatchExternal {
			opts = append(opts, sqlite.WithExternalWatch())
		}
		s, err := sqlite.Open(sqliteCfg.Path, opts...)
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		f.sqliteStore = s
		f.local = s
		return nil

	default:
		return fmt.Errorf("unknown local store driver: %s", driver)
	}
}

func (f *Factory) buildRemote(ctx context.Context, cfg *config.Config) error {
	switch driver := cfg.RemoteStore.GetDriver(); driver {
	case config.DriverMemory:
		slog.Info("Using in-memory remote store")
		f.remote = memory.NewRemoteStore()
		return nil

	case config.DriverPostgres:
		conn, err := db.NewConnection(ctx, cfg.RemoteStore.Postgres)
		if err != nil {
			return fmt.Errorf("connect remote store: %w", err)
		}
		f.conn = conn
		f.remote = postgres.New(conn,
			postgres.WithPollInterval(cfg.RemoteStore.GetPollInterval()))
		return nil

	default:
		return fmt.Errorf("unknown remote store driver: %s", driver)
	}
}
