// Package app provides application lifecycle management for the sync daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kmjayadeep/baskit-sub000/internal/config"
)

// SyncApp encapsulates all components needed to run the sync daemon.
// It provides lifecycle management and graceful shutdown capabilities
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the application components (HTTP server and the sync
// lifecycle controller). This method blocks until the HTTP server
// stops or encounters an error
func (app *SyncApp) Start() error {
	// React to identity changes in the background. With a configured
	// principal the controller starts sync right away from the
	// subscription seed.
	go func() {
		if err := app.components.Lifecycle.Run(app.ctx); err != nil {
			slog.Error("Sync lifecycle controller failed", "error", err)
		}
	}()

	// Start HTTP server (blocks until stopped)
	slog.Info("Daemon listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the sync engine and then shuts down the HTTP server
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down daemon...")

	// Stop the sync engine first so no write is in flight when the
	// stores go away
	if err := app.components.Engine.Stop(); err != nil {
		slog.Error("Failed to stop sync engine", "error", err)
	}

	// Cancel the application context. This stops the lifecycle
	// controller and releases the storage resources.
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	// Graceful HTTP server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Flush telemetry after the last request finished
	if app.components.Telemetry != nil {
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}

	slog.Info("Daemon shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
