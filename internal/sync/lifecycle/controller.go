// Package lifecycle connects the sync engine to identity changes and
// app resume events.
//
// The engine itself has no opinion about when to run. This controller
// owns that policy: sync runs exactly while a principal is signed in,
// restarts when the principal changes, and is re-established on resume
// after the process was backgrounded or a previous attempt failed.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/kmjayadeep/baskit-sub000/internal/identity"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
	pkgsync "github.com/kmjayadeep/baskit-sub000/internal/sync"
)

// Controller starts and stops the sync engine based on identity state
//
//go:generate mockgen -destination=mocks/mock_controller.go -package=mocks github.com/kmjayadeep/baskit-sub000/internal/sync/lifecycle Controller
type Controller interface {
	// Run blocks, reacting to identity changes until ctx is cancelled.
	// The engine is stopped before Run returns.
	Run(ctx context.Context) error

	// OnResume triggers a fresh sync start for the current principal,
	// unless establishment is already in progress or nobody is signed
	// in. This is the retry path after an error state.
	OnResume(ctx context.Context)
}

// defaultController is the default implementation of Controller
type defaultController struct {
	engine   pkgsync.Engine
	provider identity.Provider
}

// New creates a controller with injected dependencies
func New(engine pkgsync.Engine, provider identity.Provider) Controller {
	return &defaultController{
		engine:   engine,
		provider: provider,
	}
}

// Run blocks, reacting to identity changes until ctx is cancelled
func (c *defaultController) Run(ctx context.Context) error {
	slog.Info("Starting sync lifecycle controller")

	ch := c.provider.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Sync lifecycle controller stopping")
			return c.engine.Stop()
		case p, ok := <-ch:
			if !ok {
				return c.engine.Stop()
			}
			c.handlePrincipal(ctx, p)
		}
	}
}

// OnResume triggers a fresh sync start for the current principal
func (c *defaultController) OnResume(ctx context.Context) {
	if c.engine.State() == status.StateSyncing {
		// Establishment is already underway, do not stack another.
		return
	}

	p := c.provider.Current()
	if p.Anonymous() {
		return
	}

	slog.Info("Resuming sync", "principal", p.ID)
	if err := c.engine.Start(ctx, p); err != nil {
		slog.Error("Failed to resume sync", "principal", p.ID, "error", err)
	}
}

// handlePrincipal reacts to one identity change
func (c *defaultController) handlePrincipal(ctx context.Context, p identity.Principal) {
	if p.Anonymous() {
		slog.Info("Principal signed out, stopping sync")
		if err := c.engine.Stop(); err != nil {
			slog.Error("Failed to stop sync", "error", err)
		}
		return
	}

	slog.Info("Principal signed in, starting sync", "principal", p.ID)
	if err := c.engine.Start(ctx, p); err != nil {
		// No automatic retry. The next identity change or resume
		// event drives the next attempt.
		slog.Error("Failed to start sync", "principal", p.ID, "error", err)
	}
}
