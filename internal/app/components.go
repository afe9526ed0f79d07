package app

import (
	"github.com/kmjayadeep/baskit-sub000/internal/identity"
	pkgsync "github.com/kmjayadeep/baskit-sub000/internal/sync"
	"github.com/kmjayadeep/baskit-sub000/internal/sync/lifecycle"
	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Engine drives bidirectional synchronization
	Engine pkgsync.Engine

	// Lifecycle restarts sync across identity changes and resume events
	Lifecycle lifecycle.Controller

	// Identity holds the signed-in principal
	Identity *identity.MemoryProvider

	// Telemetry owns the OpenTelemetry providers
	Telemetry *telemetry.Telemetry
}
