package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/kmjayadeep/baskit-sub000/internal/identity"
	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
	"github.com/kmjayadeep/baskit-sub000/internal/telemetry"
)

// Direction labels used in logs and metrics
const (
	directionPush = "push"
	directionPull = "pull"
)

// Engine drives bidirectional synchronization between the local and
// remote stores for a single signed-in principal
//
//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/kmjayadeep/baskit-sub000/internal/sync Engine
type Engine interface {
	// Start establishes both sync directions for the given principal.
	// Calling Start while already synced tears down the previous
	// subscriptions and establishes fresh ones. Calling Start while
	// establishment is in progress is a no-op. Starting for the
	// anonymous principal fails without changing state.
	Start(ctx context.Context, principal identity.Principal) error

	// Stop cancels both subscriptions and forces the idle state.
	// Safe to call multiple times or when never started.
	Stop() error

	// State returns the current engine state
	State() status.State

	// LastError returns the failure behind the most recent error
	// state, or nil
	LastError() error
}

// run holds the lifecycle handles of one established sync attempt
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// defaultEngine is the default implementation of Engine
type defaultEngine struct {
	local  store.LocalStore
	remote store.RemoteStore

	metrics       *telemetry.SyncMetrics
	tracer        trace.Tracer
	statusSvc     status.Persistence
	onStateChange func(status.State)

	mu           sync.Mutex
	state        status.State
	lastErr      error
	principal    identity.Principal
	current      *run
	lastSyncedAt *time.Time
	listCount    int
}

// Option is a function that configures the engine
type Option func(*defaultEngine)

// WithSyncMetrics sets the sync metrics for the engine
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(e *defaultEngine) {
		e.metrics = metrics
	}
}

// WithTracer sets the tracer used to trace establishment and snapshot
// processing
func WithTracer(tracer trace.Tracer) Option {
	return func(e *defaultEngine) {
		e.tracer = tracer
	}
}

// WithStatusPersistence sets the persistence used to record state
// transitions across process restarts
func WithStatusPersistence(svc status.Persistence) Option {
	return func(e *defaultEngine) {
		e.statusSvc = svc
	}
}

// WithOnStateChange registers a callback invoked after every state
// transition. The callback runs outside the engine's lock.
func WithOnStateChange(fn func(status.State)) Option {
	return func(e *defaultEngine) {
		e.onStateChange = fn
	}
}

// New creates a new engine with injected store dependencies
func New(local store.LocalStore, remote store.RemoteStore, opts ...Option) Engine {
	e := &defaultEngine{
		local:  local,
		remote: remote,
		state:  status.StateIdle,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start establishes both sync directions for the given principal
func (e *defaultEngine) Start(ctx context.Context, principal identity.Principal) error {
	e.mu.Lock()
	if e.state == status.StateSyncing {
		// Establishment already in progress
		e.mu.Unlock()
		return nil
	}
	if principal.Anonymous() {
		e.mu.Unlock()
		return &Error{
			Message: "sync requires a signed-in principal",
			Reason:  ReasonAnonymousPrincipal,
		}
	}
	prev := e.current
	e.current = nil
	e.principal = principal
	e.state = status.StateSyncing
	doc := e.documentLocked()
	cb := e.onStateChange
	e.mu.Unlock()

	e.announce(status.StateSyncing, doc, cb)

	// Tear down a previous run before establishing fresh subscriptions
	// so the two never overlap.
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	slog.Info("Starting sync", "principal", principal.ID)

	// The span covers establishment only. It must not propagate into
	// the run context, the loops outlive this call.
	_, span := telemetry.StartSpan(ctx, e.tracer, "sync.establish",
		trace.WithAttributes(telemetry.AttrPrincipal.String(principal.ID)))
	defer span.End()

	// The subscriptions outlive the caller's context. Cancellation is
	// owned by Stop or by a later Start.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	remoteCh, err := e.remote.WatchAccessible(runCtx, principal.ID)
	if err != nil {
		cancel()
		telemetry.RecordError(span, err)
		return e.failEstablish(&Error{
			Err:     err,
			Message: fmt.Sprintf("failed to subscribe to remote changes: %v", err),
			Reason:  ReasonRemoteSubscribe,
		})
	}

	localCh, err := e.local.WatchAll(runCtx)
	if err != nil {
		cancel()
		telemetry.RecordError(span, err)
		return e.failEstablish(&Error{
			Err:     err,
			Message: fmt.Sprintf("failed to subscribe to local changes: %v", err),
			Reason:  ReasonLocalSubscribe,
		})
	}

	r := &run{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.current = r
	e.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.pullLoop(runCtx, r, remoteCh)
	}()
	go func() {
		defer wg.Done()
		e.pushLoop(runCtx, r, localCh)
	}()
	go func() {
		wg.Wait()
		close(r.done)
	}()

	e.mu.Lock()
	// A loop may have already failed between spawn and here. Only
	// promote to synced if this run is still establishing.
	if e.current == r && e.state == status.StateSyncing {
		now := time.Now()
		e.state = status.StateSynced
		e.lastErr = nil
		e.lastSyncedAt = &now
		doc = e.documentLocked()
		cb = e.onStateChange
		e.mu.Unlock()
		e.announce(status.StateSynced, doc, cb)
		slog.Info("Sync established", "principal", principal.ID)
		return nil
	}
	e.mu.Unlock()

	return e.LastError()
}

// Stop cancels both subscriptions and forces the idle state
func (e *defaultEngine) Stop() error {
	e.mu.Lock()
	r := e.current
	e.current = nil
	alreadyIdle := e.state == status.StateIdle
	e.mu.Unlock()

	if r != nil {
		slog.Info("Stopping sync")
		r.cancel()
		<-r.done
	}

	if alreadyIdle && r == nil {
		return nil
	}

	e.mu.Lock()
	e.state = status.StateIdle
	doc := e.documentLocked()
	cb := e.onStateChange
	e.mu.Unlock()

	e.announce(status.StateIdle, doc, cb)
	return nil
}

// State returns the current engine state
func (e *defaultEngine) State() status.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the failure behind the most recent error state
func (e *defaultEngine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// failEstablish records an establishment failure and returns it
func (e *defaultEngine) failEstablish(serr *Error) error {
	slog.Error("Sync establishment failed", "reason", serr.Reason, "error", serr.Err)

	e.mu.Lock()
	e.state = status.StateError
	e.lastErr = serr
	doc := e.documentLocked()
	cb := e.onStateChange
	e.mu.Unlock()

	e.announce(status.StateError, doc, cb)
	return serr
}

// streamClosed handles a snapshot channel closing while the run is
// still supposed to be live
func (e *defaultEngine) streamClosed(ctx context.Context, r *run, direction string) {
	if ctx.Err() != nil {
		// Normal teardown closes the channels.
		return
	}

	serr := &Error{
		Message: fmt.Sprintf("%s snapshot stream closed unexpectedly", direction),
		Reason:  ReasonStreamClosed,
	}
	slog.Error("Sync stream closed", "direction", direction)

	// Take down the sibling loop as well. This run is no longer
	// bidirectional.
	r.cancel()

	e.mu.Lock()
	if e.current != r {
		// A newer run or an explicit stop superseded this one.
		e.mu.Unlock()
		return
	}
	e.state = status.StateError
	e.lastErr = serr
	doc := e.documentLocked()
	cb := e.onStateChange
	e.mu.Unlock()

	e.announce(status.StateError, doc, cb)
}

// observeSnapshot records the size of the latest snapshot from either
// direction
func (e *defaultEngine) observeSnapshot(ctx context.Context, direction string, lists []model.List, elapsed time.Duration) {
	e.mu.Lock()
	e.listCount = len(lists)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordSnapshot(ctx, direction, len(lists), elapsed)
	}
}

// announce delivers a state transition to the observer callback and
// the status persistence. Must be called without holding e.mu.
func (e *defaultEngine) announce(s status.State, doc *status.Document, cb func(status.State)) {
	if cb != nil {
		cb(s)
	}
	if e.statusSvc != nil {
		if err := e.statusSvc.Save(context.Background(), doc); err != nil {
			slog.Error("Failed to persist sync status", "error", err)
		}
	}
}

// documentLocked builds the persistable view of the current state.
// Must be called with e.mu held.
func (e *defaultEngine) documentLocked() *status.Document {
	now := time.Now()
	doc := &status.Document{
		State:          e.state,
		PrincipalID:    e.principal.ID,
		LastTransition: &now,
		LastSyncedAt:   e.lastSyncedAt,
		ListCount:      e.listCount,
	}
	if e.lastErr != nil {
		doc.LastError = e.lastErr.Error()
	}
	switch e.state {
	case status.StateSyncing:
		doc.Message = "establishing subscriptions"
	case status.StateSynced:
		doc.Message = "both directions established"
	case status.StateError:
		doc.Message = "sync stopped after failure"
	case status.StateIdle:
		doc.Message = "sync not running"
	}
	return doc
}
