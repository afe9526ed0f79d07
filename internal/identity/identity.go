// Package identity tracks the principal the sync engine acts for.
//
// The engine never decides who is signed in. It consumes identity
// changes published here and tears down or establishes subscriptions
// in response, while the API layer is the only writer.
package identity

import (
	"context"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_identity.go -package=mocks -source=identity.go Provider

// Principal identifies the authenticated user on whose behalf
// remote subscriptions are made.
type Principal struct {
	// ID is the stable unique identifier of the user. Empty for the
	// anonymous principal.
	ID string
}

// Anonymous returns true when no user is signed in.
func (p Principal) Anonymous() bool {
	return p.ID == ""
}

// Provider exposes the current principal and a stream of changes.
type Provider interface {
	// Current returns the principal as of now
	Current() Principal

	// Subscribe returns a channel that receives the current principal
	// immediately and every subsequent change until ctx is cancelled.
	// Deliveries coalesce: a slow consumer sees the latest principal,
	// not every intermediate one.
	Subscribe(ctx context.Context) <-chan Principal
}

// MemoryProvider is an in-process Provider whose principal is set
// through Login and Logout.
type MemoryProvider struct {
	mu      sync.RWMutex
	current Principal
	subs    map[chan Principal]struct{}
}

var _ Provider = (*MemoryProvider)(nil)

// NewMemoryProvider creates a provider starting with the anonymous principal.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		subs: make(map[chan Principal]struct{}),
	}
}

// Current returns the principal as of now
func (m *MemoryProvider) Current() Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe returns a channel seeded with the current principal
func (m *MemoryProvider) Subscribe(ctx context.Context) <-chan Principal {
	ch := make(chan Principal, 1)

	m.mu.Lock()
	ch <- m.current
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		m.mu.Unlock()
	}()

	return ch
}

// Login sets the current principal and notifies subscribers.
// Setting the same principal again is a no-op.
func (m *MemoryProvider) Login(p Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == p {
		return
	}
	m.current = p
	m.notifyLocked()
}

// Logout resets the current principal to anonymous and notifies subscribers
func (m *MemoryProvider) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Anonymous() {
		return
	}
	m.current = Principal{}
	m.notifyLocked()
}

// notifyLocked replaces any undelivered principal with the latest one
func (m *MemoryProvider) notifyLocked() {
	for ch := range m.subs {
		select {
		case ch <- m.current:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- m.current
		}
	}
}
