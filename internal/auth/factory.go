package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kmjayadeep/baskit-sub000/internal/config"
)

// minSecretLength is the smallest accepted HMAC secret. Shorter
// secrets make the signature brute-forceable offline.
const minSecretLength = 32

// NewMiddleware creates the API authentication middleware from config.
// Without an auth block the API is open, which suits a daemon bound to
// localhost; with one, every request must carry a bearer token signed
// with the shared secret.
func NewMiddleware(cfg *config.AuthConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		slog.Info("API authentication disabled")
		return anonymousMiddleware, nil
	}

	secret, err := cfg.GetSecret()
	if err != nil {
		return nil, fmt.Errorf("load API secret: %w", err)
	}
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("API secret must be at least %d bytes", minSecretLength)
	}

	slog.Info("API authentication enabled")
	m := &bearerMiddleware{
		secret: []byte(secret),
		realm:  defaultRealm,
	}
	return m.Middleware, nil
}

// anonymousMiddleware is a no-op middleware that passes requests through without authentication.
func anonymousMiddleware(next http.Handler) http.Handler {
	return next
}
