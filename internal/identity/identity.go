package identity

import (
	"context"
	"strings"
	"sync"
)

// Identity is the caller as seen by the ticketing backend.
type Identity struct {
	UserID        string `json:"user_id,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous is the unauthenticated caller.
var Anonymous = Identity{}

// HasTenant reports whether the identity is scoped to a tenant.
func (i Identity) HasTenant() bool {
	return i.Authenticated && strings.TrimSpace(i.TenantID) != ""
}

// Resolver answers "who is the current caller". Implementations may fail;
// callers treat a failure as unauthenticated.
type Resolver interface {
	Resolve(ctx context.Context) (Identity, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (Identity, error)

func (f ResolverFunc) Resolve(ctx context.Context) (Identity, error) {
	return f(ctx)
}

// TokenHolder keeps the most recent bearer token forwarded by the console.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

func NewTokenHolder() *TokenHolder {
	return &TokenHolder{}
}

// Set replaces the held token. An empty value clears it (logout).
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = strings.TrimSpace(token)
	h.mu.Unlock()
}

func (h *TokenHolder) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}
