package identity

import (
	"context"
	"fmt"

	"github.com/angelmondragon/eventix-edge/pkg/auth"
	"github.com/angelmondragon/eventix-edge/pkg/config"
)

// TokenResolver trusts the held bearer token after verifying its signature
// locally. Invalid or expired tokens resolve to Anonymous.
type TokenResolver struct {
	cfg    config.JWTConfig
	tokens *TokenHolder
}

func NewTokenResolver(cfg config.JWTConfig, tokens *TokenHolder) (*TokenResolver, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token holder required")
	}
	return &TokenResolver{cfg: cfg, tokens: tokens}, nil
}

func (r *TokenResolver) Resolve(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Anonymous, err
	}
	token := r.tokens.Token()
	if token == "" {
		return Anonymous, nil
	}
	claims, err := auth.ParseAccessToken(r.cfg, token)
	if err != nil {
		return Anonymous, nil
	}
	return Identity{
		UserID:        claims.UserID,
		TenantID:      claims.TenantID,
		Authenticated: claims.UserID != "",
	}, nil
}

// NewResolver selects the resolver for the configured identity mode.
func NewResolver(cfg *config.Config, tokens *TokenHolder) (Resolver, error) {
	switch cfg.Identity.NormalizedMode() {
	case config.IdentityModeJWT:
		return NewTokenResolver(cfg.JWT, tokens)
	case config.IdentityModeBackend:
		return NewHTTPResolver(cfg.Backend.BaseURL, tokens, nil, cfg.Backend.RequestTimeout)
	default:
		return nil, fmt.Errorf("unsupported identity mode %q", cfg.Identity.Mode)
	}
}
