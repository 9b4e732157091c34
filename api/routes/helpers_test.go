package routes

import (
	"testing"
	"time"

	"github.com/angelmondragon/eventix-edge/pkg/auth"
	"github.com/angelmondragon/eventix-edge/pkg/config"
)

func mintToken(t *testing.T, userID, tenantID string) string {
	t.Helper()
	token, err := auth.MintAccessToken(
		config.JWTConfig{Secret: "secret", Issuer: "eventix", ExpirationMinutes: 5},
		time.Now(),
		auth.AccessTokenPayload{UserID: userID, TenantID: tenantID},
	)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
