package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
)

const mePath = "/api/v1/auth/me"

// HTTPResolver asks the ticketing backend who owns the held bearer token.
type HTTPResolver struct {
	baseURL string
	tokens  *TokenHolder
	client  *http.Client
}

type meResponse struct {
	Data struct {
		UserID   string `json:"user_id"`
		TenantID string `json:"tenant_id"`
	} `json:"data"`
}

// NewHTTPResolver builds a resolver against baseURL. A nil client gets a
// default one bounded by timeout.
func NewHTTPResolver(baseURL string, tokens *TokenHolder, client *http.Client, timeout time.Duration) (*HTTPResolver, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token holder required")
	}
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPResolver{baseURL: baseURL, tokens: tokens, client: client}, nil
}

func (r *HTTPResolver) Resolve(ctx context.Context) (Identity, error) {
	token := r.tokens.Token()
	if token == "" {
		return Anonymous, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+mePath, nil)
	if err != nil {
		return Anonymous, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build identity request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Anonymous, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Anonymous, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return Anonymous, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("identity backend returned %d", resp.StatusCode))
	}

	var body meResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Anonymous, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode identity response")
	}
	if strings.TrimSpace(body.Data.UserID) == "" {
		return Anonymous, pkgerrors.New(pkgerrors.CodeDependency, "identity response missing user id")
	}
	return Identity{
		UserID:        body.Data.UserID,
		TenantID:      strings.TrimSpace(body.Data.TenantID),
		Authenticated: true,
	}, nil
}
