package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kendall-kelly/fabmarket-api/config"
)

// Auth0UserInfo is the subset of Auth0's /userinfo response used to bootstrap a profile
type Auth0UserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IdentityProvider resolves an access token to the caller's identity
type IdentityProvider interface {
	GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error)
}

// Auth0Service calls the Auth0 authentication API
type Auth0Service struct {
	domain     string
	httpClient *http.Client
}

func NewAuth0Service(cfg *config.Config) *Auth0Service {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Auth0Service{
		domain: cfg.Auth0Domain,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUserInfo fetches the caller's profile from Auth0's /userinfo endpoint.
// A domain with an explicit scheme is used as-is (tests point it at httptest).
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	base := s.domain
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo Auth0UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return &userInfo, nil
}

var identityProviderInstance IdentityProvider

// GetIdentityProvider returns the installed provider, falling back to Auth0
// configured from the current config.
func GetIdentityProvider() IdentityProvider {
	if identityProviderInstance != nil {
		return identityProviderInstance
	}
	return NewAuth0Service(config.GetConfig())
}

// SetIdentityProvider replaces the identity provider (primarily for testing)
func SetIdentityProvider(p IdentityProvider) {
	identityProviderInstance = p
}
