package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/arimendelow/spoonjoy/backend/internal/users"
)

const defaultGitHubAPIBaseURL = "https://api.github.com"

var (
	ErrProviderNotConfigured = errors.New("oauth: provider not configured")
	errMissingRedirectBase   = errors.New("oauth: redirect base url required")
	errNoIDTokenInResponse   = errors.New("oauth: token response missing id_token")
	errNoVerifiedEmail       = errors.New("oauth: no verified email on provider account")
)

// ProviderCredentials holds one provider's OAuth client registration.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ProviderCredentials) configured() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// ManagerConfig configures the provider registry. Providers without
// credentials are simply absent from the registry.
type ManagerConfig struct {
	RedirectBaseURL  string
	Google           ProviderCredentials
	GitHub           ProviderCredentials
	GoogleVerifier   *IDTokenVerifier
	GitHubAPIBaseURL string
	Logger           *zap.Logger
}

// Manager drives the authorization-code flow for the configured providers.
type Manager struct {
	configs        map[string]*oauth2.Config
	googleVerifier *IDTokenVerifier
	githubAPIBase  string
	logger         *zap.Logger
}

// NewManager constructs the provider registry from the supplied credentials.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	redirectBase := strings.TrimRight(strings.TrimSpace(cfg.RedirectBaseURL), "/")
	if redirectBase == "" {
		return nil, errMissingRedirectBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &Manager{
		configs:       make(map[string]*oauth2.Config),
		githubAPIBase: strings.TrimRight(strings.TrimSpace(cfg.GitHubAPIBaseURL), "/"),
		logger:        logger,
	}
	if manager.githubAPIBase == "" {
		manager.githubAPIBase = defaultGitHubAPIBaseURL
	}

	if cfg.Google.configured() {
		manager.configs[users.ProviderGoogle] = &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/oauth/%s/callback", redirectBase, users.ProviderGoogle),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		}
		verifier := cfg.GoogleVerifier
		if verifier == nil {
			var err error
			verifier, err = NewGoogleIDTokenVerifier(cfg.Google.ClientID, logger)
			if err != nil {
				return nil, err
			}
		}
		manager.googleVerifier = verifier
	}

	if cfg.GitHub.configured() {
		manager.configs[users.ProviderGitHub] = &oauth2.Config{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  fmt.Sprintf("%s/oauth/%s/callback", redirectBase, users.ProviderGitHub),
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoints.GitHub,
		}
	}

	return manager, nil
}

// Enabled reports whether the provider has credentials configured.
func (m *Manager) Enabled(provider string) bool {
	_, ok := m.configs[provider]
	return ok
}

// AuthCodeURL returns the provider authorization URL carrying the CSRF state.
func (m *Manager) AuthCodeURL(provider string, state string) (string, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
	return cfg.AuthCodeURL(state), nil
}

// Exchange swaps the authorization code for a token and extracts the
// provider-verified identity.
func (m *Manager) Exchange(ctx context.Context, provider string, code string) (Identity, error) {
	cfg, ok := m.configs[provider]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth: code exchange failed: %w", err)
	}

	switch provider {
	case users.ProviderGoogle:
		return m.googleIdentity(ctx, token)
	case users.ProviderGitHub:
		return m.githubIdentity(ctx, cfg, token)
	default:
		return Identity{}, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}
}

func (m *Manager) googleIdentity(ctx context.Context, token *oauth2.Token) (Identity, error) {
	rawIDToken, _ := token.Extra("id_token").(string)
	if strings.TrimSpace(rawIDToken) == "" {
		return Identity{}, errNoIDTokenInResponse
	}

	claims, err := m.googleVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth: id token rejected: %w", err)
	}

	return Identity{
		Provider:       users.ProviderGoogle,
		ProviderUserID: claims.Subject,
		Email:          claims.Email,
		Label:          claims.Email,
		Name:           claims.Name,
		AvatarURL:      claims.Picture,
	}, nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (m *Manager) githubIdentity(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (Identity, error) {
	client := cfg.Client(ctx, token)

	var user githubUser
	if err := m.fetchJSON(ctx, client, m.githubAPIBase+"/user", &user); err != nil {
		return Identity{}, fmt.Errorf("oauth: github profile fetch failed: %w", err)
	}

	email := user.Email
	if email == "" {
		primary, err := m.githubPrimaryEmail(ctx, client)
		if err != nil {
			return Identity{}, err
		}
		email = primary
	}

	return Identity{
		Provider:       users.ProviderGitHub,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		Label:          user.Login,
		Name:           user.Name,
		AvatarURL:      user.AvatarURL,
	}, nil
}

func (m *Manager) githubPrimaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var addresses []githubEmail
	if err := m.fetchJSON(ctx, client, m.githubAPIBase+"/user/emails", &addresses); err != nil {
		return "", fmt.Errorf("oauth: github email fetch failed: %w", err)
	}

	for _, address := range addresses {
		if address.Primary && address.Verified {
			return address.Email, nil
		}
	}
	for _, address := range addresses {
		if address.Verified {
			return address.Email, nil
		}
	}
	return "", errNoVerifiedEmail
}

func (m *Manager) fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
