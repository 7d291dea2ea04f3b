package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agrovista/agrigate/internal/config"
	"go.uber.org/zap"
)

// Profile is the provider-issued user profile returned by a code exchange.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name the way the provider displays it.
func (p Profile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// AuthenticateResult is the provider response to an authorization code exchange.
type AuthenticateResult struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	SessionID    string  `json:"session_id"`
	User         Profile `json:"user"`
}

// TokenPair is the provider response to a refresh call.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Client talks to the WorkOS-style user management API.
type Client interface {
	AuthorizationURL(state string) string
	Authenticate(ctx context.Context, code string) (*AuthenticateResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	LogoutURL(sessionID string) string
}

type client struct {
	log        *zap.Logger
	cfg        config.WorkOSConfig
	httpClient *http.Client
}

func NewClient(log *zap.Logger, cfg config.Config) Client {
	return &client{
		log:        log.Named("identity.client"),
		cfg:        cfg.WorkOS,
		httpClient: http.DefaultClient,
	}
}

func (c *client) AuthorizationURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.cfg.ClientID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("provider", "authkit")
	if state != "" {
		query.Set("state", state)
	}
	return c.cfg.BaseURL + "/user_management/authorize?" + query.Encode()
}

func (c *client) Authenticate(ctx context.Context, code string) (*AuthenticateResult, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
	}

	var result AuthenticateResult
	if err := c.post(ctx, "/user_management/authenticate", payload, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if result.AccessToken == "" || result.User.ID == "" || result.User.Email == "" {
		return nil, fmt.Errorf("%w: incomplete provider response", ErrExchangeFailed)
	}
	return &result, nil
}

func (c *client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}

	var pair TokenPair
	if err := c.post(ctx, "/user_management/authenticate", payload, &pair); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrRefreshFailed)
	}
	return &pair, nil
}

func (c *client) LogoutURL(sessionID string) string {
	query := url.Values{}
	query.Set("session_id", sessionID)
	return c.cfg.BaseURL + "/user_management/sessions/logout?" + query.Encode()
}

func (c *client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Warn("provider call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(data, 256))
	}

	return json.Unmarshal(data, out)
}

func truncate(data []byte, max int) string {
	if len(data) > max {
		data = data[:max]
	}
	return strings.TrimSpace(string(data))
}
