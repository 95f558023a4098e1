package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/fuomag9/kabomba-auth/internal/config"
)

var (
	// ErrUpstreamProvider is returned when the provider answers with an
	// error status or a payload that doesn't match the expected schema.
	ErrUpstreamProvider = errors.New("identity provider returned an invalid response")
	// ErrProviderTimeout is returned when a provider call exceeds its deadline.
	ErrProviderTimeout = errors.New("identity provider timed out")
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// Identity holds the profile asserted by the provider.
type Identity struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// tokenResponse is the token endpoint payload. Only id_token is required.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Client talks to the Google OAuth2 endpoints.
type Client struct {
	oauth       *oauth2.Config
	userInfoURL string
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates a Client for the configured Google registration.
func NewClient(cfg config.GoogleConfig) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		timeout:     cfg.HTTPTimeout,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}
}

// AuthCodeURL returns the consent screen URL carrying state and, when a
// verifier is given, its S256 PKCE challenge.
func (c *Client) AuthCodeURL(state, verifier string) string {
	if verifier == "" {
		return c.oauth.AuthCodeURL(state)
	}
	return c.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode trades an authorization code for the provider's id token.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.oauth.RedirectURL)
	data.Set("client_id", c.oauth.ClientID)
	data.Set("client_secret", c.oauth.ClientSecret)
	if verifier != "" {
		data.Set("code_verifier", verifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth.Endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var result tokenResponse
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if result.IDToken == "" {
		return "", fmt.Errorf("token exchange: response missing id_token: %w", ErrUpstreamProvider)
	}
	return result.IDToken, nil
}

// FetchIdentity resolves an id token into the user's identity. The token's
// signature is checked by the provider, not locally.
func (c *Client) FetchIdentity(ctx context.Context, idToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("parse userinfo url: %w", err)
	}
	q := endpoint.Query()
	q.Set("id_token", idToken)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+idToken)
	req.Header.Set("Accept", "application/json")

	var identity Identity
	if err := c.do(req, &identity); err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	identity.Email = strings.TrimSpace(identity.Email)
	if identity.Email == "" {
		return nil, fmt.Errorf("userinfo: response missing email: %w", ErrUpstreamProvider)
	}
	return &identity, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, truncate(body, 200), ErrUpstreamProvider)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, ErrUpstreamProvider)
	}
	return nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%v: %w", err, ErrProviderTimeout)
	}
	return fmt.Errorf("%v: %w", err, ErrUpstreamProvider)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
