// Package oauth exchanges Google authorization codes for verified identities.
// The provider's own behavior (consent, second factors) is out of scope; only
// the code-for-identity contract lives here.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	authorizeURL       = "https://accounts.google.com/o/oauth2/auth"
)

type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	userinfoURL  string
	httpClient   *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoints overrides the Google endpoints; used by tests.
func WithEndpoints(tokenURL, userinfoURL string) Option {
	return func(cl *Client) {
		cl.tokenURL = tokenURL
		cl.userinfoURL = userinfoURL
	}
}

func NewClient(clientID, clientSecret, redirectURI string, opts ...Option) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     defaultTokenURL,
		userinfoURL:  defaultUserinfoURL,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if client credentials are set.
func (c *Client) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// AuthURL builds the provider's consent-screen URL for the client to open.
func (c *Client) AuthURL() string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", "openid email profile")
	q.Set("response_type", "code")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return authorizeURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type userinfoResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Exchange redeems an authorization code for the provider-verified email and
// display name.
func (c *Client) Exchange(ctx context.Context, authorizationCode string) (string, string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", authorizationCode)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("token endpoint: status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", "", fmt.Errorf("token endpoint: no access token")
	}

	uiReq, err := http.NewRequestWithContext(ctx, "GET", c.userinfoURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create userinfo request: %w", err)
	}
	uiReq.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	uiResp, err := c.httpClient.Do(uiReq)
	if err != nil {
		return "", "", fmt.Errorf("fetch userinfo: %w", err)
	}
	defer uiResp.Body.Close()

	if uiResp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("userinfo endpoint: status %d", uiResp.StatusCode)
	}

	var ui userinfoResponse
	if err := json.NewDecoder(uiResp.Body).Decode(&ui); err != nil {
		return "", "", fmt.Errorf("decode userinfo response: %w", err)
	}
	if ui.Email == "" {
		return "", "", fmt.Errorf("userinfo endpoint: no email")
	}

	return ui.Email, ui.Name, nil
}
