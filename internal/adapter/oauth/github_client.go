// Package oauth holds outbound HTTP clients for identity providers.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainoauth "github.com/Gauravpathak1789/Bookly/internal/domain/oauth"
)

// Client encapsulates the provider round-trips of a federation flow.
type Client interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchIdentity(ctx context.Context, accessToken string) (domainoauth.Identity, error)
}

// GitHubClient is the GitHub implementation. Base URLs are fields so tests
// can point the client at a stub server.
type GitHubClient struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	redirectURI  string

	OAuthBaseURL string
	APIBaseURL   string
}

var _ Client = (*GitHubClient)(nil)

// NewGitHubClient constructs the default GitHub client.
func NewGitHubClient(client *http.Client, clientID, clientSecret, redirectURI string) *GitHubClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GitHubClient{
		httpClient:   client,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		OAuthBaseURL: "https://github.com",
		APIBaseURL:   "https://api.github.com",
	}
}

// AuthorizeURL builds the provider redirect that starts the flow.
func (c *GitHubClient) AuthorizeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("scope", "user:email")
	params.Set("state", state)
	return c.OAuthBaseURL + "/login/oauth/authorize?" + params.Encode()
}

// ExchangeCode swaps the authorization code for a provider access token.
func (c *GitHubClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.OAuthBaseURL+"/login/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status=%d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access token")
	}
	return parsed.AccessToken, nil
}

// FetchIdentity loads the profile and resolves the primary email. GitHub
// omits the email from /user for private-email profiles, so the primary is
// always taken from /user/emails.
func (c *GitHubClient) FetchIdentity(ctx context.Context, accessToken string) (domainoauth.Identity, error) {
	var profile struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := c.getJSON(ctx, accessToken, "/user", &profile); err != nil {
		return domainoauth.Identity{}, fmt.Errorf("fetch user: %w", err)
	}

	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := c.getJSON(ctx, accessToken, "/user/emails", &emails); err != nil {
		return domainoauth.Identity{}, fmt.Errorf("fetch emails: %w", err)
	}

	identity := domainoauth.Identity{
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Login:      profile.Login,
		Name:       profile.Name,
	}
	for _, e := range emails {
		if e.Primary {
			identity.Email = e.Email
			break
		}
	}
	if identity.Email == "" {
		return domainoauth.Identity{}, domainoauth.ErrNoVerifiedEmail
	}
	return identity, nil
}

func (c *GitHubClient) getJSON(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
