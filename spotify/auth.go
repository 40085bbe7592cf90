// OAuth authorization-code flow against the Spotify accounts service
package spotify

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const oauthScopes = "user-read-currently-playing user-read-playback-state user-modify-playback-state"

// refreshMargin is how close to expiry we proactively refresh.
const refreshMargin = time.Minute

var ErrNotAuthorized = errors.New("spotify: no tokens loaded, run the authorize flow first")

// AuthorizationURL is the URL the room owner opens in a browser to
// grant playback access. Spotify redirects back to /callback with a
// grant code.
func (c *Client) AuthorizationURL() string {
	q := url.Values{}
	q.Set("client_id", c.creds.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.creds.RedirectURI)
	q.Set("scope", oauthScopes)
	return c.accountsBase + "/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization grant for a token pair and
// persists it.
func (c *Client) ExchangeCode(code string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.creds.RedirectURI)

	info, err := c.requestToken(form)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = info
	c.mu.Unlock()
	return c.store.Save(*info)
}

// Refresh forces a token refresh using the stored refresh token and
// persists the result.
func (c *Client) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked()
}

func (c *Client) refreshLocked() error {
	if c.token == nil || c.token.RefreshToken == "" {
		return ErrNotAuthorized
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.token.RefreshToken)

	info, err := c.requestToken(form)
	if err != nil {
		return err
	}
	// Spotify omits the refresh token when it hasn't rotated.
	if info.RefreshToken == "" {
		info.RefreshToken = c.token.RefreshToken
	}
	c.token = info
	return c.store.Save(*info)
}

// LoadTokens pulls a previously granted token pair from the store.
// Returns ErrNotAuthorized when none has been saved yet.
func (c *Client) LoadTokens() error {
	info, err := c.store.Load()
	if err != nil {
		return err
	}
	if info == nil {
		return ErrNotAuthorized
	}
	c.mu.Lock()
	c.token = info
	c.mu.Unlock()
	return nil
}

// Token returns a copy of the current token pair, for status display.
func (c *Client) Token() (TokenInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return TokenInfo{}, false
	}
	return *c.token, true
}

// accessToken returns a usable bearer token, refreshing first when the
// current one is about to expire.
func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return "", ErrNotAuthorized
	}
	if c.token.ExpiresWithin(refreshMargin) {
		if err := c.refreshLocked(); err != nil {
			return "", err
		}
	}
	return c.token.AccessToken, nil
}

func (c *Client) requestToken(form url.Values) (*TokenInfo, error) {
	req, err := http.NewRequest(http.MethodPost, c.accountsBase+"/api/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString(
		[]byte(c.creds.ClientID + ":" + c.creds.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spotify: token request failed: %s: %s", resp.Status, body)
	}

	granted := struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&granted); err != nil {
		return nil, err
	}

	return &TokenInfo{
		AccessToken:  granted.AccessToken,
		RefreshToken: granted.RefreshToken,
		ExpiresIn:    granted.ExpiresIn,
		ObtainedAt:   time.Now().UTC(),
	}, nil
}
