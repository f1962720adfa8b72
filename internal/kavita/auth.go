package kavita

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authenticatePath = "/api/Plugin/authenticate"

	// Tokens are refreshed this long before they actually expire.
	expiryLeeway = time.Minute
)

type session struct {
	username string
	token    string
	// zero when the token carries no exp claim
	expires time.Time
}

func (s *session) valid(now time.Time) bool {
	return s != nil && (s.expires.IsZero() || now.Add(expiryLeeway).Before(s.expires))
}

type authResponse struct {
	Username     string `json:"username"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.valid(time.Now()) {
		return c.session.token, nil
	}

	s, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}

	c.session = s
	return s.token, nil
}

func (c *Client) dropSession() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Client) authenticate(ctx context.Context) (*session, error) {
	c.logger.Debug("Authenticating plugin " + c.plugin)

	query := url.Values{}
	query.Set("apiKey", c.apiKey)
	query.Set("pluginName", c.plugin)

	rep, err := c.do(ctx, http.MethodPost, authenticatePath, query, false)
	if err != nil {
		if err == errNotFound {
			err = fmt.Errorf("%w: authenticate endpoint not found", ErrConnectivity)
		}
		c.logger.Error("Failed to authenticate: " + err.Error())
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	var ar authResponse
	if err := json.Unmarshal(rep.body, &ar); err != nil {
		return nil, fmt.Errorf("%w: decoding authentication response: %w", ErrMalformedResponse, err)
	}
	if ar.Token == "" {
		return nil, fmt.Errorf("%w: authentication response carries no token", ErrMalformedResponse)
	}

	s := &session{username: ar.Username, token: ar.Token}

	// Kavita signs the token itself, we only need to know when to ask for a new one.
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(ar.Token, &claims); err != nil {
		c.logger.Warn("Failed to read session token expiry: " + err.Error())
	} else if claims.ExpiresAt != nil {
		s.expires = claims.ExpiresAt.Time
	}

	c.logger.Info("Authenticated as " + s.username)
	return s, nil
}
