package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"golang.org/x/oauth2"
)

// Registration is the client configuration for one provider.
type Registration struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

var (
	GoogleDefaults = Registration{
		Scopes:      []string{"openid", "email", "profile"},
		AuthURL:     "https://accounts.google.com/o/oauth2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}
	KakaoDefaults = Registration{
		Scopes:      []string{"profile_nickname", "profile_image", "account_email"},
		AuthURL:     "https://kauth.kakao.com/oauth/authorize",
		TokenURL:    "https://kauth.kakao.com/oauth/token",
		UserInfoURL: "https://kapi.kakao.com/v2/user/me",
	}
)

type registered struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// Client runs the authorization-code flow against the configured providers.
type Client struct {
	providers map[models.AuthProvider]registered
}

// NewClient registers every provider in regs that has a client id.
func NewClient(regs map[models.AuthProvider]Registration) *Client {
	c := &Client{providers: make(map[models.AuthProvider]registered)}
	for p, r := range regs {
		if _, ok := adapters[p]; !ok || r.ClientID == "" {
			continue
		}
		c.providers[p] = registered{
			cfg: &oauth2.Config{
				ClientID:     r.ClientID,
				ClientSecret: r.ClientSecret,
				RedirectURL:  r.RedirectURL,
				Scopes:       r.Scopes,
				Endpoint:     oauth2.Endpoint{AuthURL: r.AuthURL, TokenURL: r.TokenURL},
			},
			userInfoURL: r.UserInfoURL,
		}
	}
	return c
}

func (c *Client) lookup(key string) (registered, error) {
	p, ok := models.ParseProvider(key)
	if !ok {
		return registered{}, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, key)
	}
	r, ok := c.providers[p]
	if !ok {
		return registered{}, fmt.Errorf("%w: %q is not configured", common.ErrUnsupportedProvider, key)
	}
	return r, nil
}

// AuthURL returns the consent page URL the user is redirected to.
func (c *Client) AuthURL(provider, state string) (string, error) {
	r, err := c.lookup(provider)
	if err != nil {
		return "", err
	}
	return r.cfg.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a token and fetches the raw
// user-info attributes with it. A code the provider refuses is a
// validation error.
func (c *Client) Exchange(ctx context.Context, provider, code string) (map[string]any, error) {
	r, err := c.lookup(provider)
	if err != nil {
		return nil, err
	}

	tok, err := r.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: authorization code rejected: %s", common.ErrValidation, re.ErrorCode)
		}
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	resp, err := r.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info status: %s", resp.Status)
	}

	attrs := map[string]any{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return attrs, nil
}
