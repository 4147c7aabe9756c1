// Package providers turns OAuth2 user-info payloads into a provider-neutral
// Profile. Each supported provider has one Adapter; unknown provider keys are
// rejected with common.ErrUnsupportedProvider.
package providers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Profile is what the identity core needs from any provider. Email is empty
// when the provider withheld it.
type Profile struct {
	Provider   models.AuthProvider
	ExternalID string
	Name       string
	Email      string
	ImageURL   string
}

// Adapter extracts a Profile from raw provider attributes.
type Adapter interface {
	Provider() models.AuthProvider
	Extract(attrs map[string]any) (Profile, error)
}

var adapters = map[models.AuthProvider]Adapter{
	models.ProviderGoogle: googleAdapter{},
	models.ProviderKakao:  kakaoAdapter{},
}

// Lookup returns the adapter for a provider registration key such as
// "google" or "KAKAO".
func Lookup(key string) (Adapter, error) {
	p, ok := models.ParseProvider(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, key)
	}
	a, ok := adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, key)
	}
	return a, nil
}

// PlaceholderEmail is the deterministic stand-in address used when a
// provider does not share the user's email, e.g. "12345@kakao.local".
func PlaceholderEmail(p models.AuthProvider, externalID string) string {
	return externalID + "@" + strings.ToLower(string(p)) + ".local"
}

// ResolvedEmail returns the profile email or its placeholder.
func (p Profile) ResolvedEmail() string {
	if p.Email != "" {
		return p.Email
	}
	return PlaceholderEmail(p.Provider, p.ExternalID)
}

type googleAdapter struct{}

func (googleAdapter) Provider() models.AuthProvider { return models.ProviderGoogle }

func (googleAdapter) Extract(attrs map[string]any) (Profile, error) {
	id := idString(attrs["sub"])
	if id == "" {
		id = idString(attrs["id"])
	}
	if id == "" {
		return Profile{}, fmt.Errorf("%w: google: missing subject", common.ErrValidation)
	}
	return Profile{
		Provider:   models.ProviderGoogle,
		ExternalID: id,
		Name:       str(attrs["name"]),
		Email:      str(attrs["email"]),
		ImageURL:   str(attrs["picture"]),
	}, nil
}

type kakaoAdapter struct{}

func (kakaoAdapter) Provider() models.AuthProvider { return models.ProviderKakao }

// Extract trusts the account email only when Kakao reports it both valid
// and verified.
func (kakaoAdapter) Extract(attrs map[string]any) (Profile, error) {
	id := idString(attrs["id"])
	if id == "" {
		return Profile{}, fmt.Errorf("%w: kakao: missing id", common.ErrValidation)
	}
	p := Profile{Provider: models.ProviderKakao, ExternalID: id}

	if props, ok := attrs["properties"].(map[string]any); ok {
		p.Name = str(props["nickname"])
		p.ImageURL = str(props["profile_image"])
		if p.ImageURL == "" {
			p.ImageURL = str(props["thumbnail_image"])
		}
	}

	if account, ok := attrs["kakao_account"].(map[string]any); ok {
		valid, _ := account["email_valid"].(bool)
		verified, _ := account["is_email_verified"].(bool)
		if valid && verified {
			p.Email = str(account["email"])
		}
	}
	return p, nil
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	}
	return ""
}
