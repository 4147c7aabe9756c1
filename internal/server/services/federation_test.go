package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func googleAttrs(sub, email, name string) map[string]any {
	return map[string]any{
		"sub":     sub,
		"email":   email,
		"name":    name,
		"picture": "https://img.example/" + sub + ".png",
	}
}

func TestHandleCallback_NewUserIsPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "Kim@Example.com", "Kim"))
	require.NoError(t, err)
	assert.Equal(t, SignupRequired, res.Outcome)
	assert.Nil(t, res.Tokens)
	assert.Equal(t, "Kim", res.Profile.Name)
	assert.Equal(t, "g-1", res.Profile.ExternalID)

	subject, err := e.tokens.AuthenticateSignup(res.SignupToken)
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", subject)
	_, err = e.tokens.Authenticate(res.SignupToken)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "a signup token is not a session")

	stored := e.db.userByEmail(t, "kim@example.com")
	assert.False(t, stored.Enabled)
	assert.True(t, stored.Pending())
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.Equal(t, models.ProviderGoogle, stored.Provider)
	assert.Equal(t, "g-1", models.Deref(stored.ProviderID))
	assert.Nil(t, stored.PasswordHash)
	assert.Nil(t, stored.Username)
	assert.True(t, stored.EmailVerified)

	again, err := e.federation.handleCallback(ctx, "GOOGLE", googleAttrs("g-1", "kim@example.com", "Kim"))
	require.NoError(t, err)
	assert.Equal(t, SignupRequired, again.Outcome)
	assert.Equal(t, 1, e.db.userCount())
}

func TestHandleCallback_KakaoWithoutEmailGetsPlaceholder(t *testing.T) {
	e := newEnv(t)

	attrs := map[string]any{
		"id":         float64(123456),
		"properties": map[string]any{"nickname": "Lee", "thumbnail_image": "https://k.example/t.png"},
		"kakao_account": map[string]any{
			"email_valid": true, "is_email_verified": false, "email": "unverified@k.com",
		},
	}
	res, err := e.federation.handleCallback(context.Background(), "kakao", attrs)
	require.NoError(t, err)
	assert.Equal(t, SignupRequired, res.Outcome)

	stored := e.db.userByEmail(t, "123456@kakao.local")
	assert.Equal(t, "Lee", stored.Name)
	assert.Equal(t, "https://k.example/t.png", stored.ProfileImage)
	assert.False(t, stored.EmailVerified, "placeholder addresses are not verified")
}

func TestHandleCallback_ProviderMismatchLeavesRecordUnchanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	local := signedUp(t, e)
	before := e.db.userByUsername(t, local.User.Username)

	_, err := e.federation.handleCallback(ctx, "google", googleAttrs("g-9", "a@x.com", "Impostor"))
	assert.ErrorIs(t, err, common.ErrProviderMismatch)
	assert.Equal(t, before, e.db.userByUsername(t, "alice"))
	assert.Equal(t, 1, e.db.userCount())

	_, err = e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "kim@x.com", "Kim"))
	require.NoError(t, err)
	kim := e.db.userByEmail(t, "kim@x.com")

	kakao := map[string]any{
		"id":            "77",
		"properties":    map[string]any{"nickname": "Other"},
		"kakao_account": map[string]any{"email_valid": true, "is_email_verified": true, "email": "kim@x.com"},
	}
	_, err = e.federation.handleCallback(ctx, "kakao", kakao)
	assert.ErrorIs(t, err, common.ErrProviderMismatch)
	assert.Equal(t, kim, e.db.userByEmail(t, "kim@x.com"))

	_, err = e.federation.handleCallback(ctx, "google", googleAttrs("g-2", "kim@x.com", "Kim"))
	assert.ErrorIs(t, err, common.ErrProviderMismatch, "same provider, different identity")
}

func TestHandleCallback_ActiveUserLogsIn(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "kim@x.com", "Kim"))
	require.NoError(t, err)
	_, err = e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "kim@x.com"})
	require.NoError(t, err)

	res, err := e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "kim@x.com", "Kim Park"))
	require.NoError(t, err)
	assert.Equal(t, LoginCompleted, res.Outcome)
	require.NotNil(t, res.Tokens)
	assert.Empty(t, res.SignupToken)

	subject, err := e.tokens.Authenticate(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "kim@x.com", subject)
	assert.Equal(t, "Kim Park", e.db.userByEmail(t, "kim@x.com").Name)
}

func TestHandleCallback_UnsupportedProvider(t *testing.T) {
	e := newEnv(t)

	for _, key := range []string{"github", "local", ""} {
		_, err := e.federation.handleCallback(context.Background(), key, map[string]any{"id": "1"})
		assert.ErrorIs(t, err, common.ErrUnsupportedProvider, key)
	}
	assert.Zero(t, e.db.userCount())
}

func TestHandleCallback_MissingExternalID(t *testing.T) {
	e := newEnv(t)

	_, err := e.federation.handleCallback(context.Background(), "google", map[string]any{"email": "x@x.com"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestHandleCallback_StorageFault(t *testing.T) {
	e := newEnv(t)
	e.db.fail["users.Create"] = errors.New("boom")

	_, err := e.federation.handleCallback(context.Background(), "google", googleAttrs("g-1", "kim@x.com", "Kim"))
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestCompleteSignup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.db.put(models.User{Username: models.Ptr("other"), Nickname: models.Ptr("Kim"), Provider: models.ProviderLocal, Enabled: true})

	_, err := e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "kim@x.com", "Kim"))
	require.NoError(t, err)

	res, err := e.federation.CompleteSignup(ctx, CompleteSignupRequest{
		Email:        "kim@x.com",
		ProfileImage: "https://img.example/new.png",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.True(t, res.User.Enabled)
	assert.Equal(t, "Kim1", res.User.Nickname)

	stored := e.db.userByEmail(t, "kim@x.com")
	assert.True(t, stored.Enabled)
	assert.Equal(t, "https://img.example/new.png", stored.ProfileImage)
	assert.Equal(t, "Kim", stored.Name)

	_, err = e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "kim@x.com"})
	assert.ErrorIs(t, err, common.ErrAlreadyCompleted)
}

func TestCompleteSignup_Failures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	signedUp(t, e)

	_, err := e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrNotOAuthAccount)

	_, err = e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "ghost@x.com"})
	assert.ErrorIs(t, err, common.ErrAccountNotFound)

	_, err = e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "bad"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.federation.handleCallback(ctx, "google", googleAttrs("g-1", "kim@x.com", "Kim"))
	require.NoError(t, err)
	_, err = e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "kim@x.com", Nickname: "Al"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)
	assert.False(t, e.db.userByEmail(t, "kim@x.com").Enabled, "failed completion leaves the account pending")

	res, err := e.federation.CompleteSignup(ctx, CompleteSignupRequest{Email: "kim@x.com", Nickname: "Kimmy", Name: "Kim P"})
	require.NoError(t, err)
	assert.Equal(t, "Kimmy", res.User.Nickname)
	assert.Equal(t, "Kim P", res.User.Name)
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.oauth.attrs = map[string]any{"id": "k-1", "properties": map[string]any{"nickname": "Lee"}}

	res, err := e.federation.Authenticate(ctx, "kakao", "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "auth-code", e.oauth.gotCode)
	assert.Equal(t, SignupRequired, res.Outcome)
	e.db.userByEmail(t, "k-1@kakao.local")

	_, err = e.federation.Authenticate(ctx, "kakao", " ")
	assert.ErrorIs(t, err, common.ErrValidation)

	e.oauth.err = errors.New("oauth2: token expired")
	_, err = e.federation.Authenticate(ctx, "kakao", "auth-code")
	assert.ErrorIs(t, err, common.ErrorInternal)

	e.oauth.err = fmt.Errorf("%w: authorization code rejected", common.ErrValidation)
	_, err = e.federation.Authenticate(ctx, "kakao", "auth-code")
	assert.ErrorIs(t, err, common.ErrValidation)

	e.oauth.err = nil
	e.oauth.attrs = map[string]any{"properties": map[string]any{}}
	_, err = e.federation.Authenticate(ctx, "kakao", "auth-code")
	assert.ErrorIs(t, err, common.ErrValidation, "user info without an id is rejected")

	e.oauth.err = common.ErrUnsupportedProvider
	_, err = e.federation.Authenticate(ctx, "kakao", "auth-code")
	assert.ErrorIs(t, err, common.ErrUnsupportedProvider)
}

func TestAuthURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.federation.AuthURL(ctx, "google", "st4te")
	require.NoError(t, err)
	assert.Contains(t, u, "state=st4te")

	_, err = e.federation.AuthURL(ctx, "myspace", "s")
	assert.ErrorIs(t, err, common.ErrUnsupportedProvider)
}

func TestCallbackOutcomeString(t *testing.T) {
	assert.Equal(t, "login_completed", LoginCompleted.String())
	assert.Equal(t, "signup_required", SignupRequired.String())
	assert.Equal(t, "unknown", CallbackOutcome(0).String())
}
