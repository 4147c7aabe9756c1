// Package services contains application services for the identity CLI.
// The authentication service keeps the signed-in session in the local
// database so the CLI can resume it on the next start.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/repositories/session"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/google/uuid"
)

// AuthService defines the account operations of the CLI. Calls that return
// tokens also persist them, including pairs rotated by a transparent
// refresh.
type AuthService interface {
	Resume(ctx context.Context) (string, error)
	SignUp(ctx context.Context, req *pb.SignUpRequest) (*pb.User, error)
	Login(ctx context.Context, username string, password []byte) (*pb.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) (*pb.User, error)

	RequestCode(ctx context.Context, email string) (string, error)
	ConfirmCode(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	VerifyLink(ctx context.Context, token string) (*pb.User, error)
	Available(ctx context.Context, kind client.Availability, value string) (bool, error)

	OAuth2URL(ctx context.Context, provider string) (string, string, error)
	OAuth2Login(ctx context.Context, provider, code string) (*pb.OAuth2LoginResponse, error)
	CompleteSignup(ctx context.Context, req *pb.CompleteSignupRequest) (*pb.User, error)
	UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.User, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
}

func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	c.OnTokens(sessions.UpdateTokens)
	return &authService{client: c, sessions: sessions}
}

// label is what the prompt shows for a signed-in user.
func label(u *pb.User) string {
	switch {
	case u == nil:
		return ""
	case u.Nickname != "":
		return u.Nickname
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

func (a *authService) remember(ctx context.Context, resp *pb.AuthResponse) (*pb.User, error) {
	if resp.Tokens == nil {
		return resp.User, nil
	}
	err := a.sessions.Save(ctx, session.Session{
		Subject:      label(resp.User),
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return resp.User, nil
}

// Resume loads the stored session into the client and returns its label,
// or "" when nobody is signed in.
func (a *authService) Resume(ctx context.Context) (string, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil || s == nil {
		return "", err
	}
	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	return s.Subject, nil
}

func (a *authService) SignUp(ctx context.Context, req *pb.SignUpRequest) (*pb.User, error) {
	resp, err := a.client.SignUp(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.remember(ctx, resp)
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (*pb.User, error) {
	resp, err := a.client.Login(ctx, username, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}
	return a.remember(ctx, resp)
}

func (a *authService) Refresh(ctx context.Context) error {
	_, err := a.client.Refresh(ctx)
	return err
}

// Logout forgets the local session. Tokens stay valid on the server until
// they expire.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	a.client.SetTokens("", "")
	return nil
}

func (a *authService) Whoami(ctx context.Context) (*pb.User, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, client.ErrNotLoggedIn
	}
	return a.client.Me(ctx)
}

func (a *authService) RequestCode(ctx context.Context, email string) (string, error) {
	return a.client.RequestVerificationCode(ctx, email)
}

func (a *authService) ConfirmCode(ctx context.Context, email, code string) error {
	return a.client.ConfirmVerificationCode(ctx, email, code)
}

func (a *authService) ResendVerification(ctx context.Context, email string) error {
	return a.client.ResendVerification(ctx, email)
}

func (a *authService) VerifyLink(ctx context.Context, token string) (*pb.User, error) {
	resp, err := a.client.VerifyEmailLink(ctx, token)
	if err != nil {
		return nil, err
	}
	return a.remember(ctx, resp)
}

func (a *authService) Available(ctx context.Context, kind client.Availability, value string) (bool, error) {
	return a.client.CheckAvailable(ctx, kind, value)
}

// OAuth2URL returns the provider's consent URL and the random state it
// carries.
func (a *authService) OAuth2URL(ctx context.Context, provider string) (string, string, error) {
	state := uuid.NewString()
	u, err := a.client.OAuth2AuthURL(ctx, provider, state)
	if err != nil {
		return "", "", err
	}
	return u, state, nil
}

func (a *authService) OAuth2Login(ctx context.Context, provider, code string) (*pb.OAuth2LoginResponse, error) {
	resp, err := a.client.OAuth2Login(ctx, provider, code)
	if err != nil {
		return nil, err
	}
	if resp.Tokens != nil {
		if _, err := a.remember(ctx, &pb.AuthResponse{Tokens: resp.Tokens, User: resp.User}); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (a *authService) CompleteSignup(ctx context.Context, req *pb.CompleteSignupRequest) (*pb.User, error) {
	resp, err := a.client.CompleteOAuth2Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.remember(ctx, resp)
}

func (a *authService) UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.User, error) {
	resp, err := a.client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Tokens != nil {
		return a.remember(ctx, &pb.AuthResponse{Tokens: resp.Tokens, User: resp.User})
	}
	return resp.User, nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
