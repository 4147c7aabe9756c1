package cli

import (
	"context"
	"errors"
	"fmt"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

var errNoPendingSignup = errors.New("no pending social signup, run oauth-login first")

// OAuthURL prints the provider consent URL. The user opens it in a browser
// and passes the returned code to oauth-login.
func (a *App) OAuthURL(ctx context.Context, provider string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, state, err := a.authService.OAuth2URL(ctx, provider)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Open in a browser:\n%s\nstate: %s\n", u, state)
	return nil
}

// OAuthLogin exchanges an authorization code. A first-time social user is
// kept pending until complete-signup.
func (a *App) OAuthLogin(ctx context.Context, provider, code string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.authService.OAuth2Login(ctx, provider, code)
	if err != nil {
		return err
	}

	if resp.Outcome == pb.OutcomeSignupRequired {
		a.pending = resp
		email := ""
		if resp.Profile != nil {
			email = resp.Profile.Email
		}
		fmt.Fprintf(a.out, "Signup required for %s, run complete-signup\n", email)
		return nil
	}

	a.pending = nil
	a.signedIn(resp.User)
	fmt.Fprintf(a.out, "Welcome, %s\n", displayName(resp.User))
	return nil
}

// CompleteSignup finishes the pending social signup started by OAuthLogin.
func (a *App) CompleteSignup(ctx context.Context) error {
	if a.pending == nil || a.pending.Profile == nil {
		return errNoPendingSignup
	}
	p := a.pending.Profile

	req := &pb.CompleteSignupRequest{
		SignupToken:  a.pending.SignupToken,
		Email:        p.Email,
		Name:         p.Name,
		ProfileImage: p.ImageURL,
	}

	var err error
	if req.Nickname, err = getSimpleText(a.reader, "Choose nickname (empty to derive one)", a.out); err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, fmt.Sprintf("Name [%s]", p.Name), a.out)
	if err != nil {
		return err
	}
	if name != "" {
		req.Name = name
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.CompleteSignup(ctx, req)
	if err != nil {
		return err
	}
	a.pending = nil
	a.signedIn(u)
	fmt.Fprintf(a.out, "Welcome, %s\n", displayName(u))
	return nil
}
