package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// displayName mirrors the label stored with the session.
func displayName(u *pb.User) string {
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

func (a *App) printUser(u *pb.User) {
	if u == nil {
		return
	}
	fmt.Fprintf(a.out, "id:       %s\n", u.ID)
	fmt.Fprintf(a.out, "username: %s\n", u.Username)
	fmt.Fprintf(a.out, "nickname: %s\n", u.Nickname)
	fmt.Fprintf(a.out, "name:     %s\n", u.Name)
	fmt.Fprintf(a.out, "email:    %s (verified: %t)\n", u.Email, u.EmailVerified)
	fmt.Fprintf(a.out, "role:     %s\n", u.Role)
	fmt.Fprintf(a.out, "provider: %s\n", u.Provider)
}

// signedIn records u as the current user when the call returned a session.
func (a *App) signedIn(u *pb.User) {
	if u != nil && u.Enabled {
		a.who = displayName(u)
	}
}

// SignUp prompts for a local account. Email, nickname and verification code
// are optional; without a code an email address stays unverified.
func (a *App) SignUp(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	req := &pb.SignUpRequest{Username: username, Password: string(password)}

	if req.Email, err = getSimpleText(a.reader, "Enter email (empty to skip)", a.out); err != nil {
		return err
	}
	if req.Email != "" {
		if req.Code, err = getSimpleText(a.reader, "Enter verification code (empty to skip)", a.out); err != nil {
			return err
		}
	}
	if req.Nickname, err = getSimpleText(a.reader, "Enter nickname (empty to derive one)", a.out); err != nil {
		return err
	}
	if req.Name, err = getSimpleText(a.reader, "Enter name (empty to skip)", a.out); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.SignUp(ctx, req)
	if err != nil {
		return err
	}
	a.signedIn(u)

	fmt.Fprintf(a.out, "Signed up as %s\n", displayName(u))
	return nil
}

// Login prompts for a username or email and a password.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Login(ctx, username, password)
	if err != nil {
		return err
	}
	a.signedIn(u)
	a.setMode(ModeOnline)

	fmt.Fprintf(a.out, "Welcome, %s\n", displayName(u))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.who = ""
	a.pending = nil
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.Whoami(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Tokens refreshed")
	return nil
}

// UpdateProfile asks for new name, nickname and email; skipped answers keep
// the current value.
func (a *App) UpdateProfile(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	req := &pb.UpdateProfileRequest{}
	var err error
	if req.Name, err = GetOptional(a.reader, "New name", a.out); err != nil {
		return err
	}
	if req.Nickname, err = GetOptional(a.reader, "New nickname", a.out); err != nil {
		return err
	}
	if req.Email, err = GetOptional(a.reader, "New email", a.out); err != nil {
		return err
	}
	if req.Name == nil && req.Nickname == nil && req.Email == nil {
		fmt.Fprintln(a.out, "Nothing to update")
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.UpdateProfile(ctx, req)
	if err != nil {
		return err
	}
	a.signedIn(u)
	a.printUser(u)
	return nil
}

// Check reports whether a username, nickname or email is still free.
func (a *App) Check(ctx context.Context, kind, value string) error {
	var k client.Availability
	switch strings.ToLower(kind) {
	case "username":
		k = client.AvailabilityUsername
	case "nickname":
		k = client.AvailabilityNickname
	case "email":
		k = client.AvailabilityEmail
	default:
		return fmt.Errorf("unknown field %q", kind)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	ok, err := a.authService.Available(ctx, k, value)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(a.out, "%s %q is available\n", k, value)
	} else {
		fmt.Fprintf(a.out, "%s %q is taken\n", k, value)
	}
	return nil
}
