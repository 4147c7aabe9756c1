package cli

import (
	"context"
	"fmt"
)

// RequestCode mails a signup verification code. When the server exposes
// codes for debugging it is printed too.
func (a *App) RequestCode(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	code, err := a.authService.RequestCode(ctx, email)
	if err != nil {
		return err
	}
	if code != "" {
		fmt.Fprintf(a.out, "Code sent: %s\n", code)
	} else {
		fmt.Fprintln(a.out, "Code sent, check your inbox")
	}
	return nil
}

func (a *App) ConfirmCode(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	code, err := getSimpleText(a.reader, "Enter code", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.ConfirmCode(ctx, email, code); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email confirmed, you can sign up with this code now")
	return nil
}

// Resend asks for a new verification link for an existing unverified account.
func (a *App) Resend(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.authService.ResendVerification(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Verification link sent")
	return nil
}

// VerifyLink redeems the token from a verification email. The account is
// signed in afterwards.
func (a *App) VerifyLink(ctx context.Context, token string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.authService.VerifyLink(ctx, token)
	if err != nil {
		return err
	}
	a.signedIn(u)
	fmt.Fprintf(a.out, "Email of %s verified\n", displayName(u))
	return nil
}
