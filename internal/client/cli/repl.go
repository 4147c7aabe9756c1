package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool

	SignUp(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Refresh(ctx context.Context) error

	RequestCode(ctx context.Context) error
	ConfirmCode(ctx context.Context) error
	Resend(ctx context.Context) error
	VerifyLink(ctx context.Context, token string) error
	Check(ctx context.Context, kind, value string) error

	OAuthURL(ctx context.Context, provider string) error
	OAuthLogin(ctx context.Context, provider, code string) error
	CompleteSignup(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
}

const (
	helpGuest  = "Available commands: signup, login, code, confirm, resend, verify <token>, check <username|nickname|email> <value>, oauth-url <provider>, oauth-login <provider> <code>, complete-signup, exit"
	helpMember = "Available commands: whoami, profile, refresh, logout, code, confirm, resend, check <username|nickname|email> <value>, exit"
)

// runREPL reads commands line by line from reader and dispatches them to a.
// It returns on EOF or on "exit"/"quit". Command errors are printed and
// the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("gauth %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpMember)
			} else {
				printlnFn(helpGuest)
			}

		case "signup":
			cmdErr = a.SignUp(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "whoami", "me":
			cmdErr = a.Whoami(ctx)
		case "refresh":
			cmdErr = a.Refresh(ctx)
		case "profile":
			cmdErr = a.UpdateProfile(ctx)

		case "code":
			cmdErr = a.RequestCode(ctx)
		case "confirm":
			cmdErr = a.ConfirmCode(ctx)
		case "resend":
			cmdErr = a.Resend(ctx)
		case "verify":
			if len(args) != 1 {
				printlnFn("Usage: verify <token>")
				continue
			}
			cmdErr = a.VerifyLink(ctx, args[0])
		case "check":
			if len(args) != 2 {
				printlnFn("Usage: check <username|nickname|email> <value>")
				continue
			}
			cmdErr = a.Check(ctx, args[0], args[1])

		case "oauth-url":
			if len(args) != 1 {
				printlnFn("Usage: oauth-url <provider>")
				continue
			}
			cmdErr = a.OAuthURL(ctx, args[0])
		case "oauth-login":
			if len(args) != 2 {
				printlnFn("Usage: oauth-login <provider> <code>")
				continue
			}
			cmdErr = a.OAuthLogin(ctx, args[0], args[1])
		case "complete-signup":
			cmdErr = a.CompleteSignup(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
	}
}
