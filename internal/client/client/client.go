package client

import (
	"context"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

// Availability selects which identifier CheckAvailable looks at.
type Availability string

const (
	AvailabilityUsername Availability = "username"
	AvailabilityNickname Availability = "nickname"
	AvailabilityEmail    Availability = "email"
)

// TokenListener is told about every token pair the client starts using,
// including pairs obtained by a transparent refresh.
type TokenListener func(ctx context.Context, accessToken, refreshToken string) error

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	SetTokens(accessToken, refreshToken string)
	OnTokens(l TokenListener)

	SignUp(ctx context.Context, req *pb.SignUpRequest) (*pb.AuthResponse, error)
	Login(ctx context.Context, username, password string) (*pb.AuthResponse, error)
	Refresh(ctx context.Context) (*pb.AuthResponse, error)

	RequestVerificationCode(ctx context.Context, email string) (string, error)
	ConfirmVerificationCode(ctx context.Context, email, code string) error
	VerifyEmailLink(ctx context.Context, token string) (*pb.AuthResponse, error)
	ResendVerification(ctx context.Context, email string) error
	CheckAvailable(ctx context.Context, kind Availability, value string) (bool, error)

	OAuth2AuthURL(ctx context.Context, provider, state string) (string, error)
	OAuth2Login(ctx context.Context, provider, code string) (*pb.OAuth2LoginResponse, error)
	CompleteOAuth2Signup(ctx context.Context, req *pb.CompleteSignupRequest) (*pb.AuthResponse, error)

	Me(ctx context.Context) (*pb.User, error)
	UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.UpdateProfileResponse, error)
}
