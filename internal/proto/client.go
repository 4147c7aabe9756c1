package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// IdentityServiceClient is the client API of the identity service.
type IdentityServiceClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*PingResponse, error)

	SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*AuthResponse, error)

	RequestVerificationCode(ctx context.Context, in *RequestCodeRequest, opts ...grpc.CallOption) (*RequestCodeResponse, error)
	ConfirmVerificationCode(ctx context.Context, in *ConfirmCodeRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)
	VerifyEmailLink(ctx context.Context, in *VerifyLinkRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	ResendVerification(ctx context.Context, in *ResendVerificationRequest, opts ...grpc.CallOption) (*emptypb.Empty, error)

	CheckUsernameAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error)
	CheckNicknameAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error)
	CheckEmailAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error)

	OAuth2AuthURL(ctx context.Context, in *AuthURLRequest, opts ...grpc.CallOption) (*AuthURLResponse, error)
	OAuth2Login(ctx context.Context, in *OAuth2LoginRequest, opts ...grpc.CallOption) (*OAuth2LoginResponse, error)
	CompleteOAuth2Signup(ctx context.Context, in *CompleteSignupRequest, opts ...grpc.CallOption) (*AuthResponse, error)

	Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*User, error)
	UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UpdateProfileResponse, error)
}

type identityServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewIdentityServiceClient returns a client that always speaks the JSON
// codec, whatever the connection's defaults are.
func NewIdentityServiceClient(cc grpc.ClientConnInterface) IdentityServiceClient {
	return &identityServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *identityServiceClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", in, opts)
}

func (c *identityServiceClient) SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "SignUp", in, opts)
}

func (c *identityServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Login", in, opts)
}

func (c *identityServiceClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Refresh", in, opts)
}

func (c *identityServiceClient) RequestVerificationCode(ctx context.Context, in *RequestCodeRequest, opts ...grpc.CallOption) (*RequestCodeResponse, error) {
	return invoke[RequestCodeResponse](ctx, c.cc, "RequestVerificationCode", in, opts)
}

func (c *identityServiceClient) ConfirmVerificationCode(ctx context.Context, in *ConfirmCodeRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "ConfirmVerificationCode", in, opts)
}

func (c *identityServiceClient) VerifyEmailLink(ctx context.Context, in *VerifyLinkRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "VerifyEmailLink", in, opts)
}

func (c *identityServiceClient) ResendVerification(ctx context.Context, in *ResendVerificationRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, "ResendVerification", in, opts)
}

func (c *identityServiceClient) CheckUsernameAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	return invoke[AvailabilityResponse](ctx, c.cc, "CheckUsernameAvailable", in, opts)
}

func (c *identityServiceClient) CheckNicknameAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	return invoke[AvailabilityResponse](ctx, c.cc, "CheckNicknameAvailable", in, opts)
}

func (c *identityServiceClient) CheckEmailAvailable(ctx context.Context, in *AvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityResponse, error) {
	return invoke[AvailabilityResponse](ctx, c.cc, "CheckEmailAvailable", in, opts)
}

func (c *identityServiceClient) OAuth2AuthURL(ctx context.Context, in *AuthURLRequest, opts ...grpc.CallOption) (*AuthURLResponse, error) {
	return invoke[AuthURLResponse](ctx, c.cc, "OAuth2AuthURL", in, opts)
}

func (c *identityServiceClient) OAuth2Login(ctx context.Context, in *OAuth2LoginRequest, opts ...grpc.CallOption) (*OAuth2LoginResponse, error) {
	return invoke[OAuth2LoginResponse](ctx, c.cc, "OAuth2Login", in, opts)
}

func (c *identityServiceClient) CompleteOAuth2Signup(ctx context.Context, in *CompleteSignupRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "CompleteOAuth2Signup", in, opts)
}

func (c *identityServiceClient) Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, "Me", in, opts)
}

func (c *identityServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UpdateProfileResponse, error) {
	return invoke[UpdateProfileResponse](ctx, c.cc, "UpdateProfile", in, opts)
}
