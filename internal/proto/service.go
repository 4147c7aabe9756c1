package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "gophauth.v1.IdentityService"

// FullMethod returns "/gophauth.v1.IdentityService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// IdentityServiceServer is the server API of the identity service.
type IdentityServiceServer interface {
	Ping(context.Context, *emptypb.Empty) (*PingResponse, error)

	SignUp(context.Context, *SignUpRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)

	RequestVerificationCode(context.Context, *RequestCodeRequest) (*RequestCodeResponse, error)
	ConfirmVerificationCode(context.Context, *ConfirmCodeRequest) (*emptypb.Empty, error)
	VerifyEmailLink(context.Context, *VerifyLinkRequest) (*AuthResponse, error)
	ResendVerification(context.Context, *ResendVerificationRequest) (*emptypb.Empty, error)

	CheckUsernameAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)
	CheckNicknameAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)
	CheckEmailAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error)

	OAuth2AuthURL(context.Context, *AuthURLRequest) (*AuthURLResponse, error)
	OAuth2Login(context.Context, *OAuth2LoginRequest) (*OAuth2LoginResponse, error)
	CompleteOAuth2Signup(context.Context, *CompleteSignupRequest) (*AuthResponse, error)

	Me(context.Context, *emptypb.Empty) (*User, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error)
}

// UnimplementedIdentityServiceServer answers every call with
// codes.Unimplemented. Embed it to stay forward compatible.
type UnimplementedIdentityServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedIdentityServiceServer) Ping(context.Context, *emptypb.Empty) (*PingResponse, error) {
	return nil, unimplemented("Ping")
}
func (UnimplementedIdentityServiceServer) SignUp(context.Context, *SignUpRequest) (*AuthResponse, error) {
	return nil, unimplemented("SignUp")
}
func (UnimplementedIdentityServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedIdentityServiceServer) Refresh(context.Context, *RefreshRequest) (*AuthResponse, error) {
	return nil, unimplemented("Refresh")
}
func (UnimplementedIdentityServiceServer) RequestVerificationCode(context.Context, *RequestCodeRequest) (*RequestCodeResponse, error) {
	return nil, unimplemented("RequestVerificationCode")
}
func (UnimplementedIdentityServiceServer) ConfirmVerificationCode(context.Context, *ConfirmCodeRequest) (*emptypb.Empty, error) {
	return nil, unimplemented("ConfirmVerificationCode")
}
func (UnimplementedIdentityServiceServer) VerifyEmailLink(context.Context, *VerifyLinkRequest) (*AuthResponse, error) {
	return nil, unimplemented("VerifyEmailLink")
}
func (UnimplementedIdentityServiceServer) ResendVerification(context.Context, *ResendVerificationRequest) (*emptypb.Empty, error) {
	return nil, unimplemented("ResendVerification")
}
func (UnimplementedIdentityServiceServer) CheckUsernameAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error) {
	return nil, unimplemented("CheckUsernameAvailable")
}
func (UnimplementedIdentityServiceServer) CheckNicknameAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error) {
	return nil, unimplemented("CheckNicknameAvailable")
}
func (UnimplementedIdentityServiceServer) CheckEmailAvailable(context.Context, *AvailabilityRequest) (*AvailabilityResponse, error) {
	return nil, unimplemented("CheckEmailAvailable")
}
func (UnimplementedIdentityServiceServer) OAuth2AuthURL(context.Context, *AuthURLRequest) (*AuthURLResponse, error) {
	return nil, unimplemented("OAuth2AuthURL")
}
func (UnimplementedIdentityServiceServer) OAuth2Login(context.Context, *OAuth2LoginRequest) (*OAuth2LoginResponse, error) {
	return nil, unimplemented("OAuth2Login")
}
func (UnimplementedIdentityServiceServer) CompleteOAuth2Signup(context.Context, *CompleteSignupRequest) (*AuthResponse, error) {
	return nil, unimplemented("CompleteOAuth2Signup")
}
func (UnimplementedIdentityServiceServer) Me(context.Context, *emptypb.Empty) (*User, error) {
	return nil, unimplemented("Me")
}
func (UnimplementedIdentityServiceServer) UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error) {
	return nil, unimplemented("UpdateProfile")
}

// unary builds the method descriptor for one RPC from its server method
// expression, e.g. unary("Login", IdentityServiceServer.Login).
func unary[Req any, Resp any](name string, call func(IdentityServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(IdentityServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var IdentityService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", IdentityServiceServer.Ping),
		unary("SignUp", IdentityServiceServer.SignUp),
		unary("Login", IdentityServiceServer.Login),
		unary("Refresh", IdentityServiceServer.Refresh),
		unary("RequestVerificationCode", IdentityServiceServer.RequestVerificationCode),
		unary("ConfirmVerificationCode", IdentityServiceServer.ConfirmVerificationCode),
		unary("VerifyEmailLink", IdentityServiceServer.VerifyEmailLink),
		unary("ResendVerification", IdentityServiceServer.ResendVerification),
		unary("CheckUsernameAvailable", IdentityServiceServer.CheckUsernameAvailable),
		unary("CheckNicknameAvailable", IdentityServiceServer.CheckNicknameAvailable),
		unary("CheckEmailAvailable", IdentityServiceServer.CheckEmailAvailable),
		unary("OAuth2AuthURL", IdentityServiceServer.OAuth2AuthURL),
		unary("OAuth2Login", IdentityServiceServer.OAuth2Login),
		unary("CompleteOAuth2Signup", IdentityServiceServer.CompleteOAuth2Signup),
		unary("Me", IdentityServiceServer.Me),
		unary("UpdateProfile", IdentityServiceServer.UpdateProfile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/identity.json",
}

func RegisterIdentityServiceServer(s grpc.ServiceRegistrar, srv IdentityServiceServer) {
	s.RegisterService(&IdentityService_ServiceDesc, srv)
}
