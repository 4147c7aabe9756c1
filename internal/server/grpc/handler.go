package grpc

import (
	"context"
	"strings"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

func toPBTokens(p *auth.TokenPair) *pb.TokenPair {
	if p == nil {
		return nil
	}
	return &pb.TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

func toPBUser(u *services.UserView) *pb.User {
	if u == nil {
		return nil
	}
	return &pb.User{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Nickname:      u.Nickname,
		Name:          u.Name,
		ProfileImage:  u.ProfileImage,
		Role:          string(u.Role),
		Provider:      string(u.Provider),
		EmailVerified: u.EmailVerified,
		Enabled:       u.Enabled,
	}
}

func toAuthResponse(r *services.AuthResult) *pb.AuthResponse {
	return &pb.AuthResponse{Tokens: toPBTokens(r.Tokens), User: toPBUser(r.User)}
}

func toOAuth2Response(r *services.CallbackResult) *pb.OAuth2LoginResponse {
	out := &pb.OAuth2LoginResponse{
		Outcome:     r.Outcome.String(),
		Tokens:      toPBTokens(r.Tokens),
		User:        toPBUser(r.User),
		SignupToken: r.SignupToken,
	}
	if r.Outcome == services.SignupRequired {
		out.Profile = &pb.ProviderProfile{
			Provider:   string(r.Profile.Provider),
			ExternalID: r.Profile.ExternalID,
			Name:       r.Profile.Name,
			Email:      r.Profile.Email,
			ImageURL:   r.Profile.ImageURL,
		}
	}
	return out
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*pb.PingResponse, error) {
	return &pb.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) SignUp(ctx context.Context, req *pb.SignUpRequest) (*pb.AuthResponse, error) {
	res, err := s.users.SignUp(ctx, services.SignUpRequest{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Nickname: req.Nickname,
		Name:     req.Name,
		Code:     req.Code,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.AuthResponse, error) {
	res, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.AuthResponse, error) {
	res, err := s.users.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) RequestVerificationCode(ctx context.Context, req *pb.RequestCodeRequest) (*pb.RequestCodeResponse, error) {
	code, err := s.users.RequestVerificationCode(ctx, req.Email)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.RequestCodeResponse{Code: code}, nil
}

func (s *GRPCServer) ConfirmVerificationCode(ctx context.Context, req *pb.ConfirmCodeRequest) (*emptypb.Empty, error) {
	if err := s.users.ConfirmVerificationCode(ctx, req.Email, req.Code); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) VerifyEmailLink(ctx context.Context, req *pb.VerifyLinkRequest) (*pb.AuthResponse, error) {
	res, err := s.users.VerifyEmailLink(ctx, req.Token)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) ResendVerification(ctx context.Context, req *pb.ResendVerificationRequest) (*emptypb.Empty, error) {
	if err := s.users.ResendVerification(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func availability(ok bool, err error) (*pb.AvailabilityResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AvailabilityResponse{Available: ok}, nil
}

func (s *GRPCServer) CheckUsernameAvailable(ctx context.Context, req *pb.AvailabilityRequest) (*pb.AvailabilityResponse, error) {
	return availability(s.users.CheckUsernameAvailable(ctx, req.Value))
}

func (s *GRPCServer) CheckNicknameAvailable(ctx context.Context, req *pb.AvailabilityRequest) (*pb.AvailabilityResponse, error) {
	return availability(s.users.CheckNicknameAvailable(ctx, req.Value))
}

func (s *GRPCServer) CheckEmailAvailable(ctx context.Context, req *pb.AvailabilityRequest) (*pb.AvailabilityResponse, error) {
	return availability(s.users.CheckEmailAvailable(ctx, req.Value))
}

func (s *GRPCServer) OAuth2AuthURL(ctx context.Context, req *pb.AuthURLRequest) (*pb.AuthURLResponse, error) {
	u, err := s.federation.AuthURL(ctx, req.Provider, req.State)
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.AuthURLResponse{URL: u}, nil
}

func (s *GRPCServer) OAuth2Login(ctx context.Context, req *pb.OAuth2LoginRequest) (*pb.OAuth2LoginResponse, error) {
	res, err := s.federation.Authenticate(ctx, req.Provider, req.Code)
	if err != nil {
		return nil, toStatus(err)
	}
	return toOAuth2Response(res), nil
}

// CompleteOAuth2Signup requires the signup token issued for the same email
// by the OAuth2 flow.
func (s *GRPCServer) CompleteOAuth2Signup(ctx context.Context, req *pb.CompleteSignupRequest) (*pb.AuthResponse, error) {
	subject, err := s.tokens.AuthenticateSignup(req.SignupToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid signup token")
	}
	if !strings.EqualFold(subject, strings.TrimSpace(req.Email)) {
		return nil, status.Error(codes.PermissionDenied, "signup token does not match email")
	}

	res, err := s.federation.CompleteSignup(ctx, services.CompleteSignupRequest{
		Email:        req.Email,
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
		Nickname:     req.Nickname,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuthResponse(res), nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *emptypb.Empty) (*pb.User, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	u, err := s.users.Me(ctx, p)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBUser(u), nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.UpdateProfileResponse, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	res, err := s.users.UpdateProfile(ctx, p, services.UpdateProfileRequest{
		Name:     req.Name,
		Nickname: req.Nickname,
		Email:    req.Email,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.UpdateProfileResponse{User: toPBUser(res.User), Tokens: toPBTokens(res.Tokens)}, nil
}
