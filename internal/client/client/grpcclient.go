package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.IdentityServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	listener     TokenListener
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
}

func (s *GRPCClient) OnTokens(l TokenListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// useTokens switches to a new pair and notifies the listener.
func (s *GRPCClient) useTokens(ctx context.Context, p *pb.TokenPair) error {
	if p == nil {
		return nil
	}
	s.mu.Lock()
	s.accessToken = p.AccessToken
	s.refreshToken = p.RefreshToken
	l := s.listener
	s.mu.Unlock()

	if l == nil {
		return nil
	}
	return l(ctx, p.AccessToken, p.RefreshToken)
}

// accessTokenInterceptor attaches the access token to every call. When the
// server rejects it as invalid the pair is refreshed once and the call is
// retried.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	accessToken, refreshToken := s.tokens()
	err := invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrInvalidToken.Error() {
		return err
	}
	if refreshToken == "" || method == pb.FullMethod("Refresh") {
		return err
	}

	resp, rerr := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refreshToken})
	if rerr != nil {
		return err
	}
	if lerr := s.useTokens(ctx, resp.Tokens); lerr != nil {
		return lerr
	}

	accessToken, _ = s.tokens()
	return invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
}

func NewIdentityClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewIdentityServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) authResponse(ctx context.Context, resp *pb.AuthResponse, err error) (*pb.AuthResponse, error) {
	if err != nil {
		return nil, s.mapError(err)
	}
	if err := s.useTokens(ctx, resp.Tokens); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCClient) SignUp(ctx context.Context, req *pb.SignUpRequest) (*pb.AuthResponse, error) {
	resp, err := s.client.SignUp(ctx, req)
	return s.authResponse(ctx, resp, err)
}

func (s *GRPCClient) Login(ctx context.Context, username, password string) (*pb.AuthResponse, error) {
	resp, err := s.client.Login(ctx, &pb.LoginRequest{Username: username, Password: password})
	return s.authResponse(ctx, resp, err)
}

func (s *GRPCClient) Refresh(ctx context.Context) (*pb.AuthResponse, error) {
	_, refreshToken := s.tokens()
	if refreshToken == "" {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refreshToken})
	return s.authResponse(ctx, resp, err)
}

func (s *GRPCClient) RequestVerificationCode(ctx context.Context, email string) (string, error) {
	resp, err := s.client.RequestVerificationCode(ctx, &pb.RequestCodeRequest{Email: email})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Code, nil
}

func (s *GRPCClient) ConfirmVerificationCode(ctx context.Context, email, code string) error {
	_, err := s.client.ConfirmVerificationCode(ctx, &pb.ConfirmCodeRequest{Email: email, Code: code})
	return s.mapError(err)
}

func (s *GRPCClient) VerifyEmailLink(ctx context.Context, token string) (*pb.AuthResponse, error) {
	resp, err := s.client.VerifyEmailLink(ctx, &pb.VerifyLinkRequest{Token: token})
	return s.authResponse(ctx, resp, err)
}

func (s *GRPCClient) ResendVerification(ctx context.Context, email string) error {
	_, err := s.client.ResendVerification(ctx, &pb.ResendVerificationRequest{Email: email})
	return s.mapError(err)
}

func (s *GRPCClient) CheckAvailable(ctx context.Context, kind Availability, value string) (bool, error) {
	req := &pb.AvailabilityRequest{Value: value}

	var (
		resp *pb.AvailabilityResponse
		err  error
	)
	switch kind {
	case AvailabilityUsername:
		resp, err = s.client.CheckUsernameAvailable(ctx, req)
	case AvailabilityNickname:
		resp, err = s.client.CheckNicknameAvailable(ctx, req)
	case AvailabilityEmail:
		resp, err = s.client.CheckEmailAvailable(ctx, req)
	default:
		return false, fmt.Errorf("%w: unknown availability check %q", ErrRejected, kind)
	}
	if err != nil {
		return false, s.mapError(err)
	}
	return resp.Available, nil
}

func (s *GRPCClient) OAuth2AuthURL(ctx context.Context, provider, state string) (string, error) {
	resp, err := s.client.OAuth2AuthURL(ctx, &pb.AuthURLRequest{Provider: provider, State: state})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.URL, nil
}

func (s *GRPCClient) OAuth2Login(ctx context.Context, provider, code string) (*pb.OAuth2LoginResponse, error) {
	resp, err := s.client.OAuth2Login(ctx, &pb.OAuth2LoginRequest{Provider: provider, Code: code})
	if err != nil {
		return nil, s.mapError(err)
	}
	if err := s.useTokens(ctx, resp.Tokens); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCClient) CompleteOAuth2Signup(ctx context.Context, req *pb.CompleteSignupRequest) (*pb.AuthResponse, error) {
	resp, err := s.client.CompleteOAuth2Signup(ctx, req)
	return s.authResponse(ctx, resp, err)
}

func (s *GRPCClient) Me(ctx context.Context) (*pb.User, error) {
	resp, err := s.client.Me(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.UpdateProfileResponse, error) {
	resp, err := s.client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	if err := s.useTokens(ctx, resp.Tokens); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition, codes.NotFound, codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
