package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

type userService interface {
	SignUp(ctx context.Context, req services.SignUpRequest) (*services.AuthResult, error)
	Login(ctx context.Context, username, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)

	RequestVerificationCode(ctx context.Context, email string) (string, error)
	ConfirmVerificationCode(ctx context.Context, email, code string) error
	VerifyEmailLink(ctx context.Context, token string) (*services.AuthResult, error)
	ResendVerification(ctx context.Context, email string) error

	CheckUsernameAvailable(ctx context.Context, username string) (bool, error)
	CheckNicknameAvailable(ctx context.Context, nickname string) (bool, error)
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)

	Principal(ctx context.Context, accessToken string) (models.Principal, error)
	Me(ctx context.Context, p models.Principal) (*services.UserView, error)
	UpdateProfile(ctx context.Context, p models.Principal, req services.UpdateProfileRequest) (*services.ProfileUpdate, error)
}

type federationService interface {
	AuthURL(ctx context.Context, provider, state string) (string, error)
	Authenticate(ctx context.Context, provider, code string) (*services.CallbackResult, error)
	CompleteSignup(ctx context.Context, req services.CompleteSignupRequest) (*services.AuthResult, error)
}

// tokenAuthenticator checks signup tokens handed out by the OAuth2 flow.
type tokenAuthenticator interface {
	AuthenticateSignup(token string) (string, error)
}

type GRPCServer struct {
	pb.UnimplementedIdentityServiceServer
	address    string
	users      userService
	federation federationService
	tokens     tokenAuthenticator
	logger     logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, us userService, fs federationService, tokens tokenAuthenticator) *GRPCServer {
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		users:      us,
		federation: fs,
		tokens:     tokens,
	}
}

// newServer builds the gRPC server with tracing and the access-token
// interceptor and registers the identity service on it.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
	)
	pb.RegisterIdentityServiceServer(srv, s)
	return srv
}

// Run serves until ctx is done, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	return srv.Serve(listen)
}
