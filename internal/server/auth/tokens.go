// Package auth issues and validates the HS256 bearer tokens handed out by the
// identity server. Access and refresh tokens share one layout and differ only
// in lifetime. Signup tokens additionally carry the SignupAudience and are
// never accepted as session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

// SignupAudience marks tokens that only authorize finishing an OAuth2 signup.
const SignupAudience = "oauth2-signup"

// TokenPair bundles a short-lived access token and a longer-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService signs tokens with a single process-wide secret.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        timex.Clock
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, now timex.Clock) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if now == nil {
		now = timex.SystemClock
	}
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}, nil
}

func (s *TokenService) IssueAccessToken(subject string) (string, error) {
	return s.issue(subject, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(subject string) (string, error) {
	return s.issue(subject, s.refreshTTL)
}

// IssueSignupToken mints a token for subject, usually an email, that only
// AuthenticateSignup accepts. It lives as long as an access token.
func (s *TokenService) IssueSignupToken(subject string) (string, error) {
	return s.issue(subject, s.accessTTL, SignupAudience)
}

// IssuePair mints an access and a refresh token for the same subject.
func (s *TokenService) IssuePair(subject string) (*TokenPair, error) {
	access, err := s.IssueAccessToken(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(subject)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(subject string, ttl time.Duration, audience ...string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", common.ErrValidation)
	}
	issuedAt := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		Audience:  audience,
	})
	return token.SignedString(s.secret)
}

// Validate reports whether token is a session token: a good HS256 signature
// from this service, not expired and without an audience. It never returns
// an error: any problem reads as false.
func (s *TokenService) Validate(token string) bool {
	claims, err := s.parse(token,
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err == nil && len(claims.Audience) == 0
}

// SubjectOf returns the subject of a token whose signature checks out. It
// does not look at expiry; call Validate first before trusting the result.
func (s *TokenService) SubjectOf(token string) (string, error) {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", common.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

// Authenticate combines Validate and SubjectOf.
func (s *TokenService) Authenticate(token string) (string, error) {
	if !s.Validate(token) {
		return "", common.ErrInvalidToken
	}
	return s.SubjectOf(token)
}

// AuthenticateSignup returns the subject of a live signup token. Session
// tokens are rejected.
func (s *TokenService) AuthenticateSignup(token string) (string, error) {
	claims, err := s.parse(token,
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(SignupAudience),
	)
	if err != nil || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *TokenService) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
