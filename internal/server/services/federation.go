package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/providers"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// OAuthClient runs the provider side of the authorization-code flow.
type OAuthClient interface {
	AuthURL(provider, state string) (string, error)
	Exchange(ctx context.Context, provider, code string) (map[string]any, error)
}

// CallbackOutcome tells the caller what to do after a provider callback.
type CallbackOutcome int

const (
	// LoginCompleted carries a token pair for an active account.
	LoginCompleted CallbackOutcome = iota + 1
	// SignupRequired carries the provisional profile of a pending account
	// and a signup token that authorizes CompleteSignup for its email.
	SignupRequired
)

func (o CallbackOutcome) String() string {
	switch o {
	case LoginCompleted:
		return "login_completed"
	case SignupRequired:
		return "signup_required"
	}
	return "unknown"
}

type CallbackResult struct {
	Outcome     CallbackOutcome
	Tokens      *auth.TokenPair
	User        *UserView
	Profile     providers.Profile
	SignupToken string
}

type CompleteSignupRequest struct {
	Email        string `validate:"required,email"`
	Name         string `validate:"max=50"`
	ProfileImage string `validate:"omitempty,url,max=2048"`
	Nickname     string `validate:"omitempty,min=2,max=20"`
}

// FederationService maps OAuth2 provider identities onto local accounts.
// A first login creates a pending account; CompleteSignup activates it.
type FederationService struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	client      OAuthClient
	logger      logging.Logger
	now         timex.Clock
}

func NewFederationService(store dbx.Store, m repomanager.RepositoryManager, tokens *auth.TokenService,
	client OAuthClient, l logging.Logger, now timex.Clock) *FederationService {
	return &FederationService{
		store:       store,
		repomanager: m,
		tokens:      tokens,
		client:      client,
		logger:      l.With("module", "federation_service"),
		now:         now,
	}
}

// AuthURL returns the provider consent page for state.
func (s *FederationService) AuthURL(ctx context.Context, provider, state string) (string, error) {
	u, err := s.client.AuthURL(provider, state)
	if err != nil {
		return "", classify(ctx, s.logger, "auth url", err)
	}
	return u, nil
}

// Authenticate exchanges an authorization code and resolves the user info
// the provider returned. This is the only way provider attributes enter.
func (s *FederationService) Authenticate(ctx context.Context, provider, code string) (*CallbackResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, classify(ctx, s.logger, "oauth2 login", fmt.Errorf("%w: empty code", common.ErrValidation))
	}
	attrs, err := s.client.Exchange(ctx, provider, code)
	if err != nil {
		return nil, classify(ctx, s.logger, "oauth2 login", err)
	}
	return s.handleCallback(ctx, provider, attrs)
}

// handleCallback resolves raw provider attributes to a local account.
func (s *FederationService) handleCallback(ctx context.Context, provider string, attrs map[string]any) (*CallbackResult, error) {
	adapter, err := providers.Lookup(provider)
	if err != nil {
		return nil, classify(ctx, s.logger, "oauth2 callback", err)
	}
	profile, err := adapter.Extract(attrs)
	if err != nil {
		return nil, classify(ctx, s.logger, "oauth2 callback", err)
	}
	return s.handleProfile(ctx, profile)
}

// handleProfile finds the account by provider identity, then by email.
// An email owned through another provider, or through another identity of
// the same provider, is a mismatch and nothing is written.
func (s *FederationService) handleProfile(ctx context.Context, profile providers.Profile) (*CallbackResult, error) {
	email := normalizeEmail(profile.ResolvedEmail())

	var user *models.User
	err := s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		found, err := s.findLinked(ctx, repo, profile, email)
		switch {
		case err == nil:
			user = found
			if !refreshProfile(user, profile) {
				return nil
			}
			return repo.Update(ctx, user)
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		user = &models.User{
			Email:         &email,
			Name:          profile.Name,
			ProfileImage:  profile.ImageURL,
			Role:          models.RoleUser,
			Provider:      profile.Provider,
			ProviderID:    models.Ptr(profile.ExternalID),
			Enabled:       false,
			EmailVerified: profile.Email != "",
		}
		if user.EmailVerified {
			at := s.now()
			user.EmailVerifiedAt = &at
		}
		user, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		return nil, classify(ctx, s.logger, "oauth2 callback", err)
	}

	if user.Enabled {
		pair, err := s.tokens.IssuePair(user.Subject())
		if err != nil {
			return nil, classify(ctx, s.logger, "oauth2 callback", err)
		}
		s.logger.Info(ctx, "oauth2 login", "user_id", user.ID, "provider", user.Provider)
		return &CallbackResult{Outcome: LoginCompleted, Tokens: pair, User: viewOf(user), Profile: profile}, nil
	}

	signupToken, err := s.tokens.IssueSignupToken(email)
	if err != nil {
		return nil, classify(ctx, s.logger, "oauth2 callback", err)
	}
	s.logger.Info(ctx, "oauth2 signup pending", "user_id", user.ID, "provider", user.Provider)
	return &CallbackResult{Outcome: SignupRequired, User: viewOf(user), Profile: profile, SignupToken: signupToken}, nil
}

func (s *FederationService) findLinked(ctx context.Context, repo users.Repository, profile providers.Profile,
	email string) (*models.User, error) {
	user, err := repo.FindByProviderAndProviderID(ctx, profile.Provider, profile.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	user, err = repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Provider != profile.Provider || models.Deref(user.ProviderID) != profile.ExternalID {
		s.logger.Warn(ctx, "provider mismatch", "user_id", user.ID,
			"stored_provider", user.Provider, "presented_provider", profile.Provider)
		return nil, common.ErrProviderMismatch
	}
	return user, nil
}

// refreshProfile copies the provider-owned fields and reports whether
// anything changed.
func refreshProfile(u *models.User, p providers.Profile) bool {
	changed := false
	if p.Name != "" && p.Name != u.Name {
		u.Name = p.Name
		changed = true
	}
	if p.ImageURL != "" && p.ImageURL != u.ProfileImage {
		u.ProfileImage = p.ImageURL
		changed = true
	}
	return changed
}

// CompleteSignup activates a pending federated account, optionally
// overriding the provisional profile. Without a nickname one is derived
// from the name.
func (s *FederationService) CompleteSignup(ctx context.Context, req CompleteSignupRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.ProfileImage = strings.TrimSpace(req.ProfileImage)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if err := validateStruct(&req); err != nil {
		return nil, classify(ctx, s.logger, "complete signup", err)
	}

	var user *models.User
	err := s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		var err error
		user, err = repo.FindByEmail(ctx, req.Email)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		if user.Provider == models.ProviderLocal {
			return common.ErrNotOAuthAccount
		}
		if user.Enabled {
			return common.ErrAlreadyCompleted
		}

		if req.Name != "" {
			user.Name = req.Name
		}
		if req.ProfileImage != "" {
			user.ProfileImage = req.ProfileImage
		}

		nickname := req.Nickname
		if nickname != "" {
			taken, err := repo.ExistsByNickname(ctx, nickname)
			if err != nil {
				return err
			}
			if taken {
				return duplicate("nickname")
			}
		} else {
			nickname, err = ResolveNickname(ctx, repo, user.Name)
			if err != nil {
				return err
			}
		}
		user.Nickname = &nickname
		user.Enabled = true

		return repo.Update(ctx, user)
	})
	if err != nil {
		return nil, classify(ctx, s.logger, "complete signup", err)
	}

	pair, err := s.tokens.IssuePair(user.Subject())
	if err != nil {
		return nil, classify(ctx, s.logger, "complete signup", err)
	}
	s.logger.Info(ctx, "oauth2 signup completed", "user_id", user.ID, "provider", user.Provider)
	return &AuthResult{Tokens: pair, User: viewOf(user)}, nil
}
