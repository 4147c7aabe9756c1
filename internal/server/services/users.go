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
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// PasswordHasher is the slow one-way password function.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

type SignUpRequest struct {
	Username string      `validate:"required,min=4,max=20,excludesall=@"`
	Password string      `validate:"required,min=8,max=128"`
	Email    string      `validate:"omitempty,email,max=254"`
	Nickname string      `validate:"omitempty,min=2,max=20"`
	Name     string      `validate:"max=50"`
	Code     string      `validate:"omitempty,len=6,numeric"`
	Role     models.Role `validate:"omitempty,oneof=USER SELLER"`
}

func (r *SignUpRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)
	r.Nickname = strings.TrimSpace(r.Nickname)
	r.Name = strings.TrimSpace(r.Name)
	r.Code = strings.TrimSpace(r.Code)
	r.Role = models.Role(strings.ToUpper(strings.TrimSpace(string(r.Role))))
}

// UpdateProfileRequest carries the fields to change; nil leaves a field as
// it is.
type UpdateProfileRequest struct {
	Name     *string `validate:"omitempty,max=50"`
	Nickname *string `validate:"omitempty,min=2,max=20"`
	Email    *string `validate:"omitempty,email,max=254"`
}

// ProfileUpdate is the outcome of UpdateProfile. Tokens is set only when the
// token subject changed and the caller's tokens no longer resolve.
type ProfileUpdate struct {
	User   *UserView
	Tokens *auth.TokenPair
}

// UserService implements local signup, login, token refresh and the
// account self-service operations.
type UserService struct {
	store         dbx.Store
	repomanager   repomanager.RepositoryManager
	tokens        *auth.TokenService
	hasher        PasswordHasher
	verifications *VerificationService
	logger        logging.Logger
	now           timex.Clock
	exposeCode    bool
}

func NewUserService(store dbx.Store, m repomanager.RepositoryManager, tokens *auth.TokenService,
	hasher PasswordHasher, v *VerificationService, l logging.Logger, cfg *config.Config, now timex.Clock) *UserService {
	return &UserService{
		store:         store,
		repomanager:   m,
		tokens:        tokens,
		hasher:        hasher,
		verifications: v,
		logger:        l.With("module", "user_service"),
		now:           now,
		exposeCode:    cfg.ExposeVerificationCode,
	}
}

func duplicate(field string) error {
	return fmt.Errorf("%w: %s", common.ErrDuplicateIdentity, field)
}

// SignUp creates an enabled local account.
//
// Guards run in order and the first failure aborts without writing: email
// taken, username taken, nickname taken, and, when both email and code are
// given, the code must be confirmed. An email without a code is accepted
// and stays unverified. The unique indexes close the race between the
// checks and the insert.
func (s *UserService) SignUp(ctx context.Context, req SignUpRequest) (*AuthResult, error) {
	req.normalize()
	if err := validateStruct(&req); err != nil {
		return nil, classify(ctx, s.logger, "signup", err)
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, classify(ctx, s.logger, "signup", err)
	}

	var user *models.User
	err = s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		vrepo := s.repomanager.Verifications(tx)

		if req.Email != "" {
			taken, err := repo.ExistsByEmail(ctx, req.Email)
			if err != nil {
				return err
			}
			if taken {
				return duplicate("email")
			}
		}

		taken, err := repo.ExistsByUsername(ctx, req.Username)
		if err != nil {
			return err
		}
		if taken {
			return duplicate("username")
		}

		if req.Nickname != "" {
			taken, err := repo.ExistsByNickname(ctx, req.Nickname)
			if err != nil {
				return err
			}
			if taken {
				return duplicate("nickname")
			}
		}

		var proof *models.VerificationRecord
		if req.Email != "" && req.Code != "" {
			proof, err = s.verifications.requireConfirmed(ctx, vrepo, req.Email, req.Code)
			if err != nil {
				return err
			}
		}

		nickname := req.Nickname
		if nickname == "" {
			nickname, err = ResolveNickname(ctx, repo, req.Username)
			if err != nil {
				return err
			}
		}

		user = &models.User{
			Email:        models.Ptr(req.Email),
			Username:     models.Ptr(req.Username),
			Nickname:     models.Ptr(nickname),
			PasswordHash: &digest,
			Name:         req.Name,
			Role:         req.Role,
			Provider:     models.ProviderLocal,
			Enabled:      true,
		}
		if proof != nil {
			at := s.now()
			user.EmailVerified = true
			user.EmailVerifiedAt = &at
		}

		if user, err = repo.Create(ctx, user); err != nil {
			return err
		}

		if proof != nil {
			s.verifications.consume(ctx, proof, vrepo.MarkUsedInSavepoint)
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, s.logger, "signup", err)
	}

	s.logger.Info(ctx, "user signed up", "user_id", user.ID, "email_verified", user.EmailVerified)
	return s.authResult(ctx, "signup", user)
}

// Login authenticates a local account by username and password.
func (s *UserService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	repo := s.repomanager.Users(s.store.Conn())

	user, err := repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrAccountNotFound
		}
		return nil, classify(ctx, s.logger, "login", err)
	}
	if !user.Enabled {
		return nil, classify(ctx, s.logger, "login", common.ErrAccountDisabled)
	}
	if user.PasswordHash == nil {
		return nil, classify(ctx, s.logger, "login", common.ErrBadCredentials)
	}

	ok, err := s.hasher.Verify(password, *user.PasswordHash)
	if err != nil {
		return nil, classify(ctx, s.logger, "login", err)
	}
	if !ok {
		return nil, classify(ctx, s.logger, "login", common.ErrBadCredentials)
	}

	return s.authResult(ctx, "login", user)
}

// Refresh exchanges a valid refresh token for a new pair. The presented
// token is not revoked; it stays usable until it expires.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if !s.tokens.Validate(refreshToken) {
		return nil, classify(ctx, s.logger, "refresh", common.ErrInvalidToken)
	}
	subject, err := s.tokens.SubjectOf(refreshToken)
	if err != nil {
		return nil, classify(ctx, s.logger, "refresh", err)
	}

	user, err := s.ResolveSubject(ctx, subject)
	if err != nil {
		return nil, classify(ctx, s.logger, "refresh", err)
	}
	if !user.Enabled {
		return nil, classify(ctx, s.logger, "refresh", common.ErrAccountDisabled)
	}
	return s.authResult(ctx, "refresh", user)
}

// ResolveSubject finds the user a token subject refers to: an email when it
// contains '@', a username otherwise. Usernames cannot contain '@'.
func (s *UserService) ResolveSubject(ctx context.Context, subject string) (*models.User, error) {
	return resolveSubject(ctx, s.repomanager.Users(s.store.Conn()), subject)
}

func resolveSubject(ctx context.Context, repo users.Repository, subject string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if strings.Contains(subject, "@") {
		user, err = repo.FindByEmail(ctx, subject)
	} else {
		user, err = repo.FindByUsername(ctx, subject)
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrAccountNotFound
	}
	return user, err
}

// Principal authenticates an access token and returns the caller it
// belongs to. Pending and disabled accounts are rejected.
func (s *UserService) Principal(ctx context.Context, accessToken string) (models.Principal, error) {
	subject, err := s.tokens.Authenticate(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.ResolveSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, classify(ctx, s.logger, "authenticate", err)
	}
	if !user.Enabled {
		return nil, common.ErrAccountDisabled
	}
	return models.PrincipalFor(user), nil
}

func (s *UserService) CheckUsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.repomanager.Users(s.store.Conn()).ExistsByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return false, classify(ctx, s.logger, "check username", err)
	}
	return !taken, nil
}

func (s *UserService) CheckNicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	taken, err := s.repomanager.Users(s.store.Conn()).ExistsByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		return false, classify(ctx, s.logger, "check nickname", err)
	}
	return !taken, nil
}

func (s *UserService) CheckEmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.repomanager.Users(s.store.Conn()).ExistsByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, classify(ctx, s.logger, "check email", err)
	}
	return !taken, nil
}

// RequestVerificationCode mails a signup code to an address no account owns
// yet. The code is returned only when exposing codes is enabled.
func (s *UserService) RequestVerificationCode(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", classify(ctx, s.logger, "request code", err)
	}

	taken, err := s.repomanager.Users(s.store.Conn()).ExistsByEmail(ctx, email)
	if err != nil {
		return "", classify(ctx, s.logger, "request code", err)
	}
	if taken {
		return "", classify(ctx, s.logger, "request code", duplicate("email"))
	}

	code, err := s.verifications.RequestCode(ctx, email)
	if err != nil {
		return "", err
	}
	if !s.exposeCode {
		return "", nil
	}
	return code, nil
}

func (s *UserService) ConfirmVerificationCode(ctx context.Context, email, code string) error {
	return s.verifications.ConfirmCode(ctx, email, code)
}

// VerifyEmailLink completes the link flow: the owner's email becomes
// verified, a local account is enabled and the record is spent.
func (s *UserService) VerifyEmailLink(ctx context.Context, token string) (*AuthResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, classify(ctx, s.logger, "verify link", common.ErrVerificationInvalid)
	}

	var user *models.User
	err := s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		vrepo := s.repomanager.Verifications(tx)
		repo := s.repomanager.Users(tx)

		rec, err := vrepo.FindByToken(ctx, token)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrVerificationInvalid
		}
		if err != nil {
			return err
		}

		now := s.now()
		if rec.Expired(now) {
			return common.ErrVerificationExpired
		}
		if rec.Used {
			return common.ErrVerificationInvalid
		}

		user, err = repo.FindByEmail(ctx, rec.Email)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		user.EmailVerified = true
		user.EmailVerifiedAt = &now
		if user.Provider == models.ProviderLocal {
			user.Enabled = true
		}
		if err := repo.Update(ctx, user); err != nil {
			return err
		}

		if err := vrepo.MarkVerified(ctx, rec.ID, now); err != nil {
			return err
		}
		flipped, err := vrepo.MarkUsed(ctx, rec.ID)
		if err != nil {
			return err
		}
		if !flipped {
			return common.ErrVerificationInvalid
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, s.logger, "verify link", err)
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	if !user.Enabled {
		return &AuthResult{User: viewOf(user)}, nil
	}
	return s.authResult(ctx, "verify link", user)
}

// ResendVerification mails a new link to an unverified account.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repomanager.Users(s.store.Conn()).FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrAccountNotFound
		}
		return classify(ctx, s.logger, "resend verification", err)
	}
	if user.EmailVerified {
		return classify(ctx, s.logger, "resend verification", common.ErrAlreadyVerified)
	}
	_, err = s.verifications.RequestLink(ctx, user)
	return err
}

// Me returns the caller's projection.
func (s *UserService) Me(ctx context.Context, p models.Principal) (*UserView, error) {
	user, err := s.repomanager.Users(s.store.Conn()).FindByID(ctx, p.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrAccountNotFound
		}
		return nil, classify(ctx, s.logger, "me", err)
	}
	return viewOf(user), nil
}

// UpdateProfile changes name, nickname or email. Taken nicknames and emails
// are rejected unless they already belong to the caller. A new email is
// unverified.
func (s *UserService) UpdateProfile(ctx context.Context, p models.Principal, req UpdateProfileRequest) (*ProfileUpdate, error) {
	trim := func(v *string, f func(string) string) *string {
		if v == nil {
			return nil
		}
		t := f(*v)
		return &t
	}
	req.Name = trim(req.Name, strings.TrimSpace)
	req.Nickname = trim(req.Nickname, strings.TrimSpace)
	req.Email = trim(req.Email, normalizeEmail)

	if (req.Nickname != nil && *req.Nickname == "") || (req.Email != nil && *req.Email == "") {
		return nil, classify(ctx, s.logger, "update profile",
			fmt.Errorf("%w: nickname and email cannot be cleared", common.ErrValidation))
	}
	if err := validateStruct(&req); err != nil {
		return nil, classify(ctx, s.logger, "update profile", err)
	}

	var (
		user       *models.User
		oldSubject string
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		var err error
		user, err = repo.FindByID(ctx, p.UserID())
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		oldSubject = user.Subject()

		if req.Name != nil {
			user.Name = *req.Name
		}

		if req.Nickname != nil && *req.Nickname != models.Deref(user.Nickname) {
			owner, err := repo.FindByNickname(ctx, *req.Nickname)
			switch {
			case err == nil && owner.ID != user.ID:
				return duplicate("nickname")
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return err
			}
			user.Nickname = req.Nickname
		}

		if req.Email != nil && *req.Email != models.Deref(user.Email) {
			owner, err := repo.FindByEmail(ctx, *req.Email)
			switch {
			case err == nil && owner.ID != user.ID:
				return duplicate("email")
			case err != nil && !errors.Is(err, common.ErrorNotFound):
				return err
			}
			user.Email = req.Email
			user.EmailVerified = false
			user.EmailVerifiedAt = nil
		}

		return repo.Update(ctx, user)
	})
	if err != nil {
		return nil, classify(ctx, s.logger, "update profile", err)
	}

	out := &ProfileUpdate{User: viewOf(user)}
	if user.Subject() != oldSubject {
		pair, err := s.tokens.IssuePair(user.Subject())
		if err != nil {
			return nil, classify(ctx, s.logger, "update profile", err)
		}
		out.Tokens = pair
	}
	return out, nil
}

func (s *UserService) authResult(ctx context.Context, op string, user *models.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.Subject())
	if err != nil {
		return nil, classify(ctx, s.logger, op, err)
	}
	return &AuthResult{Tokens: pair, User: viewOf(user)}, nil
}
