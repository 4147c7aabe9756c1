package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/mail"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/verifications"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/google/uuid"
)

// VerifyLinkPath is appended to the public base URL in verification emails.
const VerifyLinkPath = "/api/auth/verify-email"

// Mailer queues outgoing mail without waiting for delivery.
type Mailer interface {
	Enqueue(ctx context.Context, msg mail.Message) error
}

// VerificationService issues and checks email proofs: 6-digit codes for
// signup and link tokens for already registered accounts.
//
// A record goes unverified -> verified -> used and never back. Issuing a new
// record for an address deletes its unused predecessors under a per-email
// lock, so at most one live record exists per address.
type VerificationService struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	mailer      Mailer
	logger      logging.Logger
	now         timex.Clock
	codeTTL     time.Duration
	linkTTL     time.Duration
	baseURL     string
}

func NewVerificationService(store dbx.Store, m repomanager.RepositoryManager, mailer Mailer,
	l logging.Logger, cfg *config.Config, now timex.Clock) *VerificationService {
	return &VerificationService{
		store:       store,
		repomanager: m,
		mailer:      mailer,
		logger:      l.With("module", "verification_service"),
		now:         now,
		codeTTL:     cfg.VerificationCodeTTL,
		linkTTL:     cfg.VerificationLinkTTL,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// replace runs the delete-then-create sequence for rec.Email inside one
// transaction holding the email lock.
func (s *VerificationService) replace(ctx context.Context, rec *models.VerificationRecord) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Verifications(tx)

		if err := repo.LockEmail(ctx, rec.Email); err != nil {
			return err
		}
		if _, err := repo.DeleteUnusedByEmail(ctx, rec.Email); err != nil {
			return err
		}
		_, err := repo.Create(ctx, rec)
		return err
	})
}

// RequestCode supersedes any pending proof for email with a fresh code and
// mails it. The code is returned for the issuing flow only.
func (s *VerificationService) RequestCode(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}

	code, err := common.MakeRandDigits(common.VerificationCodeLength)
	if err != nil {
		return "", classify(ctx, s.logger, "request code", err)
	}

	rec := &models.VerificationRecord{
		Email:     email,
		Token:     uuid.NewString(),
		Code:      &code,
		ExpiresAt: s.now().Add(s.codeTTL),
	}
	if err := s.replace(ctx, rec); err != nil {
		return "", classify(ctx, s.logger, "request code", err)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Your verification code",
		Body: fmt.Sprintf("Your verification code is %s.\nIt expires in %d minutes.\n",
			code, int(s.codeTTL.Minutes())),
	}
	if err := s.mailer.Enqueue(ctx, msg); err != nil {
		return "", classify(ctx, s.logger, "request code", err)
	}

	s.logger.Info(ctx, "verification code issued", "email", email)
	return code, nil
}

// RequestLink does the same as RequestCode for an existing account but
// mails a link carrying an opaque token instead of a code.
func (s *VerificationService) RequestLink(ctx context.Context, user *models.User) (string, error) {
	email := models.Deref(user.Email)
	if email == "" {
		return "", fmt.Errorf("%w: account has no email", common.ErrValidation)
	}

	rec := &models.VerificationRecord{
		Email:     email,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.linkTTL),
	}
	if err := s.replace(ctx, rec); err != nil {
		return "", classify(ctx, s.logger, "request link", err)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Confirm your email address",
		Body: fmt.Sprintf("Hello %s,\n\nconfirm your email address by opening:\n%s\n",
			user.DisplayName(), s.LinkURL(rec.Token)),
	}
	if err := s.mailer.Enqueue(ctx, msg); err != nil {
		return "", classify(ctx, s.logger, "request link", err)
	}

	s.logger.Info(ctx, "verification link issued", "user_id", user.ID)
	return rec.Token, nil
}

// LinkURL is the address mailed for a link token.
func (s *VerificationService) LinkURL(token string) string {
	return s.baseURL + VerifyLinkPath + "?token=" + url.QueryEscape(token)
}

// ConfirmCode stamps the matching unused record as verified. It does not
// consume it: a confirmed code can be checked again until signup spends it.
func (s *VerificationService) ConfirmCode(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	repo := s.repomanager.Verifications(s.store.Conn())

	rec, err := repo.FindByEmailAndCodeUnused(ctx, email, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			err = common.ErrVerificationInvalid
		}
		return classify(ctx, s.logger, "confirm code", err)
	}

	now := s.now()
	if rec.Expired(now) {
		return classify(ctx, s.logger, "confirm code", common.ErrVerificationExpired)
	}
	if err := repo.MarkVerified(ctx, rec.ID, now); err != nil {
		return classify(ctx, s.logger, "confirm code", err)
	}
	return nil
}

// IsConfirmed reports whether (email, code) names an unused, unexpired and
// confirmed record. The error is for storage faults only.
func (s *VerificationService) IsConfirmed(ctx context.Context, email, code string) (bool, error) {
	repo := s.repomanager.Verifications(s.store.Conn())

	rec, err := repo.FindByEmailAndCodeUnused(ctx, normalizeEmail(email), strings.TrimSpace(code))
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, classify(ctx, s.logger, "check code", err)
	}
	return rec.Verified() && !rec.Expired(s.now()), nil
}

// requireConfirmed is IsConfirmed for use inside a signup transaction. It
// locks the record so only one signup can spend it.
func (s *VerificationService) requireConfirmed(ctx context.Context, repo verifications.Repository,
	email, code string) (*models.VerificationRecord, error) {
	rec, err := repo.LockByEmailAndCodeUnused(ctx, email, code)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrVerificationRequired
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.now()) {
		return nil, common.ErrVerificationExpired
	}
	if !rec.Verified() {
		return nil, common.ErrVerificationRequired
	}
	return rec, nil
}

// consume marks rec used with mark. Failures are logged and swallowed;
// bookkeeping must not fail the signup that spent the code.
func (s *VerificationService) consume(ctx context.Context, rec *models.VerificationRecord, mark func(ctx context.Context, id string) (bool, error)) {
	flipped, err := mark(ctx, rec.ID)
	if err != nil {
		s.logger.Warn(ctx, "mark verification used failed", "record_id", rec.ID, "error", err)
		return
	}
	if !flipped {
		s.logger.Debug(ctx, "verification already used", "record_id", rec.ID)
	}
}

// Consume marks the unused record for (email, code) as used. Missing or
// already used records are not an error.
func (s *VerificationService) Consume(ctx context.Context, email, code string) error {
	repo := s.repomanager.Verifications(s.store.Conn())

	rec, err := repo.FindByEmailAndCodeUnused(ctx, normalizeEmail(email), strings.TrimSpace(code))
	if errors.Is(err, common.ErrorNotFound) {
		return nil
	}
	if err != nil {
		return classify(ctx, s.logger, "consume code", err)
	}
	s.consume(ctx, rec, repo.MarkUsed)
	return nil
}

// Sweep deletes every record past its expiry, used or not.
func (s *VerificationService) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Verifications(s.store.Conn()).DeleteExpiredBefore(ctx, s.now())
	if err != nil {
		return 0, classify(ctx, s.logger, "sweep", err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *VerificationService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn(ctx, "verification sweeper disabled", "interval", interval)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "expired verifications removed", "count", n)
			}
		}
	}
}
