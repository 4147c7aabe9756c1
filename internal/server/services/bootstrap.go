package services

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// Bootstrapper prepares a fresh or upgraded database at startup.
type Bootstrapper struct {
	store       dbx.Store
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	logger      logging.Logger
	now         timex.Clock
	cfg         *config.Config
}

func NewBootstrapper(store dbx.Store, m repomanager.RepositoryManager, hasher PasswordHasher,
	l logging.Logger, cfg *config.Config, now timex.Clock) *Bootstrapper {
	return &Bootstrapper{
		store:       store,
		repomanager: m,
		hasher:      hasher,
		logger:      l.With("module", "bootstrap"),
		now:         now,
		cfg:         cfg,
	}
}

func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.SeedAdmin(ctx); err != nil {
		return err
	}
	return b.BackfillNicknames(ctx)
}

// SeedAdmin creates the configured administrator unless its username or
// email already exists. It is skipped when no admin password is set.
func (b *Bootstrapper) SeedAdmin(ctx context.Context) error {
	if b.cfg.AdminPassword == "" || b.cfg.AdminUsername == "" {
		b.logger.Warn(ctx, "admin seed skipped: credentials not configured")
		return nil
	}

	digest, err := b.hasher.Hash(b.cfg.AdminPassword)
	if err != nil {
		return err
	}
	email := normalizeEmail(b.cfg.AdminEmail)

	return b.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := b.repomanager.Users(tx)

		taken, err := repo.ExistsByUsername(ctx, b.cfg.AdminUsername)
		if err != nil || taken {
			return err
		}
		if email != "" {
			if taken, err = repo.ExistsByEmail(ctx, email); err != nil || taken {
				return err
			}
		}

		nickname, err := ResolveNickname(ctx, repo, b.cfg.AdminUsername)
		if err != nil {
			return err
		}

		at := b.now()
		admin := &models.User{
			Email:           models.Ptr(email),
			Username:        models.Ptr(b.cfg.AdminUsername),
			Nickname:        &nickname,
			PasswordHash:    &digest,
			Name:            "Administrator",
			Role:            models.RoleAdmin,
			Provider:        models.ProviderLocal,
			Enabled:         true,
			EmailVerified:   email != "",
			EmailVerifiedAt: &at,
		}
		if email == "" {
			admin.EmailVerifiedAt = nil
		}
		if _, err := repo.Create(ctx, admin); err != nil {
			return err
		}
		b.logger.Info(ctx, "admin account created", "username", b.cfg.AdminUsername)
		return nil
	})
}

// BackfillNicknames gives every active account without a nickname one
// derived from its name, or username when it has no name. Pending federated
// accounts pick theirs in CompleteSignup.
func (b *Bootstrapper) BackfillNicknames(ctx context.Context) error {
	missing, err := b.repomanager.Users(b.store.Conn()).ListWithoutNickname(ctx)
	if err != nil {
		return err
	}

	filled := 0
	for _, u := range missing {
		if u.Pending() {
			continue
		}
		base := u.Name
		if base == "" {
			base = models.Deref(u.Username)
		}

		err := b.store.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			repo := b.repomanager.Users(tx)
			nickname, err := ResolveNickname(ctx, repo, base)
			if err != nil {
				return err
			}
			u.Nickname = &nickname
			return repo.Update(ctx, u)
		})
		if err != nil {
			return err
		}
		filled++
	}

	if filled > 0 {
		b.logger.Info(ctx, "nicknames backfilled", "count", filled)
	}
	return nil
}
