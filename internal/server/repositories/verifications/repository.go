package verifications

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores email verification records. Finders return
// common.ErrorNotFound when nothing matches.
type Repository interface {
	// LockEmail serializes verification writes for one address until the
	// surrounding transaction ends.
	LockEmail(ctx context.Context, email string) error

	Create(ctx context.Context, rec *models.VerificationRecord) (*models.VerificationRecord, error)
	FindByToken(ctx context.Context, token string) (*models.VerificationRecord, error)
	FindByEmailAndCodeUnused(ctx context.Context, email, code string) (*models.VerificationRecord, error)
	// LockByEmailAndCodeUnused is FindByEmailAndCodeUnused with a row lock.
	LockByEmailAndCodeUnused(ctx context.Context, email, code string) (*models.VerificationRecord, error)

	MarkVerified(ctx context.Context, id string, at time.Time) error
	// MarkUsed reports whether this call flipped the record to used.
	MarkUsed(ctx context.Context, id string) (bool, error)
	// MarkUsedInSavepoint is MarkUsed for callers inside a transaction that
	// must survive its failure. Rows locked earlier in the transaction stay
	// locked.
	MarkUsedInSavepoint(ctx context.Context, id string) (bool, error)

	DeleteUnusedByEmail(ctx context.Context, email string) (int64, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}
