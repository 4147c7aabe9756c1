package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// userFacing lists the errors callers are allowed to see. Anything else is a
// storage or programming fault.
var userFacing = []error{
	common.ErrValidation,
	common.ErrDuplicateIdentity,
	common.ErrAccountNotFound,
	common.ErrAccountDisabled,
	common.ErrBadCredentials,
	common.ErrVerificationRequired,
	common.ErrVerificationExpired,
	common.ErrVerificationInvalid,
	common.ErrAlreadyVerified,
	common.ErrInvalidToken,
	common.ErrProviderMismatch,
	common.ErrUnsupportedProvider,
	common.ErrAlreadyCompleted,
	common.ErrNotOAuthAccount,
	common.ErrMailUnavailable,
}

func isUserFacing(err error) bool {
	for _, e := range userFacing {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// classify passes user-facing errors through and turns everything else into
// common.ErrorInternal after logging the cause.
func classify(ctx context.Context, l logging.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if isUserFacing(err) {
		l.Info(ctx, op+" rejected", "reason", err.Error())
		return err
	}
	l.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
