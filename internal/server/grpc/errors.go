package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrDuplicateIdentity, codes.AlreadyExists},
	{common.ErrAccountNotFound, codes.NotFound},
	{common.ErrAccountDisabled, codes.PermissionDenied},
	{common.ErrBadCredentials, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrVerificationRequired, codes.FailedPrecondition},
	{common.ErrVerificationExpired, codes.FailedPrecondition},
	{common.ErrVerificationInvalid, codes.FailedPrecondition},
	{common.ErrAlreadyVerified, codes.FailedPrecondition},
	{common.ErrProviderMismatch, codes.FailedPrecondition},
	{common.ErrAlreadyCompleted, codes.FailedPrecondition},
	{common.ErrNotOAuthAccount, codes.FailedPrecondition},
	{common.ErrUnsupportedProvider, codes.Unimplemented},
	{common.ErrMailUnavailable, codes.Unavailable},
}

// toStatus maps service errors to gRPC statuses. Anything outside the
// taxonomy is reported as a bare internal error.
func toStatus(err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return status.Error(e.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}
