package models

import "time"

// VerificationRecord is one outstanding proof-of-email attempt. It moves
// from unverified to verified (VerifiedAt set) to used, never backwards.
type VerificationRecord struct {
	ID         string
	Email      string
	Token      string
	Code       *string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	Used       bool
	CreatedAt  time.Time
}

func (v *VerificationRecord) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

func (v *VerificationRecord) Verified() bool {
	return v.VerifiedAt != nil
}
