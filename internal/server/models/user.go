// Package models holds the server-side domain records of the identity core.
package models

import (
	"strings"
	"time"
)

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// AuthProvider says where an account's credentials live.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "LOCAL"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderKakao  AuthProvider = "KAKAO"
)

// ParseProvider maps a case-insensitive registration key ("google") to an
// AuthProvider. LOCAL is not a federated provider and is rejected.
func ParseProvider(key string) (AuthProvider, bool) {
	switch AuthProvider(strings.ToUpper(strings.TrimSpace(key))) {
	case ProviderGoogle:
		return ProviderGoogle, true
	case ProviderKakao:
		return ProviderKakao, true
	}
	return "", false
}

// User is an identity record. Optional unique fields are nil when absent so
// the database stores NULL and the unique indexes ignore them.
//
// PasswordHash is set exactly when Provider is LOCAL; ProviderID is set
// exactly when it is not.
type User struct {
	ID              string
	Email           *string
	Username        *string
	Nickname        *string
	PasswordHash    *string
	Name            string
	ProfileImage    string
	Role            Role
	Provider        AuthProvider
	ProviderID      *string
	Enabled         bool
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subject is the identifier embedded in this user's tokens: the email when
// present, the username otherwise.
func (u *User) Subject() string {
	if s := Deref(u.Email); s != "" {
		return s
	}
	return Deref(u.Username)
}

// Pending reports a federated account that has not finished signup.
func (u *User) Pending() bool {
	return u.Provider != ProviderLocal && !u.Enabled
}

// DisplayName prefers the nickname, then the name, then the username.
func (u *User) DisplayName() string {
	for _, s := range []string{Deref(u.Nickname), u.Name, Deref(u.Username)} {
		if s != "" {
			return s
		}
	}
	return Deref(u.Email)
}

// Ptr returns a pointer to s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
