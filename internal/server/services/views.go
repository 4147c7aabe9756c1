package services

import (
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// UserView is the user projection returned to callers.
type UserView struct {
	ID            string
	Email         string
	Username      string
	Nickname      string
	Name          string
	ProfileImage  string
	Role          models.Role
	Provider      models.AuthProvider
	EmailVerified bool
	Enabled       bool
}

func viewOf(u *models.User) *UserView {
	return &UserView{
		ID:            u.ID,
		Email:         models.Deref(u.Email),
		Username:      models.Deref(u.Username),
		Nickname:      models.Deref(u.Nickname),
		Name:          u.Name,
		ProfileImage:  u.ProfileImage,
		Role:          u.Role,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		Enabled:       u.Enabled,
	}
}

// AuthResult is a completed login: a token pair plus the user it belongs to.
type AuthResult struct {
	Tokens *auth.TokenPair
	User   *UserView
}
