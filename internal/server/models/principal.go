package models

// Principal is the authenticated caller as seen by request handlers. It is
// either a *LocalPrincipal or a *FederatedPrincipal.
type Principal interface {
	UserID() string
	Role() Role
	DisplayName() string
	Subject() string

	principal()
}

type principalBase struct {
	id          string
	role        Role
	displayName string
	subject     string
}

func (p principalBase) UserID() string      { return p.id }
func (p principalBase) Role() Role          { return p.role }
func (p principalBase) DisplayName() string { return p.displayName }
func (p principalBase) Subject() string     { return p.subject }
func (principalBase) principal()            {}

// LocalPrincipal is a caller who signed up with a username and password.
type LocalPrincipal struct {
	principalBase
	Username string
}

// FederatedPrincipal is a caller whose identity comes from an OAuth2 provider.
type FederatedPrincipal struct {
	principalBase
	Provider     AuthProvider
	ProviderID   string
	ProfileImage string
}

// PrincipalFor builds the principal variant matching u's provider.
func PrincipalFor(u *User) Principal {
	base := principalBase{
		id:          u.ID,
		role:        u.Role,
		displayName: u.DisplayName(),
		subject:     u.Subject(),
	}
	if u.Provider == ProviderLocal {
		return &LocalPrincipal{principalBase: base, Username: Deref(u.Username)}
	}
	return &FederatedPrincipal{
		principalBase: base,
		Provider:      u.Provider,
		ProviderID:    Deref(u.ProviderID),
		ProfileImage:  u.ProfileImage,
	}
}
