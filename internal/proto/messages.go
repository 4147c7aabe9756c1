// Package proto defines the wire messages and service descriptor of the
// identity gRPC API. Messages travel as JSON through the codec registered in
// codec.go; well-known protobuf types use protojson.
package proto

type PingResponse struct {
	Status string `json:"status"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// User is the public projection of an account.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Username      string `json:"username,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Name          string `json:"name,omitempty"`
	ProfileImage  string `json:"profile_image,omitempty"`
	Role          string `json:"role"`
	Provider      string `json:"provider"`
	EmailVerified bool   `json:"email_verified"`
	Enabled       bool   `json:"enabled"`
}

type AuthResponse struct {
	Tokens *TokenPair `json:"tokens,omitempty"`
	User   *User      `json:"user,omitempty"`
}

type SignUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code,omitempty"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RequestCodeRequest struct {
	Email string `json:"email"`
}

// RequestCodeResponse carries the code only when the server runs with code
// exposure enabled.
type RequestCodeResponse struct {
	Code string `json:"code,omitempty"`
}

type ConfirmCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type VerifyLinkRequest struct {
	Token string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type AvailabilityRequest struct {
	Value string `json:"value"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

type AuthURLRequest struct {
	Provider string `json:"provider"`
	State    string `json:"state"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type OAuth2LoginRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

type ProviderProfile struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// Outcome values of OAuth2LoginResponse.
const (
	OutcomeLoginCompleted = "login_completed"
	OutcomeSignupRequired = "signup_required"
)

// OAuth2LoginResponse holds Tokens when Outcome is login_completed, and
// Profile plus SignupToken when it is signup_required.
type OAuth2LoginResponse struct {
	Outcome     string           `json:"outcome"`
	Tokens      *TokenPair       `json:"tokens,omitempty"`
	User        *User            `json:"user,omitempty"`
	Profile     *ProviderProfile `json:"profile,omitempty"`
	SignupToken string           `json:"signup_token,omitempty"`
}

type CompleteSignupRequest struct {
	SignupToken  string `json:"signup_token"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
}

// UpdateProfileRequest leaves nil fields unchanged.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty"`
	Nickname *string `json:"nickname,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type UpdateProfileResponse struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens,omitempty"`
}
