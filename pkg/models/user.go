package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is fixed at sign-up and never changes afterwards.
type Role string

const (
	RoleFreelancer Role = "freelancer"
	RoleClient     Role = "client"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleFreelancer || r == RoleClient
}

// Profile is the application-owned half of an identity. Email lives with the auth subsystem.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User is an authenticated identity joined with its profile
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// IsFreelancer reports whether the user holds the project-owning role
func (u *User) IsFreelancer() bool {
	return u != nil && u.Role == RoleFreelancer
}

// NewUser combines an auth identity with its profile row
func NewUser(auth *AuthUser, profile *Profile) *User {
	u := &User{
		ID:    profile.ID,
		Name:  profile.Name,
		Email: auth.Email,
		Role:  profile.Role,
	}
	if profile.AvatarURL != nil {
		u.Avatar = *profile.AvatarURL
	}
	return u
}

// AuthUser is the identity as reported by the auth provider
type AuthUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

// Session is an active sign-in issued by the auth provider
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	TokenType    string   `json:"token_type,omitempty"`
	User         AuthUser `json:"user"`
}

// SignUpOutcome tells callers whether sign-up also signed them in
type SignUpOutcome struct {
	User    AuthUser
	Session *Session // nil when the provider requires e-mail confirmation first
}

// SignUpStatus tells the caller whether sign-up also produced a session
type SignUpStatus string

const (
	SignUpAuthenticated       SignUpStatus = "authenticated"
	SignUpPendingConfirmation SignUpStatus = "pending_confirmation"
)

// SignUpResult is what a sign-up reports back. Session and User are nil
// while the e-mail address awaits confirmation.
type SignUpResult struct {
	Status    SignUpStatus `json:"status"`
	Session   *Session     `json:"session,omitempty"`
	User      *User        `json:"user,omitempty"`
	ProjectID string       `json:"project_id,omitempty"`
}

// SignUpRequest represents the request payload for registration
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=120"`
	Role     Role   `json:"role" validate:"required,oneof=freelancer client"`
	// InviteToken is redeemed right after sign-up when a session is returned
	InviteToken string `json:"invite_token,omitempty"`
}

// SignInRequest represents the request payload for sign-in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenClaims mirrors the claims the platform puts in its access tokens
type TokenClaims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Audience string `json:"aud,omitempty"`
	Type     string `json:"token_type,omitempty"` // "refresh" on locally issued refresh tokens
	Exp      int64  `json:"exp"`
	Iat      int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}
