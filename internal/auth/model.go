package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDosen     Role = "DOSEN"
	RoleMahasiswa Role = "MAHASISWA"
)

var ErrInvalidRole = errors.New("invalid role")

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDosen, RoleMahasiswa:
		return true
	}
	return false
}

// ParseRole coerces s onto the role enumeration. Surrounding space and case
// are ignored; anything else, including the empty string, is ErrInvalidRole.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	Image         string     `json:"image,omitempty"`
	Role          Role       `json:"role"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Account links a user to an identity at an OAuth provider.
type Account struct {
	UserID            string `json:"user_id"`
	Type              string `json:"type"`
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"provider_account_id"`
	AccessToken       string `json:"-"`
	RefreshToken      string `json:"-"`
	ExpiresAt         int64  `json:"expires_at,omitempty"`
	TokenType         string `json:"token_type,omitempty"`
	Scope             string `json:"scope,omitempty"`
	IDToken           string `json:"-"`
}

// StoredSession is the persisted side of a database session.
type StoredSession struct {
	SessionToken string
	UserID       string
	Expires      time.Time
}

type VerificationToken struct {
	Identifier string
	Token      string
	Expires    time.Time
}

// Session is the payload handed to clients.
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

type SessionUser struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
	ID    string `json:"id,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

type UserFilter struct {
	Role  Role
	Email string
	Limit int
}
