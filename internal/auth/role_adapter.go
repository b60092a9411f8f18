package auth

import (
	"context"
	"fmt"
)

// RoleAdapter decorates an Adapter so that users returned by GetUser and
// GetUserByEmail always carry a member of the role enumeration. All other
// operations go straight to the wrapped adapter.
type RoleAdapter struct {
	Adapter
}

func NewRoleAdapter(inner Adapter) *RoleAdapter {
	return &RoleAdapter{Adapter: inner}
}

func (a *RoleAdapter) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := a.Adapter.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return ValidateRole(u)
}

func (a *RoleAdapter) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := a.Adapter.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return ValidateRole(u)
}

// RoleError reports a stored user whose role is missing or outside the
// enumeration.
type RoleError struct {
	UserID string
	Value  string
}

func (e *RoleError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("user %s has no role assigned", e.UserID)
	}
	return fmt.Sprintf("user %s has role %q outside the role enumeration", e.UserID, e.Value)
}

func (e *RoleError) Unwrap() error {
	return ErrInvalidRole
}

// ValidateRole returns a copy of u whose role is coerced onto the
// enumeration, or a *RoleError when the stored role is missing or unknown.
// A nil u stays nil.
func ValidateRole(u *User) (*User, error) {
	if u == nil {
		return nil, nil
	}
	role, err := ParseRole(string(u.Role))
	if err != nil {
		return nil, &RoleError{UserID: u.ID, Value: string(u.Role)}
	}
	out := *u
	if u.EmailVerified != nil {
		verified := *u.EmailVerified
		out.EmailVerified = &verified
	}
	out.Role = role
	return &out, nil
}
