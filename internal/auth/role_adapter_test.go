package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter implements the lookups the wrapper touches; anything else
// panics through the nil embedded Adapter.
type fakeAdapter struct {
	Adapter
	users   map[string]*User
	err     error
	deleted []string
}

func (f *fakeAdapter) GetUser(ctx context.Context, id string) (*User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

func (f *fakeAdapter) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeAdapter) GetSessionAndUser(ctx context.Context, token string) (*StoredSession, *User, error) {
	u := f.users["u1"]
	return &StoredSession{SessionToken: token, UserID: u.ID}, u, nil
}

func (f *fakeAdapter) DeleteSession(ctx context.Context, token string) (*StoredSession, error) {
	f.deleted = append(f.deleted, token)
	return &StoredSession{SessionToken: token}, nil
}

func TestRoleAdapterGetUserCarriesRole(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleDosen, RoleMahasiswa} {
		t.Run(string(role), func(t *testing.T) {
			stored := &User{ID: "u1", Email: "a@x.com", Name: "Ana", Role: role}
			a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{"u1": stored}})

			got, err := a.GetUser(context.Background(), "u1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, User{ID: "u1", Email: "a@x.com", Name: "Ana", Role: role}, *got)
		})
	}
}

func TestRoleAdapterCoercesRoleSpelling(t *testing.T) {
	a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{
		"u1": {ID: "u1", Email: "a@x.com", Role: " dosen "},
	}})

	got, err := a.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, RoleDosen, got.Role)
}

func TestRoleAdapterReturnsCopy(t *testing.T) {
	verified := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stored := &User{ID: "u1", Email: "a@x.com", Role: RoleAdmin, EmailVerified: &verified}
	a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{"u1": stored}})

	got, err := a.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	got.Name = "changed"
	*got.EmailVerified = time.Time{}

	assert.Empty(t, stored.Name)
	assert.Equal(t, verified, *stored.EmailVerified)
}

func TestRoleAdapterNoRecord(t *testing.T) {
	a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{}})

	got, err := a.GetUser(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = a.GetUserByEmail(context.Background(), "missing@x.com")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoleAdapterMissingRoleIsExplicitError(t *testing.T) {
	// The stored record has no role at all: the wrapper must not hand out a
	// user with an empty role, nor invent one.
	a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{
		"u1": {ID: "u1", Email: "a@x.com"},
	}})

	got, err := a.GetUser(context.Background(), "u1")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRole)

	var roleErr *RoleError
	require.True(t, errors.As(err, &roleErr))
	assert.Equal(t, "u1", roleErr.UserID)
	assert.Empty(t, roleErr.Value)
	assert.Contains(t, err.Error(), "no role assigned")

	_, err = a.GetUserByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleAdapterUnknownRole(t *testing.T) {
	a := NewRoleAdapter(&fakeAdapter{users: map[string]*User{
		"u1": {ID: "u1", Email: "a@x.com", Role: "REKTOR"},
	}})

	_, err := a.GetUserByEmail(context.Background(), "a@x.com")
	var roleErr *RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "REKTOR", roleErr.Value)
}

func TestRoleAdapterPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewRoleAdapter(&fakeAdapter{err: boom})

	_, err := a.GetUser(context.Background(), "u1")
	assert.Same(t, boom, err)

	_, err = a.GetUserByEmail(context.Background(), "a@x.com")
	assert.Same(t, boom, err)
}

func TestRoleAdapterForwardsOtherOperations(t *testing.T) {
	inner := &fakeAdapter{users: map[string]*User{
		"u1": {ID: "u1", Email: "a@x.com"},
	}}
	a := NewRoleAdapter(inner)

	// GetSessionAndUser is not decorated, so the missing role comes through.
	sess, u, err := a.GetSessionAndUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.SessionToken)
	assert.Equal(t, Role(""), u.Role)

	deleted, err := a.DeleteSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", deleted.SessionToken)
	assert.Equal(t, []string{"tok"}, inner.deleted)
}

func TestValidateRole(t *testing.T) {
	got, err := ValidateRole(nil)
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = ValidateRole(&User{ID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	got, err = ValidateRole(&User{ID: "u1", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, got.Role)
}
