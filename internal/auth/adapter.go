package auth

import "context"

// Adapter is the persistence capability set the sign-in handler relies on.
//
// Lookups report an absent record as (nil, nil); a non-nil error always
// means the lookup itself failed.
type Adapter interface {
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error)
	UpdateUser(ctx context.Context, u User) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	LinkAccount(ctx context.Context, a Account) error
	UnlinkAccount(ctx context.Context, provider, providerAccountID string) error

	CreateSession(ctx context.Context, s StoredSession) (*StoredSession, error)
	GetSessionAndUser(ctx context.Context, sessionToken string) (*StoredSession, *User, error)
	UpdateSession(ctx context.Context, s StoredSession) (*StoredSession, error)
	DeleteSession(ctx context.Context, sessionToken string) (*StoredSession, error)

	CreateVerificationToken(ctx context.Context, t VerificationToken) (*VerificationToken, error)
	UseVerificationToken(ctx context.Context, identifier, token string) (*VerificationToken, error)
}
