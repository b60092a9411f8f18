package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store is the PostgreSQL Adapter. Roles are returned exactly as stored;
// wrap it in a RoleAdapter to get validated roles.
type Store struct {
	db        *sql.DB
	tokenCost int
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, tokenCost: bcrypt.DefaultCost}
}

var ErrUserNotFound = errors.New("user not found")

const userColumns = `u.id, u.name, u.email, u.email_verified, u.image, u.role, u.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser reads the userColumns, after any leading destinations in pre.
func scanUser(row rowScanner, pre ...any) (*User, error) {
	var (
		u        User
		name     sql.NullString
		image    sql.NullString
		role     sql.NullString
		verified sql.NullTime
	)
	dest := append(pre, &u.ID, &name, &u.Email, &verified, &image, &role, &u.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Image = image.String
	u.Role = Role(role.String)
	if verified.Valid {
		t := verified.Time
		u.EmailVerified = &t
	}
	return &u, nil
}

func (s *Store) queryUser(ctx context.Context, q string, args ...any) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email)
}

func (s *Store) GetUserByAccount(ctx context.Context, provider, providerAccountID string) (*User, error) {
	const q = `SELECT ` + userColumns + `
		FROM accounts a JOIN users u ON u.id = a.user_id
		WHERE a.provider = $1 AND a.provider_account_id = $2`
	return s.queryUser(ctx, q, provider, providerAccountID)
}

// CreateUser inserts u. An empty role leaves the column to its database
// default.
func (s *Store) CreateUser(ctx context.Context, u User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role != "" && !u.Role.Valid() {
		return nil, fmt.Errorf("create user: %w: %q", ErrInvalidRole, u.Role)
	}
	args := []any{u.ID, nullString(u.Name), u.Email, nullTime(u.EmailVerified), nullString(u.Image), time.Now().UTC()}
	q := `
		INSERT INTO users AS u (id, name, email, email_verified, image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	if u.Role != "" {
		q = `
		INSERT INTO users AS u (id, name, email, email_verified, image, created_at, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
		args = append(args, string(u.Role))
	}
	return scanUser(s.db.QueryRowContext(ctx, q, args...))
}

// UpdateUser replaces the profile fields of u. The role is left alone; use
// SetRole for that.
func (s *Store) UpdateUser(ctx context.Context, u User) (*User, error) {
	const q = `
		UPDATE users AS u SET name = $2, email = $3, email_verified = $4, image = $5
		WHERE u.id = $1
		RETURNING ` + userColumns
	updated, err := s.queryUser(ctx, q, u.ID, nullString(u.Name), u.Email, nullTime(u.EmailVerified), nullString(u.Image))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (s *Store) LinkAccount(ctx context.Context, a Account) error {
	const q = `
		INSERT INTO accounts
		(user_id, type, provider, provider_account_id, access_token, refresh_token,
		 expires_at, token_type, scope, id_token)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	var expiresAt sql.NullInt64
	if a.ExpiresAt != 0 {
		expiresAt = sql.NullInt64{Int64: a.ExpiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, q,
		a.UserID,
		a.Type,
		a.Provider,
		a.ProviderAccountID,
		nullString(a.AccessToken),
		nullString(a.RefreshToken),
		expiresAt,
		nullString(a.TokenType),
		nullString(a.Scope),
		nullString(a.IDToken),
	)
	return err
}

func (s *Store) UnlinkAccount(ctx context.Context, provider, providerAccountID string) error {
	const q = `DELETE FROM accounts WHERE provider = $1 AND provider_account_id = $2`
	_, err := s.db.ExecContext(ctx, q, provider, providerAccountID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess StoredSession) (*StoredSession, error) {
	const q = `
		INSERT INTO sessions (session_token, user_id, expires)
		VALUES ($1, $2, $3)
		RETURNING session_token, user_id, expires
	`
	out := &StoredSession{}
	if err := s.db.QueryRowContext(ctx, q, sess.SessionToken, sess.UserID, sess.Expires).
		Scan(&out.SessionToken, &out.UserID, &out.Expires); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetSessionAndUser(ctx context.Context, sessionToken string) (*StoredSession, *User, error) {
	const q = `SELECT s.session_token, s.user_id, s.expires, ` + userColumns + `
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.session_token = $1`
	sess := &StoredSession{}
	u, err := scanUser(s.db.QueryRowContext(ctx, q, sessionToken), &sess.SessionToken, &sess.UserID, &sess.Expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return sess, u, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess StoredSession) (*StoredSession, error) {
	const q = `
		UPDATE sessions SET expires = $2 WHERE session_token = $1
		RETURNING session_token, user_id, expires
	`
	return s.scanSession(s.db.QueryRowContext(ctx, q, sess.SessionToken, sess.Expires))
}

func (s *Store) DeleteSession(ctx context.Context, sessionToken string) (*StoredSession, error) {
	const q = `DELETE FROM sessions WHERE session_token = $1 RETURNING session_token, user_id, expires`
	return s.scanSession(s.db.QueryRowContext(ctx, q, sessionToken))
}

func (s *Store) scanSession(row *sql.Row) (*StoredSession, error) {
	out := &StoredSession{}
	if err := row.Scan(&out.SessionToken, &out.UserID, &out.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// CreateVerificationToken stores a bcrypt hash of t.Token, never the token.
func (s *Store) CreateVerificationToken(ctx context.Context, t VerificationToken) (*VerificationToken, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(t.Token), s.tokenCost)
	if err != nil {
		return nil, err
	}
	const q = `INSERT INTO verification_tokens (identifier, token_hash, expires) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, q, t.Identifier, string(hash), t.Expires); err != nil {
		return nil, err
	}
	return &t, nil
}

// UseVerificationToken consumes the token issued to identifier. It returns
// (nil, nil) when no stored token matches.
func (s *Store) UseVerificationToken(ctx context.Context, identifier, token string) (*VerificationToken, error) {
	const q = `SELECT token_hash, expires FROM verification_tokens WHERE identifier = $1`
	rows, err := s.db.QueryContext(ctx, q, identifier)
	if err != nil {
		return nil, err
	}
	type candidate struct {
		hash    string
		expires time.Time
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.hash, &c.expires); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, c := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(c.hash), []byte(token)) != nil {
			continue
		}
		const del = `DELETE FROM verification_tokens WHERE identifier = $1 AND token_hash = $2`
		if _, err := s.db.ExecContext(ctx, del, identifier, c.hash); err != nil {
			return nil, err
		}
		return &VerificationToken{Identifier: identifier, Token: token, Expires: c.expires}, nil
	}
	return nil, nil
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	clauses := []string{"1=1"}
	args := []any{}
	idx := 1
	if f.Role != "" {
		clauses = append(clauses, "u.role = $"+itoa(idx))
		args = append(args, string(f.Role))
		idx++
	}
	if f.Email != "" {
		clauses = append(clauses, "u.email = $"+itoa(idx))
		args = append(args, f.Email)
		idx++
	}
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = 100
	case limit > 500:
		limit = 500
	}
	query := "SELECT " + userColumns + " FROM users u WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY u.created_at DESC LIMIT " + itoa(limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) SetRole(ctx context.Context, id string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role: %w: %q", ErrInvalidRole, role)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
