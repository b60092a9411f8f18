package auth

import (
	"context"
	"net/http"
)

type contextKey string

const userContextKey contextKey = "siakad_user"

func WithUser(ctx context.Context, u *SessionUser) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(userContextKey).(*SessionUser)
	return u, ok
}

// SessionReader resolves the shaped session of a request, or nil when the
// request carries none.
type SessionReader interface {
	Session(r *http.Request) (*Session, error)
}

func SessionMiddleware(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Session(r)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if sess == nil || sess.User.ID == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			user := sess.User
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
		})
	}
}

func RequireRole(next http.HandlerFunc, roles ...Role) http.HandlerFunc {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next(w, r)
	}
}
