package authflow

import (
	"net/http"
	"time"

	"siakad/internal/auth"
	"siakad/internal/logging"
)

// Session resolves the session cookie of r into the payload produced by the
// Session callback. It returns (nil, nil) when r carries no live session.
func (h *Handler) Session(r *http.Request) (*auth.Session, error) {
	sess, _, err := h.resolveSession(r)
	return sess, err
}

func (h *Handler) resolveSession(r *http.Request) (*auth.Session, *auth.StoredSession, error) {
	c, err := r.Cookie(h.sessionCookieName())
	if err != nil || c.Value == "" {
		h.metrics.sessionLookups.WithLabelValues("none").Inc()
		return nil, nil, nil
	}
	ctx := r.Context()
	stored, user, err := h.opts.Adapter.GetSessionAndUser(ctx, c.Value)
	if err != nil {
		h.metrics.sessionLookups.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if stored == nil || user == nil {
		h.metrics.sessionLookups.WithLabelValues("none").Inc()
		return nil, nil, nil
	}

	now := h.opts.Now().UTC()
	if !stored.Expires.After(now) {
		if _, err := h.opts.Adapter.DeleteSession(ctx, stored.SessionToken); err != nil {
			h.logger.Error("delete expired session", logging.Err(err))
		}
		h.metrics.sessionLookups.WithLabelValues("expired").Inc()
		return nil, nil, nil
	}
	// A live session must never be handed out without a role.
	user, err = auth.ValidateRole(user)
	if err != nil {
		h.metrics.sessionLookups.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	// Extend sessions once they are older than the update age.
	issued := stored.Expires.Add(-h.opts.SessionMaxAge)
	if now.Sub(issued) >= h.opts.SessionUpdateAge {
		updated, err := h.opts.Adapter.UpdateSession(ctx, auth.StoredSession{
			SessionToken: stored.SessionToken,
			UserID:       stored.UserID,
			Expires:      now.Add(h.opts.SessionMaxAge),
		})
		if err != nil {
			h.metrics.sessionLookups.WithLabelValues("error").Inc()
			return nil, nil, err
		}
		if updated != nil {
			stored = updated
		}
	}

	sess := auth.Session{
		User: auth.SessionUser{
			Name:  user.Name,
			Email: user.Email,
			Image: user.Image,
		},
		Expires: stored.Expires,
	}
	if cb := h.opts.Callbacks.Session; cb != nil {
		sess = cb(sess, *user)
	}
	h.metrics.sessionLookups.WithLabelValues("active").Inc()
	return &sess, stored, nil
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, stored, err := h.resolveSession(r)
	if err != nil {
		h.logger.Error("resolve session", logging.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	http.SetCookie(w, h.sessionCookie(stored))
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) sessionCookieName() string {
	if h.secure {
		return securePrefix + sessionCookieBase
	}
	return sessionCookieBase
}

func (h *Handler) stateCookieName() string {
	if h.secure {
		return securePrefix + stateCookieBase
	}
	return stateCookieBase
}

func (h *Handler) sessionCookie(s *auth.StoredSession) *http.Cookie {
	c := h.cookie(h.sessionCookieName(), s.SessionToken, "/", 0)
	c.Expires = s.Expires.UTC().Truncate(time.Second)
	return c
}

// cookie builds an HttpOnly, SameSite=Lax cookie. A negative maxAge deletes
// it.
func (h *Handler) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
