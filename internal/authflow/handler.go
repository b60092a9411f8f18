package authflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"siakad/internal/auth"
	"siakad/internal/logging"
)

// Error codes passed to the error route.
const (
	ErrorConfiguration    = "Configuration"
	ErrorOAuthCallback    = "OAuthCallback"
	ErrorOAuthState       = "OAuthState"
	ErrorAccountNotLinked = "OAuthAccountNotLinked"
	ErrorAccessDenied     = "AccessDenied"
	ErrorCallback         = "Callback"
	ErrorProviderNotFound = "ProviderNotFound"
)

const (
	sessionCookieBase = "siakad.session-token"
	stateCookieBase   = "siakad.state"
	securePrefix      = "__Secure-"
	providerTypeOAuth = "oauth"
)

var ErrAccountNotLinked = errors.New("email belongs to a user without this provider linked")

// Handler serves the sign-in routes below Options.BasePath. GET and POST are
// the entry points to mount on a router; Session resolves the shaped
// session of any request.
type Handler struct {
	GET  http.Handler
	POST http.Handler

	opts      Options
	secret    []byte
	providers map[string]Provider
	order     []string
	metrics   *metrics
	logger    *slog.Logger
	origin    string
	secure    bool
}

func New(opts Options) (*Handler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	base, _ := url.Parse(opts.BaseURL)

	h := &Handler{
		opts:      opts,
		secret:    []byte(opts.Secret),
		providers: make(map[string]Provider, len(opts.Providers)),
		metrics:   newMetrics(opts.Registerer),
		logger:    opts.Logger.With("component", "authflow"),
		origin:    base.Scheme + "://" + base.Host,
		secure:    base.Scheme == "https",
	}
	for _, p := range opts.Providers {
		if _, dup := h.providers[p.ID()]; dup {
			return nil, fmt.Errorf("authflow: duplicate provider %q", p.ID())
		}
		h.providers[p.ID()] = p
		h.order = append(h.order, p.ID())
	}
	h.GET = http.HandlerFunc(h.serveGET)
	h.POST = http.HandlerFunc(h.servePOST)
	return h, nil
}

// route splits the request path below the base path into action and
// argument, e.g. "callback", "google".
func (h *Handler) route(r *http.Request) (string, string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, h.opts.BasePath)
	if rest == r.URL.Path || (rest != "" && rest[0] != '/') {
		return "", "", false
	}
	action, arg, _ := strings.Cut(strings.Trim(rest, "/"), "/")
	return action, arg, true
}

func (h *Handler) serveGET(w http.ResponseWriter, r *http.Request) {
	action, arg, ok := h.route(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch action {
	case "providers":
		h.handleProviders(w, r)
	case "session":
		h.handleSession(w, r)
	case "callback":
		h.handleCallback(w, r, arg)
	case "error":
		h.handleError(w, r)
	case "signin", "signout":
		// State-changing; POST only so the origin check applies.
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) servePOST(w http.ResponseWriter, r *http.Request) {
	action, arg, ok := h.route(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !h.sameOrigin(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	switch action {
	case "signin":
		h.handleSignIn(w, r, arg)
	case "callback":
		h.handleCallback(w, r, arg)
	case "signout":
		h.handleSignOut(w, r)
	default:
		http.NotFound(w, r)
	}
}

type providerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SigninURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]providerInfo, len(h.order))
	for _, id := range h.order {
		p := h.providers[id]
		out[id] = providerInfo{
			ID:          id,
			Name:        p.Name(),
			Type:        providerTypeOAuth,
			SigninURL:   h.url("signin", id),
			CallbackURL: h.url("callback", id),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request, providerID string) {
	p, ok := h.providers[providerID]
	if !ok {
		h.redirectError(w, r, ErrorProviderNotFound)
		return
	}
	verifier := oauth2.GenerateVerifier()
	nonce := uuid.NewString()
	callbackURL := h.safeCallbackURL(r.FormValue("callbackUrl"))
	state, err := h.signState(nonce, providerID, callbackURL, verifier)
	if err != nil {
		h.logger.Error("sign state", logging.Err(err), "provider", providerID)
		h.redirectError(w, r, ErrorConfiguration)
		return
	}
	http.SetCookie(w, h.cookie(h.stateCookieName(), state, h.opts.BasePath, int(stateMaxAge.Seconds())))
	http.Redirect(w, r, p.AuthCodeURL(nonce, verifier), http.StatusFound)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request, providerID string) {
	p, ok := h.providers[providerID]
	if !ok {
		h.redirectError(w, r, ErrorProviderNotFound)
		return
	}
	ctx := r.Context()
	fail := func(code string, err error) {
		h.metrics.signIns.WithLabelValues(providerID, "error").Inc()
		h.logger.Warn("sign-in failed", "provider", providerID, "code", code, logging.Err(err))
		h.redirectError(w, r, code)
	}

	stateCookie, err := r.Cookie(h.stateCookieName())
	http.SetCookie(w, h.cookie(h.stateCookieName(), "", h.opts.BasePath, -1))
	if providerErr := r.FormValue("error"); providerErr != "" {
		fail(ErrorOAuthCallback, fmt.Errorf("provider returned %q", providerErr))
		return
	}
	if err != nil {
		fail(ErrorOAuthState, ErrInvalidState)
		return
	}
	claims, err := h.parseState(stateCookie.Value)
	if err != nil {
		fail(ErrorOAuthState, err)
		return
	}
	if claims.Provider != providerID ||
		subtle.ConstantTimeCompare([]byte(claims.ID), []byte(r.FormValue("state"))) != 1 {
		fail(ErrorOAuthState, ErrInvalidState)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		fail(ErrorOAuthCallback, errors.New("missing authorization code"))
		return
	}

	token, err := p.Exchange(ctx, code, claims.Verifier)
	if err != nil {
		fail(ErrorOAuthCallback, err)
		return
	}
	profile, err := p.Profile(ctx, token)
	if err != nil {
		fail(ErrorOAuthCallback, err)
		return
	}

	account := accountFromToken(providerID, profile.ID, token)
	user, isNew, err := h.signInUser(ctx, p, profile, account)
	switch {
	case errors.Is(err, ErrAccountNotLinked):
		fail(ErrorAccountNotLinked, err)
		return
	case errors.Is(err, errAccessDenied):
		h.metrics.signIns.WithLabelValues(providerID, "denied").Inc()
		h.redirectError(w, r, ErrorAccessDenied)
		return
	case err != nil:
		fail(ErrorCallback, err)
		return
	}

	stored, err := h.opts.Adapter.CreateSession(ctx, auth.StoredSession{
		SessionToken: uuid.NewString(),
		UserID:       user.ID,
		Expires:      h.opts.Now().UTC().Add(h.opts.SessionMaxAge),
	})
	if err != nil {
		fail(ErrorCallback, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(stored))
	h.metrics.signIns.WithLabelValues(providerID, "success").Inc()
	if ev := h.opts.Events.SignIn; ev != nil {
		account.UserID = user.ID
		ev(ctx, *user, account, isNew)
	}
	h.logger.Info("signed in", "provider", providerID, "user", user.ID,
		"email", logging.AnonymizeEmail(user.Email), "new_user", isNew)
	http.Redirect(w, r, claims.CallbackURL, http.StatusFound)
}

var errAccessDenied = errors.New("sign-in refused")

// signInUser finds or creates the user behind profile and links account to
// it. The SignIn callback runs before anything is written.
func (h *Handler) signInUser(ctx context.Context, p Provider, profile Profile, account auth.Account) (*auth.User, bool, error) {
	adapter := h.opts.Adapter
	existing, linked, err := h.findUser(ctx, p, profile, account)
	if err != nil {
		return nil, false, err
	}

	candidate := existing
	if candidate == nil {
		candidate = &auth.User{Name: profile.Name, Email: profile.Email, Image: profile.Image}
		if profile.EmailVerified {
			now := h.opts.Now().UTC()
			candidate.EmailVerified = &now
		}
	}
	if cb := h.opts.Callbacks.SignIn; cb != nil {
		ok, err := cb(ctx, *candidate, account)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, errAccessDenied
		}
	}

	user := existing
	isNew := existing == nil
	if isNew {
		user, err = adapter.CreateUser(ctx, *candidate)
		if err != nil {
			return nil, false, fmt.Errorf("create user: %w", err)
		}
		if ev := h.opts.Events.CreateUser; ev != nil {
			ev(ctx, *user)
		}
	}
	if !linked {
		account.UserID = user.ID
		if err := adapter.LinkAccount(ctx, account); err != nil {
			return nil, false, fmt.Errorf("link account: %w", err)
		}
		if ev := h.opts.Events.LinkAccount; ev != nil {
			ev(ctx, *user, account)
		}
	}
	return user, isNew, nil
}

// findUser returns the user already linked to the provider account, or the
// user owning the profile email when linking by email is allowed.
func (h *Handler) findUser(ctx context.Context, p Provider, profile Profile, account auth.Account) (*auth.User, bool, error) {
	adapter := h.opts.Adapter
	byAccount, err := adapter.GetUserByAccount(ctx, account.Provider, account.ProviderAccountID)
	if err != nil {
		return nil, false, err
	}
	if byAccount != nil {
		u, err := auth.ValidateRole(byAccount)
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	}
	if profile.Email == "" {
		return nil, false, fmt.Errorf("%w: missing email", ErrProfile)
	}
	byEmail, err := adapter.GetUserByEmail(ctx, profile.Email)
	if err != nil {
		return nil, false, err
	}
	if byEmail == nil {
		return nil, false, nil
	}
	if !p.AllowEmailLinking() || !profile.EmailVerified {
		return nil, false, ErrAccountNotLinked
	}
	u, err := auth.ValidateRole(byEmail)
	if err != nil {
		return nil, false, err
	}
	return u, false, nil
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c, err := r.Cookie(h.sessionCookieName()); err == nil && c.Value != "" {
		stored, err := h.opts.Adapter.DeleteSession(ctx, c.Value)
		if err != nil {
			h.logger.Error("delete session", logging.Err(err))
		} else if stored != nil {
			h.metrics.signOuts.Inc()
			if ev := h.opts.Events.SignOut; ev != nil {
				ev(ctx, *stored)
			}
		}
	}
	http.SetCookie(w, h.cookie(h.sessionCookieName(), "", "/", -1))
	http.Redirect(w, r, h.safeCallbackURL(r.FormValue("callbackUrl")), http.StatusFound)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("error")
	if code == "" {
		code = ErrorConfiguration
	}
	status := http.StatusBadRequest
	if code == ErrorAccessDenied {
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": code})
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.url("error")+"?"+url.Values{"error": {code}}.Encode(), http.StatusFound)
}

// safeCallbackURL keeps redirects on the application's own origin.
func (h *Handler) safeCallbackURL(raw string) string {
	home := h.opts.BaseURL + "/"
	if raw == "" {
		return home
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") && !strings.HasPrefix(raw, "/\\") {
		return h.opts.BaseURL + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme+"://"+u.Host != h.origin {
		return home
	}
	return raw
}

func (h *Handler) sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == h.origin
}

func (h *Handler) url(parts ...string) string {
	return h.opts.BaseURL + h.opts.BasePath + "/" + strings.Join(parts, "/")
}

func accountFromToken(provider, providerAccountID string, token *oauth2.Token) auth.Account {
	a := auth.Account{
		Type:              providerTypeOAuth,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		TokenType:         token.TokenType,
	}
	if !token.Expiry.IsZero() {
		a.ExpiresAt = token.Expiry.Unix()
	}
	if scope, ok := token.Extra("scope").(string); ok {
		a.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		a.IDToken = idToken
	}
	return a
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
