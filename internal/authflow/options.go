package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"siakad/internal/auth"
)

const (
	DefaultBasePath         = "/api/auth"
	DefaultSessionMaxAge    = 30 * 24 * time.Hour
	DefaultSessionUpdateAge = 24 * time.Hour
	stateMaxAge             = 15 * time.Minute
)

// Options configure a Handler.
type Options struct {
	Adapter   auth.Adapter
	Providers []Provider
	Callbacks Callbacks
	Events    Events

	// Secret signs the OAuth state cookie.
	Secret string
	// BaseURL is the public origin of the application, e.g.
	// https://siakad.example.ac.id.
	BaseURL  string
	BasePath string

	SessionMaxAge    time.Duration
	SessionUpdateAge time.Duration

	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Callbacks let the application shape the outcome of the flow.
type Callbacks struct {
	// Session receives the base session assembled from the stored user and
	// returns the payload sent to the client.
	Session func(session auth.Session, user auth.User) auth.Session
	// SignIn may refuse a sign-in after the user is resolved.
	SignIn func(ctx context.Context, user auth.User, account auth.Account) (bool, error)
}

// Events are notifications fired after the corresponding action succeeded.
type Events struct {
	SignIn      func(ctx context.Context, user auth.User, account auth.Account, isNewUser bool)
	SignOut     func(ctx context.Context, session auth.StoredSession)
	CreateUser  func(ctx context.Context, user auth.User)
	LinkAccount func(ctx context.Context, user auth.User, account auth.Account)
}

var (
	ErrNoAdapter   = errors.New("authflow: adapter is required")
	ErrNoProviders = errors.New("authflow: at least one provider is required")
	ErrNoSecret    = errors.New("authflow: secret is required")
	ErrBadBaseURL  = errors.New("authflow: base URL must be an absolute http(s) URL")
)

func (o *Options) validate() error {
	if o.Adapter == nil {
		return ErrNoAdapter
	}
	if len(o.Providers) == 0 {
		return ErrNoProviders
	}
	if o.Secret == "" {
		return ErrNoSecret
	}
	u, err := url.Parse(o.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrBadBaseURL
	}
	return nil
}

func (o *Options) applyDefaults() {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.BasePath == "" {
		o.BasePath = DefaultBasePath
	}
	o.BasePath = "/" + strings.Trim(o.BasePath, "/")
	if o.SessionMaxAge <= 0 {
		o.SessionMaxAge = DefaultSessionMaxAge
	}
	if o.SessionUpdateAge <= 0 {
		o.SessionUpdateAge = DefaultSessionUpdateAge
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.NewRegistry()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
