// Package authconfig wires the sign-in handler for the application: the
// role-checking adapter, the Google provider, the session callback and the
// audit events.
package authconfig

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"siakad/internal/audit"
	"siakad/internal/auth"
	"siakad/internal/authflow"
	"siakad/internal/config"
	"siakad/internal/logging"
)

type Recorder interface {
	Insert(ctx context.Context, e *audit.Event) error
}

// Options builds the handler options from cfg. recorder may be nil, in which
// case no audit events are written.
func Options(cfg config.Config, store auth.Adapter, recorder Recorder, logger *slog.Logger, reg prometheus.Registerer) authflow.Options {
	baseURL := strings.TrimRight(cfg.AuthURL, "/")
	google := authflow.NewGoogle(authflow.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  baseURL + authflow.DefaultBasePath + "/callback/google",
		// Roles are seeded by e-mail before the first sign-in.
		EmailLinking: true,
	})
	return authflow.Options{
		Adapter:   auth.NewRoleAdapter(store),
		Providers: []authflow.Provider{google},
		Callbacks: authflow.Callbacks{
			Session: SessionCallback,
		},
		Events:           auditEvents(recorder, logger),
		Secret:           cfg.AuthSecret,
		BaseURL:          baseURL,
		BasePath:         authflow.DefaultBasePath,
		SessionMaxAge:    cfg.SessionMaxAge,
		SessionUpdateAge: cfg.SessionUpdateAge,
		Logger:           logger,
		Registerer:       reg,
	}
}

// SessionCallback copies the user's id and role onto the session user.
// session is received by value, so the caller's copy is never modified.
func SessionCallback(session auth.Session, user auth.User) auth.Session {
	session.User.ID = user.ID
	session.User.Role = user.Role
	return session
}

func auditEvents(recorder Recorder, logger *slog.Logger) authflow.Events {
	if recorder == nil {
		return authflow.Events{}
	}
	record := func(ctx context.Context, e *audit.Event) {
		if err := recorder.Insert(ctx, e); err != nil {
			logger.Error("record audit event", logging.Err(err), "kind", e.Kind)
		}
	}
	return authflow.Events{
		SignIn: func(ctx context.Context, user auth.User, account auth.Account, isNewUser bool) {
			record(ctx, &audit.Event{
				Kind:     audit.KindSignIn,
				UserID:   user.ID,
				Provider: account.Provider,
				Tags:     []string{string(user.Role)},
				Fields:   map[string]interface{}{"new_user": isNewUser},
			})
		},
		SignOut: func(ctx context.Context, session auth.StoredSession) {
			record(ctx, &audit.Event{Kind: audit.KindSignOut, UserID: session.UserID})
		},
		CreateUser: func(ctx context.Context, user auth.User) {
			record(ctx, &audit.Event{Kind: audit.KindCreateUser, UserID: user.ID})
		},
		LinkAccount: func(ctx context.Context, user auth.User, account auth.Account) {
			record(ctx, &audit.Event{
				Kind:     audit.KindLinkAccount,
				UserID:   user.ID,
				Provider: account.Provider,
			})
		},
	}
}
