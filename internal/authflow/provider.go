package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider is an OAuth identity provider usable by the Handler.
type Provider interface {
	ID() string
	Name() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (Profile, error)
	// AllowEmailLinking reports whether a verified profile email may be
	// linked to an existing user that has no account at this provider.
	AllowEmailLinking() bool
}

// Profile is the normalised identity returned by a provider.
type Profile struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	Image         string
}

// OAuthConfig describes an OpenID Connect style provider.
type OAuthConfig struct {
	ID           string
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Scopes       []string
	EmailLinking bool
}

type OAuthProvider struct {
	id           string
	name         string
	config       *oauth2.Config
	userInfoURL  string
	emailLinking bool
}

var ErrProfile = errors.New("provider profile")

func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		id:   cfg.ID,
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
		},
		userInfoURL:  cfg.UserInfoURL,
		emailLinking: cfg.EmailLinking,
	}
}

// GoogleConfig holds the credentials of a Google OAuth client.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	EmailLinking bool
}

func NewGoogle(cfg GoogleConfig) *OAuthProvider {
	return NewOAuthProvider(OAuthConfig{
		ID:           "google",
		Name:         "Google",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     endpoints.Google,
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
		EmailLinking: cfg.EmailLinking,
	})
}

func (p *OAuthProvider) ID() string              { return p.id }
func (p *OAuthProvider) Name() string            { return p.name }
func (p *OAuthProvider) AllowEmailLinking() bool { return p.emailLinking }

func (p *OAuthProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (p *OAuthProvider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

func (p *OAuthProvider) Profile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%w: userinfo returned %d", ErrProfile, resp.StatusCode)
	}
	var claims struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrProfile, err)
	}
	if claims.Sub == "" {
		return Profile{}, fmt.Errorf("%w: missing subject", ErrProfile)
	}
	return Profile{
		ID:            claims.Sub,
		Name:          claims.Name,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Image:         claims.Picture,
	}, nil
}
