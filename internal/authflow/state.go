package authflow

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// stateClaims travel in the state cookie between sign-in and callback. The
// JWT ID doubles as the OAuth state parameter.
type stateClaims struct {
	Provider    string `json:"provider"`
	CallbackURL string `json:"callback_url"`
	Verifier    string `json:"verifier"`
	jwt.RegisteredClaims
}

var ErrInvalidState = errors.New("invalid oauth state")

func (h *Handler) signState(nonce, provider, callbackURL, verifier string) (string, error) {
	now := h.opts.Now().UTC()
	claims := stateClaims{
		Provider:    provider,
		CallbackURL: callbackURL,
		Verifier:    verifier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateMaxAge)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(h.secret)
}

func (h *Handler) parseState(tokenStr string) (*stateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		return h.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.opts.Now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrInvalidState
	}
	return claims, nil
}
