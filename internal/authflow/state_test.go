package authflow

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	signed, err := e.h.signState("nonce-1", "google", testBaseURL+"/krs", "verifier-1")
	require.NoError(t, err)

	claims, err := e.h.parseState(signed)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", claims.ID)
	assert.Equal(t, "google", claims.Provider)
	assert.Equal(t, testBaseURL+"/krs", claims.CallbackURL)
	assert.Equal(t, "verifier-1", claims.Verifier)
}

func TestStateRejectsForeignKeyAndAlgorithm(t *testing.T) {
	e := newTestEnv(t)
	claims := stateClaims{
		Provider: "google",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "nonce-1",
			ExpiresAt: jwt.NewNumericDate(e.now.Add(time.Minute)),
		},
	}

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = e.h.parseState(otherKey)
	assert.ErrorIs(t, err, ErrInvalidState)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = e.h.parseState(hs512)
	assert.ErrorIs(t, err, ErrInvalidState)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = e.h.parseState(unsigned)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateExpires(t *testing.T) {
	e := newTestEnv(t)
	signed, err := e.h.signState("nonce-1", "google", testBaseURL+"/", "v")
	require.NoError(t, err)

	e.now = e.now.Add(stateMaxAge - time.Second)
	_, err = e.h.parseState(signed)
	assert.NoError(t, err)

	e.now = e.now.Add(time.Minute)
	_, err = e.h.parseState(signed)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
