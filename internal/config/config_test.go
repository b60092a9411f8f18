package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"AUTH_SECRET":          "s3cret",
		"GOOGLE_CLIENT_ID":     "cid",
		"GOOGLE_CLIENT_SECRET": "csecret",
	}
}

func TestFromEnvironmentDefaults(t *testing.T) {
	cfg, err := FromEnvironment(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sql", cfg.SchemaDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RolesPath)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, "http://localhost:8080", cfg.AuthURL)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 24*time.Hour, cfg.SessionUpdateAge)
	assert.Equal(t, "cid", cfg.GoogleClientID)
}

func TestFromEnvironmentOverrides(t *testing.T) {
	env := baseEnv()
	env["AUTH_URL"] = "https://siakad.kampus.ac.id"
	env["SIAKAD_CORS_ORIGINS"] = "https://a.kampus.ac.id,https://b.kampus.ac.id"
	env["AUTH_SESSION_MAX_AGE"] = "168h"
	env["AUTH_SESSION_UPDATE_AGE"] = "1h"
	env["SIAKAD_ROLES_PATH"] = "config/roles.yaml"

	cfg, err := FromEnvironment(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.kampus.ac.id", "https://b.kampus.ac.id"}, cfg.CORSOrigins)
	assert.Equal(t, 168*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, time.Hour, cfg.SessionUpdateAge)
	assert.Equal(t, "config/roles.yaml", cfg.RolesPath)
}

func TestFromEnvironmentMissingCredentials(t *testing.T) {
	for _, key := range []string{"AUTH_SECRET", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET"} {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			delete(env, key)
			_, err := FromEnvironment(env)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, key)

			env[key] = ""
			_, err = FromEnvironment(env)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestFromEnvironmentRejectsBadValues(t *testing.T) {
	tests := map[string]map[string]string{
		"relative auth url":       {"AUTH_URL": "/app"},
		"ftp auth url":            {"AUTH_URL": "ftp://kampus.ac.id"},
		"zero max age":            {"AUTH_SESSION_MAX_AGE": "0s"},
		"update age over max age": {"AUTH_SESSION_MAX_AGE": "1h", "AUTH_SESSION_UPDATE_AGE": "2h"},
		"unparsable duration":     {"AUTH_SESSION_MAX_AGE": "a month"},
	}
	for name, overrides := range tests {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range overrides {
				env[k] = v
			}
			_, err := FromEnvironment(env)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
