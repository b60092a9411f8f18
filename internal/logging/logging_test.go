package logging

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestAnonymizeEmail(t *testing.T) {
	a := AnonymizeEmail("Siti@Kampus.ac.id")
	assert.Equal(t, a, AnonymizeEmail("siti@kampus.ac.id"))
	assert.Regexp(t, `^user:[0-9a-f]{16}$`, a)
	assert.NotContains(t, a, "siti")
	assert.NotEqual(t, a, AnonymizeEmail("budi@kampus.ac.id"))
	assert.Empty(t, AnonymizeEmail(""))
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("boom"))
	assert.Equal(t, "err", attr.Key)
	assert.Equal(t, "boom", attr.Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}
