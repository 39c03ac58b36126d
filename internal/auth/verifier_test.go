package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifierModes(t *testing.T) {
	v, err := NewVerifier("", "")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, v.Mode)

	_, err = NewVerifier("hmac", "")
	assert.Error(t, err)
	_, err = NewVerifier("jwks", "s")
	assert.Error(t, err)
}

func TestNoneAcceptsAnything(t *testing.T) {
	v, _ := NewVerifier(ModeNone, "")
	p, err := v.FromRequest(httptest.NewRequest("GET", "/v1/admin/plan-metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, p.Role)
}

func TestStaticToken(t *testing.T) {
	v, _ := NewVerifier(ModeToken, "s3cret")
	r := httptest.NewRequest("GET", "/", nil)
	_, err := v.FromRequest(r)
	assert.ErrorIs(t, err, ErrMissing)

	r.Header.Set("Authorization", "Bearer nope")
	_, err = v.FromRequest(r)
	assert.ErrorIs(t, err, ErrInvalid)

	r.Header.Set("Authorization", "Bearer s3cret")
	_, err = v.FromRequest(r)
	assert.NoError(t, err)
}

func TestHMACToken(t *testing.T) {
	v, _ := NewVerifier(ModeHMAC, "k")
	admin, err := v.Issue("ops", RoleAdmin, time.Minute)
	require.NoError(t, err)
	viewer, err := v.Issue("bob", "viewer", time.Minute)
	require.NoError(t, err)
	expired, err := v.Issue("ops", RoleAdmin, -time.Minute)
	require.NoError(t, err)
	other, _ := NewVerifier(ModeHMAC, "other")
	foreign, err := other.Issue("ops", RoleAdmin, time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+admin)
	p, err := v.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "ops", p.Subject)

	r.Header.Set("Authorization", "Bearer "+viewer)
	_, err = v.FromRequest(r)
	assert.ErrorIs(t, err, ErrForbidden)

	for _, tok := range []string{expired, foreign, "a.b.c"} {
		r.Header.Set("Authorization", "Bearer "+tok)
		_, err = v.FromRequest(r)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}
