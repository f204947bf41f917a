package auth

import (
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_RoundTrip(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)

	token, err := s.CreateJWT("owner-1")
	require.NoError(t, err)

	owner, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)
}

func TestSessions_RejectsForeignKey(t *testing.T) {
	a, err := NewSessions(0)
	require.NoError(t, err)
	b, err := NewSessions(0)
	require.NoError(t, err)

	token, err := a.CreateJWT("owner-1")
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.Error(t, err)
}

func TestSessions_RejectsExpired(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": "owner-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString(s.privateKey)
	require.NoError(t, err)

	_, err = s.AuthenticateJWT(signed)
	assert.Error(t, err)
}

func TestSessions_RejectsOtherAlgorithms(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "owner-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.AuthenticateJWT(signed)
	assert.Error(t, err)
}

func TestOwnerFromRequest(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)
	token, err := s.CreateJWT("owner-1")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	owner, err := s.OwnerFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	owner, err = s.OwnerFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)

	_, err = s.OwnerFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoadSessions(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	s, err := LoadSessions(privPath, pubPath, 0)
	require.NoError(t, err)
	token, err := s.CreateJWT("owner-1")
	require.NoError(t, err)
	owner, err := s.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)

	_, err = LoadSessions(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}
