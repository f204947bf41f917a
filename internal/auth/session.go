// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie the browser client stores its token in.
const CookieName = "auth_token"

// ErrNoToken is returned when a request carries no credentials.
var ErrNoToken = errors.New("no auth token")

// Sessions signs and verifies EdDSA JWTs whose "sub" claim is the owner id.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expire     time.Duration // 0 => no exp claim
}

// NewSessions generates a fresh ed25519 key pair at runtime.
func NewSessions(expire time.Duration) (*Sessions, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: privateKey, publicKey: publicKey, expire: expire}, nil
}

// LoadSessions reads ed25519 private/public keys from file.
func LoadSessions(privatePath, publicPath string, expire time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 key sizes (%d, %d)", len(privateKeyData), len(publicKeyData))
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expire:     expire,
	}, nil
}

// CreateJWT creates a signed token for ownerID.
func (s *Sessions) CreateJWT(ownerID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": ownerID,
		"iat": time.Now().Unix(),
	}
	if s.expire > 0 {
		claims["exp"] = time.Now().Add(s.expire).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies a token and returns its "sub" claim.
func (s *Sessions) AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	ownerID, ok := claims["sub"].(string)
	if !ok || ownerID == "" {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return ownerID, nil
}

// OwnerFromRequest authenticates the auth_token cookie, falling back to a
// Bearer Authorization header.
func (s *Sessions) OwnerFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return s.AuthenticateJWT(c.Value)
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return s.AuthenticateJWT(strings.TrimPrefix(h, "Bearer "))
	}
	return "", ErrNoToken
}
