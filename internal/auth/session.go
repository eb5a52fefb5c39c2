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
	"github.com/google/uuid"
)

// CookieName is the cookie a browser host carries its token in.
const CookieName = "auth_token"

var ErrNoToken = errors.New("no auth token")

// Signer issues and verifies host tokens. Tokens are EdDSA-signed JWTs with "sub" = user id.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// expire is the token lifetime; zero means tokens carry no exp claim.
	expire time.Duration
	now    func() time.Time
}

// ParseExpire reads a TOKEN_EXPIRE_TIME value. "", "0" and "never" mean no expiry.
func ParseExpire(value string) (time.Duration, error) {
	if value == "" || value == "0" || value == "never" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewSigner generates a fresh ed25519 key pair. Tokens do not survive a restart.
func NewSigner(expire time.Duration) (*Signer, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Signer{privateKey: privateKey, publicKey: publicKey, expire: expire, now: time.Now}, nil
}

// NewSignerFromPath reads raw ed25519 private and public keys from disk.
func NewSignerFromPath(privatePath, publicPath string, expire time.Duration) (*Signer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	return &Signer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expire:     expire,
		now:        time.Now,
	}, nil
}

// RolePayments marks tokens of the payment service, the only caller allowed to grant purchases.
const RolePayments = "payments"

// Claims is what a verified token says about its bearer. Role is empty for hosts.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

// CreateJWT signs a host token for userID.
func (s *Signer) CreateJWT(userID uuid.UUID) (string, error) {
	return s.CreateRoleJWT(userID, "")
}

// CreateRoleJWT signs a token carrying a "role" claim; an empty role is a plain host token.
func (s *Signer) CreateRoleJWT(subject uuid.UUID, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject.String(),
		"iat": s.now().Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if s.expire > 0 {
		claims["exp"] = s.now().Add(s.expire).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// AuthenticateJWT verifies tokenString and returns the user id in "sub".
func (s *Signer) AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	c, err := s.ParseClaims(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return c.UserID, nil
}

// ParseClaims verifies tokenString and returns its subject and role.
func (s *Signer) ParseClaims(tokenString string) (Claims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid user id in jwt: %w", err)
	}
	role, _ := claims["role"].(string)
	return Claims{UserID: userID, Role: role}, nil
}

// TokenFromRequest takes the bearer token from the Authorization header, falling back
// to the auth_token cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			return "", ErrNoToken
		}
		return token, nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrNoToken
}

// Authenticate resolves the user behind a request.
func (s *Signer) Authenticate(r *http.Request) (uuid.UUID, error) {
	c, err := s.AuthenticateClaims(r)
	if err != nil {
		return uuid.Nil, err
	}
	return c.UserID, nil
}

// AuthenticateClaims resolves the full claims behind a request.
func (s *Signer) AuthenticateClaims(r *http.Request) (Claims, error) {
	token, err := TokenFromRequest(r)
	if err != nil {
		return Claims{}, err
	}
	return s.ParseClaims(token)
}
