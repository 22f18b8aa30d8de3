package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an identity provider session token.
//
// The subject is the user's stable id at the identity provider. That's the
// only claim the rest of the backend cares about; sid is kept for logs.
type Claims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

var ErrMissingSubject = errors.New("token has no subject")

// Verifier checks session tokens issued by the identity provider.
//
// Two key types are supported: a shared HMAC secret (HS256), which is what
// local development and tests use, and the provider's RSA public key
// (RS256), which is what production uses. The accepted algorithm is pinned
// per verifier so a token can't pick its own.
type Verifier struct {
	key     any
	methods []string
	issuer  string
	leeway  time.Duration
}

// NewHMACVerifier verifies HS256 tokens signed with secret. An empty issuer
// skips the iss check.
func NewHMACVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("hmac secret is empty")
	}
	return &Verifier{
		key:     []byte(secret),
		methods: []string{jwt.SigningMethodHS256.Alg()},
		issuer:  issuer,
		leeway:  5 * time.Second,
	}, nil
}

// NewRSAVerifier verifies RS256 tokens against a PEM-encoded public key.
func NewRSAVerifier(publicKeyPEM, issuer string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}
	return &Verifier{
		key:     key,
		methods: []string{jwt.SigningMethodRS256.Alg()},
		issuer:  issuer,
		leeway:  5 * time.Second,
	}, nil
}

// Verify validates signature, expiry and (optionally) issuer, and returns
// the claims. The token must carry a subject.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(*jwt.Token) (any, error) { return v.key, nil },
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// GenerateToken signs an HS256 session token for userID. The identity
// provider mints real tokens; this exists for local development and tests.
func GenerateToken(userID, issuer, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
