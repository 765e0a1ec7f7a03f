package farcaster

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"time"

	"triviacast-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// QuickAuthClaims are the claims of a Farcaster Quick Auth token; sub is the FID.
type QuickAuthClaims struct {
	Address string `json:"address,omitempty"`
	jwt.RegisteredClaims
}

// FID parses the subject as a Farcaster ID.
func (c *QuickAuthClaims) FID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// QuickAuthVerifier validates bearer tokens for the configured domain.
type QuickAuthVerifier struct {
	domain    string
	issuer    string
	secret    []byte
	publicKey ed25519.PublicKey
	leeway    time.Duration
}

// NewQuickAuthVerifier accepts HS256 tokens when secret is set and EdDSA
// tokens when publicKeyPEM is set.
func NewQuickAuthVerifier(domainName, issuer, secret, publicKeyPEM string) (*QuickAuthVerifier, error) {
	v := &QuickAuthVerifier{
		domain: domainName,
		issuer: issuer,
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
	if publicKeyPEM != "" {
		key, err := jwt.ParseEdPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse quick auth public key: %w", err)
		}
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("quick auth public key is not ed25519")
		}
		v.publicKey = pub
	}
	if len(v.secret) == 0 && v.publicKey == nil {
		return nil, errors.New("quick auth needs a secret or a public key")
	}
	return v, nil
}

// Verify parses token and returns the FID it was issued for.
func (v *QuickAuthVerifier) Verify(token string) (int64, *QuickAuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.domain != "" {
		opts = append(opts, jwt.WithAudience(v.domain))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &QuickAuthClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFor, opts...)
	if err != nil || !parsed.Valid {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	fid, err := claims.FID()
	if err != nil || fid <= 0 {
		return 0, nil, fmt.Errorf("%w: bad subject", domain.ErrUnauthorized)
	}
	return fid, claims, nil
}

func (v *QuickAuthVerifier) keyFor(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(v.secret) == 0 {
			return nil, errors.New("hmac tokens not accepted")
		}
		return v.secret, nil
	case *jwt.SigningMethodEd25519:
		if v.publicKey == nil {
			return nil, errors.New("eddsa tokens not accepted")
		}
		return v.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
}

// IssueHS256 mints a token signed with secret. Used for local development and tests.
func IssueHS256(secret, domainName, issuer string, fid int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &QuickAuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(fid, 10),
			Audience:  jwt.ClaimStrings{domainName},
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
