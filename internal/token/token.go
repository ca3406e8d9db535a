package token

import (
	"crypto/sha256"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
)

// Generator signs and validates locally-issued access tokens. Tokens are
// HS256 JWTs whose subject is the durable user id.
type Generator struct {
	key       []byte
	issuer    string
	accessTTL time.Duration
}

// NewGenerator constructs a token generator for the deployment's signing
// secret. go-jose requires HS256 keys of at least 32 bytes, so the key is
// derived from the secret rather than used raw.
func NewGenerator(secret, issuer string, accessTTL time.Duration) *Generator {
	key := sha256.Sum256([]byte(secret))
	return &Generator{key: key[:], issuer: issuer, accessTTL: accessTTL}
}

// Sign produces a signed access token for the given user id.
func (g *Generator) Sign(userID string) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: g.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	claims := gojwt.Claims{
		Subject:   userID,
		Issuer:    g.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(g.accessTTL)),
	}

	signed, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and time bounds, returning the subject
// user id.
func (g *Generator) Verify(raw string) (string, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	var claims gojwt.Claims
	if err := parsed.Claims(g.key, &claims); err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	if err := claims.Validate(gojwt.Expected{Issuer: g.issuer, Time: time.Now().UTC()}); err != nil {
		return "", fmt.Errorf("validate claims: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return claims.Subject, nil
}
