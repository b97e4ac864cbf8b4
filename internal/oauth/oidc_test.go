package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksFixture struct {
	privateKey *rsa.PrivateKey
	server     *httptest.Server
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	document := map[string]any{
		"keys": []any{map[string]string{
			"kty": "RSA",
			"alg": "RS256",
			"kid": "test-key",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(privateKey.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(privateKey.PublicKey.E)).Bytes()),
		}},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(document)
	}))
	t.Cleanup(server.Close)

	return &jwksFixture{privateKey: privateKey, server: server}
}

func (f *jwksFixture) signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.privateKey)
	require.NoError(t, err)
	return signed
}

func googleTokenClaims(now time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"aud":            "test-client",
		"iss":            "https://accounts.google.com",
		"sub":            "google-user-1",
		"email":          "cook@example.com",
		"email_verified": true,
		"name":           "Cook Example",
		"picture":        "https://lh3.example.com/photo.jpg",
		"exp":            now.Add(5 * time.Minute).Unix(),
		"iat":            now.Unix(),
	}
}

func TestIDTokenVerifierExtractsProfileClaims(t *testing.T) {
	fixture := newJWKSFixture(t)
	signed := fixture.signToken(t, googleTokenClaims(time.Now().UTC()))

	verifier, err := NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    fixture.server.URL,
		HTTPClient: fixture.server.Client(),
	})
	require.NoError(t, err)

	claims, err := verifier.Verify(context.Background(), signed)
	require.NoError(t, err)

	assert.Equal(t, "google-user-1", claims.Subject)
	assert.Equal(t, "cook@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, "Cook Example", claims.Name)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", claims.Picture)
}

func TestIDTokenVerifierRejectsWrongAudience(t *testing.T) {
	fixture := newJWKSFixture(t)
	claims := googleTokenClaims(time.Now().UTC())
	claims["aud"] = "someone-else"
	signed := fixture.signToken(t, claims)

	verifier, err := NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    fixture.server.URL,
		HTTPClient: fixture.server.Client(),
	})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signed)
	assert.Error(t, err)
}

func TestIDTokenVerifierRejectsUntrustedIssuer(t *testing.T) {
	fixture := newJWKSFixture(t)
	claims := googleTokenClaims(time.Now().UTC())
	claims["iss"] = "https://evil.example.com"
	signed := fixture.signToken(t, claims)

	verifier, err := NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    fixture.server.URL,
		HTTPClient: fixture.server.Client(),
	})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, errUntrustedIssuer)
}

func TestIDTokenVerifierRequiresEmailClaim(t *testing.T) {
	fixture := newJWKSFixture(t)
	claims := googleTokenClaims(time.Now().UTC())
	delete(claims, "email")
	signed := fixture.signToken(t, claims)

	verifier, err := NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:   "test-client",
		JWKSURL:    fixture.server.URL,
		HTTPClient: fixture.server.Client(),
	})
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, errMissingEmailClaim)
}

func TestNewIDTokenVerifierValidatesConfig(t *testing.T) {
	_, err := NewIDTokenVerifier(IDTokenVerifierConfig{JWKSURL: "https://example.com/jwks"})
	assert.ErrorIs(t, err, ErrInvalidVerifierConfig)

	_, err = NewIDTokenVerifier(IDTokenVerifierConfig{Audience: "test-client", JWKSURL: "  "})
	assert.ErrorIs(t, err, ErrInvalidVerifierConfig)

	_, err = NewIDTokenVerifier(IDTokenVerifierConfig{
		Audience:       "test-client",
		JWKSURL:        "https://example.com/jwks",
		AllowedIssuers: []string{"", "   "},
	})
	assert.ErrorIs(t, err, ErrInvalidVerifierConfig)
}
