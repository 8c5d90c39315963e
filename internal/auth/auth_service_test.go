package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func newTestAuthService(t *testing.T, accessTTL, refreshTTL time.Duration) *AuthService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})

	svc, err := NewAuthService(privatePEM, publicPEM, accessTTL, refreshTTL)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := newTestAuthService(t, 15*time.Minute, 24*time.Hour)

	pair, err := svc.GenerateTokenPair(42)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	access, err := svc.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if access.UserID != 42 || access.TokenType != "access" {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	refresh, err := svc.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if refresh.UserID != 42 || refresh.TokenType != "refresh" {
		t.Fatalf("unexpected refresh claims: %+v", refresh)
	}
	if refresh.ID == "" {
		t.Fatal("refresh token must carry a jti")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService(t, -time.Minute, 24*time.Hour)

	pair, err := svc.GenerateTokenPair(1)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if _, err := svc.ValidateToken(pair.AccessToken); err == nil {
		t.Fatal("expired access token must be rejected")
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	signer := newTestAuthService(t, 15*time.Minute, 24*time.Hour)
	verifier := newTestAuthService(t, 15*time.Minute, 24*time.Hour)

	pair, err := signer.GenerateTokenPair(1)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if _, err := verifier.ValidateToken(pair.AccessToken); err == nil {
		t.Fatal("token signed with another key must be rejected")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t, 15*time.Minute, 24*time.Hour)

	if _, err := svc.ValidateToken(""); err == nil {
		t.Fatal("empty token must be rejected")
	}
	if _, err := svc.ValidateToken("not.a.jwt"); err == nil {
		t.Fatal("malformed token must be rejected")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPasswordHash("correct horse battery staple", hash) {
		t.Fatal("valid password must verify")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password must not verify")
	}
}
