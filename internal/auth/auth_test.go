package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-32-characters!!"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken(testSecret, "dean@campus.edu", 12*time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Email != "dean@campus.edu" {
		t.Errorf("Email = %q, want %q", claims.Email, "dean@campus.edu")
	}
	if claims.Subject != "dean@campus.edu" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "dean@campus.edu")
	}
	if claims.Issuer != Issuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := NewAccessToken(testSecret, "dean@campus.edu", time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	if _, err := ParseToken("another-secret-also-32-characters!!!", token); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := NewAccessToken(testSecret, "dean@campus.edu", -time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	_, err = ParseToken(testSecret, token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseTokenRejectsUnsignedAlg(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "dean@campus.edu"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ParseToken(testSecret, raw); err == nil {
		t.Fatal("expected error for alg=none token, got nil")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash equals plaintext")
	}

	if err := ComparePassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("ComparePassword with correct password: %v", err)
	}
	if err := ComparePassword(hash, "wrong-pass"); err == nil {
		t.Error("ComparePassword with wrong password: expected error, got nil")
	}
}
