package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := Options{Secret: []byte("test-secret"), TTL: time.Hour}

	token, exp, err := Generate(opts, "openid1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 50*time.Minute {
		t.Errorf("exp too close: %v", exp)
	}

	openID, err := Verify(opts, token)
	if err != nil {
		t.Fatal(err)
	}
	if openID != "openid1" {
		t.Errorf("sub = %q", openID)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(Options{Secret: []byte("secret-a"), TTL: time.Hour}, "openid1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(Options{Secret: []byte("secret-b")}, token); err == nil {
		t.Error("wrong secret must fail")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	claims := jwtlib.MapClaims{
		"sub": "openid1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify(Options{Secret: secret}, token); err == nil {
		t.Error("expired token must fail")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify(Options{Secret: []byte("s")}, "not.a.jwt"); err == nil {
		t.Error("garbage token must fail")
	}
}
