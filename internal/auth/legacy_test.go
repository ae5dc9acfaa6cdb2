package auth

import (
	"testing"
	"time"
)

func TestLegacyToken_RoundTrip(t *testing.T) {
	token, err := IssueLegacyToken("user-1", "a@example.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("IssueLegacyToken: %v", err)
	}

	claims, err := ValidateLegacyToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateLegacyToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" || claims.Issuer != Issuer {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ValidateLegacyToken(token, "other"); err == nil {
		t.Error("token accepted with wrong secret")
	}
}

func TestLegacyToken_Expired(t *testing.T) {
	token, _ := IssueLegacyToken("user-1", "", "secret", -time.Minute)
	if _, err := ValidateLegacyToken(token, "secret"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestIssueLegacyToken_NoSecret(t *testing.T) {
	if _, err := IssueLegacyToken("u", "", "", time.Hour); err == nil {
		t.Error("expected error")
	}
}
