package services

import (
	"testing"
)

func TestIdentityAssertionRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateIdentityAssertion("staff-1", "doc@clinic.example", []string{"counselor", "director"})
	if err != nil {
		t.Fatalf("GenerateIdentityAssertion: %v", err)
	}

	claims, err := svc.VerifyAssertion(token)
	if err != nil {
		t.Fatalf("VerifyAssertion: %v", err)
	}
	if claims.IdentityID != "staff-1" || claims.Subject != "staff-1" {
		t.Fatalf("unexpected identity in claims: %+v", claims)
	}
	if claims.Email != "doc@clinic.example" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("roles not preserved: %v", claims.Roles)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("assertion must carry an expiry")
	}
}

func TestVerifyAssertionRejectsWrongKey(t *testing.T) {
	token, err := NewJWTService("secret-a").GenerateIdentityAssertion("staff-1", "doc@clinic.example", nil)
	if err != nil {
		t.Fatalf("GenerateIdentityAssertion: %v", err)
	}

	if _, err := NewJWTService("secret-b").VerifyAssertion(token); err == nil {
		t.Fatal("assertion signed with another key must not verify")
	}
}

func TestVerifyAssertionRejectsGarbage(t *testing.T) {
	if _, err := NewJWTService("test-secret").VerifyAssertion("not-a-token"); err == nil {
		t.Fatal("garbage must not verify")
	}
}
