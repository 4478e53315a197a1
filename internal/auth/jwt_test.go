package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "trackfilter", 15*time.Minute)
	userID := uuid.New()

	token, err := m.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("GenerateAccessToken: unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken returned empty token")
	}

	gotID, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: unexpected error: %v", err)
	}
	if gotID != userID {
		t.Errorf("user ID mismatch: got %s, want %s", gotID, userID)
	}
}

func TestJWTManager_ValidateEmptyToken(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "trackfilter", 15*time.Minute)

	if _, err := m.ValidateAccessToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestJWTManager_ValidateExpiredToken(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "trackfilter", -time.Minute)

	token, err := m.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken: unexpected error: %v", err)
	}

	if _, err := m.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTManager_ValidateWrongSecret(t *testing.T) {
	t.Parallel()

	m1 := NewJWTManager(testSecret, "trackfilter", 15*time.Minute)
	m2 := NewJWTManager("another-secret-key-also-32-chars-long!!", "trackfilter", 15*time.Minute)

	token, err := m1.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken: unexpected error: %v", err)
	}

	if _, err := m2.ValidateAccessToken(token); err == nil {
		t.Fatal("expected error for token signed with a different secret")
	}
}

func TestJWTManager_ValidateWrongIssuer(t *testing.T) {
	t.Parallel()

	m1 := NewJWTManager(testSecret, "issuer-a", 15*time.Minute)
	m2 := NewJWTManager(testSecret, "issuer-b", 15*time.Minute)

	token, err := m1.GenerateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateAccessToken: unexpected error: %v", err)
	}

	_, err = m2.ValidateAccessToken(token)
	if err == nil {
		t.Fatal("expected error for wrong issuer")
	}
	if !strings.Contains(err.Error(), "issuer") {
		t.Errorf("error should mention issuer, got: %v", err)
	}
}

func TestJWTManager_ValidateGarbageToken(t *testing.T) {
	t.Parallel()

	m := NewJWTManager(testSecret, "trackfilter", 15*time.Minute)

	if _, err := m.ValidateAccessToken("not.a.jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
