package auth

import "testing"

func TestSignAndVerifyToken(t *testing.T) {
	svc := NewJWTService("test-admin-secret-at-least-32-chars!!")

	token, err := svc.SignToken("ops@example.com")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("subject = %q, want ops@example.com", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q, want admin", claims.Role)
	}
}

func TestVerifyToken_wrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-one").SignToken("ops")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := NewJWTService("secret-two").VerifyToken(token); err == nil {
		t.Error("token signed with a different secret should not verify")
	}
}

func TestVerifyToken_garbage(t *testing.T) {
	svc := NewJWTService("secret")
	if _, err := svc.VerifyToken("not-a-jwt"); err == nil {
		t.Error("garbage token should not verify")
	}
}
