package crypto

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(42, "a@b.com", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty string")
	}
}

func TestValidateTokenValid(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateToken(42, "a@b.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("ValidateToken() unexpected error: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("ValidateToken() UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("ValidateToken() Email = %q, want %q", claims.Email, "a@b.com")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	good, err := GenerateToken(42, "a@b.com", "correct-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}
	expired, err := GenerateToken(42, "a@b.com", "correct-secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: 42,
	})
	wrongIssuerStr, err := wrongIssuer.SignedString([]byte("correct-secret"))
	if err != nil {
		t.Fatalf("SignedString() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"garbage", "not-a-valid-token", "correct-secret"},
		{"wrong secret", good, "wrong-secret"},
		{"expired", expired, "correct-secret"},
		{"wrong issuer", wrongIssuerStr, "correct-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token, tt.secret); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	token, err := GenerateToken(1, "a@b.com", "whatever", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() unexpected error: %v", err)
	}

	exp, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("TokenExpiry() unexpected error: %v", err)
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Errorf("TokenExpiry() = %v, want about one hour from now", exp)
	}

	if _, err := TokenExpiry("t1"); !errors.Is(err, ErrOpaqueToken) {
		t.Errorf("TokenExpiry(opaque) error = %v, want ErrOpaqueToken", err)
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	live, _ := GenerateToken(1, "a@b.com", "s", time.Hour)
	stale, _ := GenerateToken(1, "a@b.com", "s", -time.Hour)

	if TokenExpired(live, now) {
		t.Error("TokenExpired(live) = true, want false")
	}
	if !TokenExpired(stale, now) {
		t.Error("TokenExpired(stale) = false, want true")
	}
	if TokenExpired("opaque-token", now) {
		t.Error("TokenExpired(opaque) = true, want false")
	}
}
