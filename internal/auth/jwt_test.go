package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func signClaims(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestIssueAndValidate(t *testing.T) {
	svc := NewJWTService(testSecret)

	token, err := svc.IssueToken("user-123")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID() != "user-123" {
		t.Errorf("UserID() = %q, want user-123", claims.UserID())
	}
	if claims.Role != DefaultAudience {
		t.Errorf("Role = %q, want %q", claims.Role, DefaultAudience)
	}
}

func TestIssueToken_EmptyUserID(t *testing.T) {
	svc := NewJWTService(testSecret)
	if _, err := svc.IssueToken(""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := NewJWTService(testSecret)
	now := time.Now()
	valid := func() Claims {
		return Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Audience:  jwt.ClaimStrings{DefaultAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "expired beyond leeway",
			token: func(t *testing.T) string {
				c := valid()
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return signClaims(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return signClaims(t, "another-secret", jwt.SigningMethodHS256, valid())
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return signClaims(t, testSecret, jwt.SigningMethodHS512, valid())
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				c := valid()
				c.Audience = jwt.ClaimStrings{"anon"}
				return signClaims(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				c := valid()
				c.Subject = ""
				return signClaims(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing expiry",
			token: func(t *testing.T) string {
				c := valid()
				c.ExpiresAt = nil
				return signClaims(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not-a-jwt" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateToken() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTamperedToken(t *testing.T) {
	svc := NewJWTService(testSecret)
	token, err := svc.IssueToken("user-123")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 token parts, got %d", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.ValidateToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestLeewayValidation(t *testing.T) {
	svc := NewJWTService(testSecret, WithLeeway(time.Minute))
	token := signClaims(t, testSecret, jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-30 * time.Second)),
	}})

	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token within leeway should validate, got %v", err)
	}
}

func TestKeyRotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	oldToken, err := oldSvc.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	rotated := NewJWTService("new-secret", WithPreviousSecret("old-secret"))
	claims, err := rotated.ValidateToken(oldToken)
	if err != nil {
		t.Fatalf("token signed with previous secret should validate, got %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("UserID() = %q, want user-1", claims.UserID())
	}

	notRotated := NewJWTService("new-secret", WithPreviousSecret(""))
	if _, err := notRotated.ValidateToken(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken without previous secret, got %v", err)
	}
}

func TestWithAudience_Disabled(t *testing.T) {
	svc := NewJWTService(testSecret, WithAudience(""))
	token := signClaims(t, testSecret, jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})

	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("audience check disabled, got %v", err)
	}
}
