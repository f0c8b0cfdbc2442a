package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/p-n-ai/pai-course-creator/internal/auth"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestVerifier_Verify(t *testing.T) {
	v := auth.NewVerifier(secret)
	userID := uuid.NewString()

	token, err := auth.NewToken(secret, userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != userID {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID)
	}
}

func TestVerifier_Verify_Rejects(t *testing.T) {
	v := auth.NewVerifier(secret)
	userID := uuid.NewString()
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	expired, _ := auth.NewToken(secret, userID, -time.Minute)
	wrongKey, _ := auth.NewToken("other-secret", userID, time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: userID})},
		{"subject not a uuid", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{Subject: "bob", ExpiresAt: future})},
		{"alg none", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.RegisteredClaims{Subject: userID, ExpiresAt: future})},
		{"hs512", sign(t, jwt.SigningMethodHS512, []byte(secret), jwt.RegisteredClaims{Subject: userID, ExpiresAt: future})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, auth.ErrUnauthenticated) {
				t.Errorf("Verify() error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestVerifier_TokenFromRequest(t *testing.T) {
	v := auth.NewVerifier(secret, auth.WithCookieName("sb_token"))

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer header", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"basic header ignored", "Basic abc", "cookie-token", ""},
		{"cookie fallback", "", "cookie-token", "cookie-token"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "sb_token", Value: tt.cookie})
			}
			if got := v.TokenFromRequest(r); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifier_SignOut(t *testing.T) {
	v := auth.NewVerifier(secret, auth.WithRevoker(auth.NewMemoryRevoker()))
	token, _ := auth.NewToken(secret, uuid.NewString(), time.Hour)

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.SignOut(context.Background(), claims, token); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if _, err := v.Verify(context.Background(), token); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("Verify() after sign-out error = %v, want ErrUnauthenticated", err)
	}

	other, _ := auth.NewToken(secret, claims.Subject, time.Hour)
	if _, err := v.Verify(context.Background(), other); err != nil {
		t.Errorf("a different token should still verify: %v", err)
	}
}

func TestTokenID(t *testing.T) {
	withID := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1"}}
	if got := auth.TokenID(withID, "raw"); got != "jti-1" {
		t.Errorf("TokenID() = %q, want jti", got)
	}
	a := auth.TokenID(&auth.Claims{}, "raw-a")
	b := auth.TokenID(&auth.Claims{}, "raw-b")
	if a == b || len(a) != 64 {
		t.Errorf("hash ids = %q, %q", a, b)
	}
}

func TestContext(t *testing.T) {
	if got := auth.UserID(context.Background()); got != "" {
		t.Errorf("UserID(empty) = %q", got)
	}
	ctx := auth.WithClaims(context.Background(), &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}})
	if got := auth.UserID(ctx); got != "u" {
		t.Errorf("UserID() = %q, want u", got)
	}
}
