package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/followup/config"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			AdminUser: "admin",
			AdminPass: string(hash),
			JWTSecret: "test-secret-key-1234567890",
		},
	}
	logger := slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(cfg, "test", logger)
	s.registerRoutes()
	return s
}

func login(t *testing.T, s *Server, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	rec := login(t, s, "admin", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse login response: %v", err)
	}
	return resp.Token
}

func TestSignAndVerifyJWT(t *testing.T) {
	token, err := signJWT("my-test-secret", "alice")
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	subject, err := verifyJWT("my-test-secret", token)
	if err != nil {
		t.Fatalf("verifyJWT: %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestVerifyJWTWrongSecret(t *testing.T) {
	token, err := signJWT("secret-a", "alice")
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	if _, err := verifyJWT("secret-b", token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestLoginIssuesToken(t *testing.T) {
	s := newTestServer(t)
	if token := loginToken(t, s); token == "" {
		t.Fatal("empty token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	if rec := login(t, s, "admin", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}
	if rec := login(t, s, "eve", "secret"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad user status = %d, want 401", rec.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestAuthMe(t *testing.T) {
	s := newTestServer(t)
	token := loginToken(t, s)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["username"] != "admin" {
		t.Errorf("username = %q, want admin", resp["username"])
	}
}

func TestCheckPasswordPlainFallback(t *testing.T) {
	if !checkPassword("plain-secret", "plain-secret") {
		t.Error("plain comparison failed")
	}
	if checkPassword("plain-secret", "other") {
		t.Error("plain comparison accepted wrong password")
	}
}
