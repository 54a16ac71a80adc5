package server

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type contextKey int

const ctxKeySubject contextKey = 0

func contextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// signJWT issues an HS256 token for subject, valid for 24 hours.
func signJWT(secret, subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// verifyJWT validates a token and returns the subject claim.
func verifyJWT(secret, tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	return claims.Subject, nil
}

// generateSecret creates a random 32-byte secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwtSecret returns the configured JWT secret, generating one if empty.
func (s *Server) jwtSecret() string {
	if s.cfg.Auth.JWTSecret != "" {
		return s.cfg.Auth.JWTSecret
	}
	s.secretOnce.Do(func() {
		s.generatedSecret = generateSecret()
	})
	return s.generatedSecret
}

// checkPassword verifies a candidate against the configured admin
// password, which may be a bcrypt hash or a plain value.
func checkPassword(configured, candidate string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(candidate)) == 1
}

// loginRequest is the body accepted by POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the body returned by a successful login.
type loginResponse struct {
	Token string `json:"token"`
}

// handleLogin validates credentials and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != s.cfg.Auth.AdminUser || !checkPassword(s.cfg.Auth.AdminPass, req.Password) {
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := signJWT(s.jwtSecret(), req.Username)
	if err != nil {
		s.logger.Error("sign jwt", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleMe returns the currently authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	subject := r.Context().Value(ctxKeySubject)
	writeJSON(w, http.StatusOK, map[string]string{"username": fmt.Sprint(subject)})
}

// authMiddleware enforces JWT authentication on wrapped handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		subject, err := verifyJWT(s.jwtSecret(), token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithSubject(r.Context(), subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
