package httpserver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/robalobadob/riddler/internal/game"
)

const (
	sessionCookie   = "riddle_session"
	sessionLifetime = 30 * 24 * time.Hour
	sessionKeyInfo  = "riddler session cookie v1"
)

// ctxSessionKey is the context key type for the session id.
type ctxSessionKey struct{}

// deriveSessionKey stretches SESSION_SECRET into a 32-byte HMAC key.
func deriveSessionKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return key, nil
}

// signSession creates an HS256 JWT whose subject is the session id.
func (s *Server) signSession(sid string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(sessionLifetime)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := t.SignedString(s.key)
	return ss, exp, err
}

// parseSession returns the session id from a valid token.
func (s *Server) parseSession(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !t.Valid || claims.Subject == "" {
		return "", errors.New("invalid session token")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("session subject: %w", err)
	}
	return claims.Subject, nil
}

// withSession resolves the session id from the cookie, issuing a fresh one
// when it is missing or invalid.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			sid, _ = s.parseSession(c.Value)
		}
		if sid == "" {
			sid = uuid.NewString()
			tok, exp, err := s.signSession(sid)
			if err != nil {
				writeError(w, fmt.Errorf("sign session: %w", err))
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    tok,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  exp,
			})
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// controller returns the caller's game controller.
func (s *Server) controller(r *http.Request) *game.Controller {
	sid, _ := r.Context().Value(ctxSessionKey{}).(string)
	return s.store.GetOrCreate(r.Context(), sid)
}
