// internal/httpserver/token.go
//
// Seat tokens for the polling API.
//   - HS256 JWT carrying room code and player id, 12h lifetime.
//   - Key derived from SECRET_KEY with HKDF-SHA256.
//   - Accepted as "Authorization: Bearer" or the wordgame_session cookie.
//
// A token names a seat in a room; it is not a user login.

package httpserver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	sessionCookie = "wordgame_session"
	tokenTTL      = 12 * time.Hour
)

// seat identifies a player's place in a room. It is not an account.
type seat struct {
	Room   string
	Player string
}

type ctxSeatKey struct{}

// tokenSigner issues HS256 tokens carrying a seat. The HMAC key is derived
// from the configured secret so the raw secret is never used as a key.
type tokenSigner struct {
	key []byte
	now func() time.Time
}

func newTokenSigner(secret string) (*tokenSigner, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("wordgame seat token")), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &tokenSigner{key: key, now: time.Now}, nil
}

func (ts *tokenSigner) sign(s seat) (string, time.Time, error) {
	now := ts.now()
	exp := now.Add(tokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room": s.Room,
		"pid":  s.Player,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	})
	ss, err := t.SignedString(ts.key)
	return ss, exp, err
}

func (ts *tokenSigner) parse(token string) (seat, error) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return ts.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(ts.now))
	if err != nil || !t.Valid {
		return seat{}, fmt.Errorf("invalid token: %w", err)
	}
	room, _ := claims["room"].(string)
	pid, _ := claims["pid"].(string)
	if room == "" || pid == "" {
		return seat{}, errors.New("invalid token: missing seat")
	}
	return seat{Room: room, Player: pid}, nil
}

// requireSeat rejects requests without a valid seat token and stores the seat
// in the request context.
func (s *Server) requireSeat(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerOrCookie(r)
		if tok == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Not in a game"})
			return
		}
		st, err := s.tokens.parse(tok)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid session"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxSeatKey{}, st)))
	})
}

func seatFrom(ctx context.Context) seat {
	st, _ := ctx.Value(ctxSeatKey{}).(seat)
	return st
}

// setSessionCookie writes the seat token cookie.
func setSessionCookie(w http.ResponseWriter, token string, exp time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
		Expires:  exp,
	})
}

// clearSessionCookie deletes the seat token cookie.
func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite(secure),
		MaxAge:   -1,
	})
}

func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// bearerOrCookie extracts a bearer token from the Authorization header or the session cookie.
func bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}
