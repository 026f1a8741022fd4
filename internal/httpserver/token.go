// internal/httpserver/token.go
//
// Session tokens: HS256 JWTs whose "sid" claim names a game session.
// Clients present them as the wordguess_session cookie or a Bearer header;
// the event stream also accepts ?token= because EventSource cannot set headers.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/wordguess/internal/game"
)

const sessionCookieName = "wordguess_session"

var errNoToken = errors.New("no session token")

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

type ctxSessionKey struct{}

type sessionCtx struct {
	id      string
	session *game.Session
}

// signToken issues a token for sid that expires after the session TTL.
func (s *Server) signToken(sid string) (string, time.Time, error) {
	exp := time.Now().Add(s.cfg.SessionTTL)
	claims := sessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	return tok, exp, err
}

// parseToken validates tok and returns its session ID.
func (s *Server) parseToken(tok string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.SID == "" {
		return "", errors.New("token missing sid")
	}
	return claims.SID, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, tok string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// tokenFrom extracts the raw token from the request.
func tokenFrom(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), nil
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, nil
	}
	return "", errNoToken
}

// lookupSession resolves the request's token to a live session.
// It returns ok=false when there is no valid token or the session is gone.
func (s *Server) lookupSession(r *http.Request) (string, *game.Session, bool) {
	tok, err := tokenFrom(r)
	if err != nil {
		return "", nil, false
	}
	sid, err := s.parseToken(tok)
	if err != nil {
		return "", nil, false
	}
	sess, err := s.store.Get(r.Context(), sid)
	if err != nil {
		return sid, nil, false
	}
	return sid, sess, true
}

// withSession rejects requests without a live session and stores it in the context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, sess, ok := s.lookupSession(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "no_session")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sessionCtx{id: sid, session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) (string, *game.Session) {
	sc, _ := ctx.Value(ctxSessionKey{}).(sessionCtx)
	return sc.id, sc.session
}
