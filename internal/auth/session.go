// Package auth decides whether a request belongs to a logged-in user.
// Providers are injected; nothing here keeps process-wide credentials.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

var ErrNoSession = errors.New("auth: no valid session")

type Session struct {
	Token     string    `json:"-"`
	Email     string    `json:"email,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// SessionProvider validates and drops sessions.
type SessionProvider interface {
	GetSession(ctx context.Context, token string) (Session, error)
	ClearSession(ctx context.Context, token string) error
}

// OpenProvider accepts everyone; used when auth is disabled.
type OpenProvider struct{}

func (OpenProvider) GetSession(_ context.Context, token string) (Session, error) {
	return Session{Token: token, CheckedAt: time.Now()}, nil
}

func (OpenProvider) ClearSession(context.Context, string) error { return nil }

// StaticProvider accepts a fixed token set; cleared tokens stay revoked.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> email
}

func NewStaticProvider(tokens map[string]string) *StaticProvider {
	m := make(map[string]string, len(tokens))
	for k, v := range tokens {
		m[k] = v
	}
	return &StaticProvider{tokens: m}
}

func (p *StaticProvider) GetSession(_ context.Context, token string) (Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	email, ok := p.tokens[token]
	if !ok || token == "" {
		return Session{}, ErrNoSession
	}
	return Session{Token: token, Email: email, CheckedAt: time.Now()}, nil
}

func (p *StaticProvider) ClearSession(_ context.Context, token string) error {
	p.mu.Lock()
	delete(p.tokens, token)
	p.mu.Unlock()
	return nil
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// TokenFromRequest reads "Authorization: Bearer <t>" (or "Token <t>"),
// then the "session" cookie.
func TokenFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		for _, scheme := range []string{"Bearer ", "Token "} {
			if len(h) > len(scheme) && strings.EqualFold(h[:len(scheme)], scheme) {
				return strings.TrimSpace(h[len(scheme):])
			}
		}
	}
	if c, err := r.Cookie("session"); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// RequireSession rejects requests without a valid session (401) and
// reports an unreachable provider as 503.
func RequireSession(p SessionProvider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := p.GetSession(r.Context(), TokenFromRequest(r))
		switch {
		case errors.Is(err, ErrNoSession):
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		case err != nil:
			http.Error(w, `{"error":"session check unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}
