package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// RemoteProvider asks the accounts service whether a token is still logged
// in, and remembers positive answers for cacheTTL.
type RemoteProvider struct {
	base     string
	client   *http.Client
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]Session
	now   func() time.Time
}

func NewRemoteProvider(base string, timeout, cacheTTL time.Duration) *RemoteProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteProvider{
		base:     strings.TrimRight(strings.TrimSpace(base), "/"),
		client:   &http.Client{Timeout: timeout},
		cacheTTL: cacheTTL,
		cache:    make(map[string]Session),
		now:      time.Now,
	}
}

func (p *RemoteProvider) GetSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	if s, ok := p.cached(token); ok {
		return s, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/accounts/profile/", nil)
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("accounts request error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		p.drop(token)
		return Session{}, ErrNoSession
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Session{}, fmt.Errorf("accounts status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var profile struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Session{}, fmt.Errorf("accounts decode error: %w", err)
	}
	s := Session{Token: token, Email: profile.Email, CheckedAt: p.now()}
	p.store(s)
	return s, nil
}

// ClearSession logs out remotely (best effort) and forgets the token locally.
func (p *RemoteProvider) ClearSession(ctx context.Context, token string) error {
	p.drop(token)
	if token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/accounts/logout/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+token)
	resp, err := p.client.Do(req)
	if err != nil {
		log.Warnf("auth: remote logout failed: %v", err)
		return nil
	}
	_ = resp.Body.Close()
	return nil
}

func (p *RemoteProvider) cached(token string) (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.cache[token]
	if !ok {
		return Session{}, false
	}
	if p.expired(s, p.now()) {
		delete(p.cache, token)
		return Session{}, false
	}
	return s, true
}

// store also evicts every expired entry so one-off tokens do not pile up.
func (p *RemoteProvider) store(s Session) {
	if p.cacheTTL <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for tok, c := range p.cache {
		if p.expired(c, now) {
			delete(p.cache, tok)
		}
	}
	p.cache[s.Token] = s
}

func (p *RemoteProvider) expired(s Session, now time.Time) bool {
	return now.Sub(s.CheckedAt) > p.cacheTTL
}

func (p *RemoteProvider) cacheLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

func (p *RemoteProvider) drop(token string) {
	p.mu.Lock()
	delete(p.cache, token)
	p.mu.Unlock()
}
