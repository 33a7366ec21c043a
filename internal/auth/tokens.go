package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kk-code-lab/odatalake/internal/clock"
)

// DefaultTokenTTL is how long a reset token stays redeemable.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("auth: invalid reset token")
	ErrTokenExpired = errors.New("auth: reset token expired")
)

type tokenEntry struct {
	accountID string
	issuedAt  time.Time
}

// TokenStore maps reset tokens to accounts. Tokens are single use and
// expire after TTL. Safe for concurrent use.
type TokenStore struct {
	ttl   time.Duration
	clock clock.Clock

	mu     sync.Mutex
	tokens map[string]tokenEntry
}

// NewTokenStore creates an empty store. A zero ttl uses DefaultTokenTTL; a
// nil clock uses the system clock.
func NewTokenStore(ttl time.Duration, clk clock.Clock) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{ttl: ttl, clock: clock.Or(clk), tokens: make(map[string]tokenEntry)}
}

// Issue creates a token for accountID.
func (s *TokenStore) Issue(accountID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = tokenEntry{accountID: accountID, issuedAt: s.clock.Now()}
	s.mu.Unlock()
	return token
}

// Redeem consumes token and returns its account. An expired token is
// consumed as well.
func (s *TokenStore) Redeem(token string) (string, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	delete(s.tokens, token)
	if s.clock.Now().Sub(entry.issuedAt) > s.ttl {
		return "", ErrTokenExpired
	}
	return entry.accountID, nil
}

// Sweep drops expired tokens and returns how many were removed.
func (s *TokenStore) Sweep() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, entry := range s.tokens {
		if now.Sub(entry.issuedAt) > s.ttl {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of outstanding tokens.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Run sweeps every interval until ctx is done.
func (s *TokenStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
