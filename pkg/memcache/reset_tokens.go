package mem

import (
	"sync"
	"time"
)

// ResetTokenStore holds single-use password reset tokens.
type ResetTokenStore interface {
	Set(token string, accountEmail string, ttl time.Duration)
	// Consume returns the e-mail for token and removes it. Returns "" if
	// missing or expired.
	Consume(token string) string
}

type resetEntry struct {
	email     string
	expiresAt time.Time
}

type ResetTokens struct {
	mu   sync.Mutex
	data map[string]resetEntry
}

func NewResetTokens() *ResetTokens {
	return &ResetTokens{
		data: make(map[string]resetEntry),
	}
}

func (s *ResetTokens) Set(token string, accountEmail string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, k)
		}
	}
	s.data[token] = resetEntry{email: accountEmail, expiresAt: now.Add(ttl)}
}

func (s *ResetTokens) Consume(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[token]
	if !ok {
		return ""
	}
	delete(s.data, token) // single-use
	if time.Now().After(e.expiresAt) {
		return ""
	}
	return e.email
}
