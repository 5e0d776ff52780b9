package session

import "sync"

// TokenHolder stores the customer's bearer token for one browser session.
// The zero value holds no token.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// Token returns the current token, or "" when logged out.
func (t *TokenHolder) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Set replaces the token.
func (t *TokenHolder) Set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

// Clear drops the token.
func (t *TokenHolder) Clear() {
	t.Set("")
}
