// Package session holds the access token between requests. A token lives in
// exactly one of two slots: a durable one that survives restarts, chosen
// when the user asks to be remembered, and a short-lived tab-scoped one.
package session

import (
	"errors"
	"fmt"
)

// AuthSession is the credential attached to authenticated requests.
type AuthSession struct {
	Token      string
	RememberMe bool
}

// Slot is a single persistent key-value scope holding one token.
// Load returns "" with a nil error when the slot is empty.
type Slot interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Store selects between the durable and tab-scoped slots.
type Store struct {
	durable Slot
	tab     Slot
}

// NewStore returns a Store over the two slots.
func NewStore(durable, tab Slot) *Store {
	return &Store{durable: durable, tab: tab}
}

// NewMemoryStore returns a Store backed by two in-memory slots.
func NewMemoryStore() *Store {
	return NewStore(&MemorySlot{}, &MemorySlot{})
}

// Save writes the session to the durable slot when RememberMe is set and to
// the tab slot otherwise. The other slot is cleared.
func (s *Store) Save(sess AuthSession) error {
	target, other := s.tab, s.durable
	if sess.RememberMe {
		target, other = s.durable, s.tab
	}
	if err := other.Clear(); err != nil {
		return fmt.Errorf("clearing previous session: %w", err)
	}
	if err := target.Save(sess.Token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load reads the durable slot first, then the tab slot. It is called before
// every authenticated request; nothing is cached.
func (s *Store) Load() (AuthSession, bool) {
	if tok, err := s.durable.Load(); err == nil && tok != "" {
		return AuthSession{Token: tok, RememberMe: true}, true
	}
	if tok, err := s.tab.Load(); err == nil && tok != "" {
		return AuthSession{Token: tok}, true
	}
	return AuthSession{}, false
}

// Token returns the current token or "".
func (s *Store) Token() string {
	sess, _ := s.Load()
	return sess.Token
}

// Clear empties both slots unconditionally.
func (s *Store) Clear() error {
	return errors.Join(s.durable.Clear(), s.tab.Clear())
}
