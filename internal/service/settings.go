// Package service holds the runtime configuration store and the
// catalog facade that routes product queries to the active source.
package service

import (
	"sync"

	"github.com/werserver/thaideals/internal/cloak"
	"github.com/werserver/thaideals/internal/model"
)

// Settings is the runtime configuration store. Admin updates land here
// and take effect on the next product call; nothing caches a value
// across calls.
type Settings struct {
	mu           sync.RWMutex
	activeSource model.DataSource
	credential   string
	cloakToken   string
	cloakBaseURL string
	currency     string

	onInvalidate func()
}

// SettingsUpdate carries a partial settings change. Nil fields are
// left untouched.
type SettingsUpdate struct {
	ActiveSource *model.DataSource
	Credential   *string
	CloakToken   *string
	CloakBaseURL *string
	Currency     *string
}

// NewSettings creates the store seeded with boot-time values.
func NewSettings(source model.DataSource, credential, cloakToken, cloakBaseURL, currency string) *Settings {
	return &Settings{
		activeSource: source,
		credential:   credential,
		cloakToken:   cloakToken,
		cloakBaseURL: cloakBaseURL,
		currency:     currency,
	}
}

// OnInvalidate registers the hook fired after an update that makes
// cached products stale: a data-source switch, a cloaking change, or a
// currency change. Wiring happens at startup, before any Apply.
func (s *Settings) OnInvalidate(fn func()) {
	s.onInvalidate = fn
}

// ActiveSource reports which loader serves product queries right now.
func (s *Settings) ActiveSource() model.DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeSource
}

// Credential returns the upstream API token.
func (s *Settings) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// CloakConfig returns the current link cloaking configuration.
func (s *Settings) CloakConfig() cloak.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloak.Config{Token: s.cloakToken, CustomBaseURL: s.cloakBaseURL}
}

// Currency returns the display currency applied to tabular rows.
func (s *Settings) Currency() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

// Apply merges a partial update into the store. Switching the data
// source or touching a value baked into cached products fires the
// invalidation hook after the lock is released.
func (s *Settings) Apply(u SettingsUpdate) {
	s.mu.Lock()
	invalidate := false
	if u.ActiveSource != nil && *u.ActiveSource != s.activeSource {
		s.activeSource = *u.ActiveSource
		invalidate = true
	}
	if u.Credential != nil {
		s.credential = *u.Credential
	}
	if u.CloakToken != nil && *u.CloakToken != s.cloakToken {
		s.cloakToken = *u.CloakToken
		invalidate = true
	}
	if u.CloakBaseURL != nil && *u.CloakBaseURL != s.cloakBaseURL {
		s.cloakBaseURL = *u.CloakBaseURL
		invalidate = true
	}
	if u.Currency != nil && *u.Currency != s.currency {
		s.currency = *u.Currency
		invalidate = true
	}
	s.mu.Unlock()

	if invalidate && s.onInvalidate != nil {
		s.onInvalidate()
	}
}
